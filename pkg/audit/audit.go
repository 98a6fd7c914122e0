// Package audit keeps a per-user audit trail of journal operations.
//
// Events are appended as JSON lines to monthly files (YYYY-MM.jsonl). Each
// record carries an HMAC over its significant fields and the previous
// record's HMAC, so removing, reordering or editing records is detected by
// Verify. The HMAC key is derived with HKDF from the user's entry key and is
// only available after a successful login; failed logins are counted in a
// plain pending file and folded into the chain at the next login.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Constants
const (
	SchemaVersion     = 1
	MinAuditDiskSpace = 1024 * 1024 // 1 MB minimum for audit logs
	FileMode          = 0600
	DirMode           = 0700

	metaFileName     = "audit.meta"
	failuresFileName = "failures.json"
	genesisHash      = "genesis"
	hkdfInfo         = "cryptlog-audit-v1"
)

// Operation types
const (
	OpUserCreate   = "user.create"
	OpAuthSuccess  = "auth.success"
	OpAuthFailed   = "auth.failed"
	OpEntryCreate  = "entry.create"
	OpEntrySave    = "entry.save"
	OpEntryRead    = "entry.read"
	OpEntryHistory = "entry.history"
	OpSessionStart = "session.start"
	OpSessionEnd   = "session.end"
	OpBackupCreate = "backup.create"
	OpRestore      = "backup.restore"
)

// Source identifies where the operation originated
const (
	SourceCLI    = "cli"
	SourceEditor = "editor"
	SourceWorker = "worker"
)

// Result indicates the outcome of an operation
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDenied  = "denied"
)

// Errors
var (
	ErrKeyNotSet        = errors.New("audit: HMAC key not set")
	ErrInsufficientDisk = errors.New("audit: insufficient disk space")
	ErrUnsupportedFmt   = errors.New("audit: unsupported export format")
)

// Event is a single audit record.
type Event struct {
	Version   int    `json:"v"`
	ID        string `json:"id"` // UUIDv7, time ordered
	Timestamp string `json:"ts"` // RFC 3339, nanosecond precision

	Operation string `json:"op"`
	Entry     string `json:"entry,omitempty"` // day_month_year#index

	Actor Actor `json:"actor"`

	Result string     `json:"result"`
	Error  *ErrorInfo `json:"error,omitempty"`

	Context map[string]interface{} `json:"ctx,omitempty"`

	Chain Chain `json:"chain"`
}

// Actor identifies who performed the operation.
type Actor struct {
	User      string `json:"user"`
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Chain links a record to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

// EntryRef formats an entry address for Event.Entry.
func EntryRef(date string, index int) string {
	return fmt.Sprintf("%s#%d", date, index)
}

// Logger writes one user's audit trail.
type Logger struct {
	path      string
	user      string
	hmacKey   []byte
	mu        sync.Mutex
	sequence  int64
	prevHash  string
	sessionID string
	now       func() time.Time
}

// NewLogger creates a logger writing below path for user.
func NewLogger(path, user string) *Logger {
	return &Logger{
		path:      path,
		user:      user,
		prevHash:  genesisHash,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
}

// Path returns the audit log directory path
func (l *Logger) Path() string {
	return l.path
}

// SessionID returns the id stamped on this logger's events.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// SetHMACKey derives the HMAC key from the user's entry key and loads the
// chain state.
func (l *Logger) SetHMACKey(entryKey []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := hkdf.New(sha256.New, entryKey, nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := r.Read(key); err != nil {
		return fmt.Errorf("audit: failed to derive HMAC key: %w", err)
	}
	l.hmacKey = key

	state, err := l.loadChainState()
	if err != nil {
		// first run
		l.sequence = 0
		l.prevHash = genesisHash
		return nil
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

// Log records an audit event.
func (l *Logger) Log(op, source, result, entry string, errInfo *ErrorInfo, ctx map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hmacKey == nil {
		return ErrKeyNotSet
	}
	if err := os.MkdirAll(l.path, DirMode); err != nil {
		return fmt.Errorf("audit: failed to create directory: %w", err)
	}
	if err := l.checkDiskSpace(); err != nil {
		return err
	}

	now := l.now().UTC()
	event := Event{
		Version:   SchemaVersion,
		ID:        newEventID(),
		Timestamp: now.Format(time.RFC3339Nano),
		Operation: op,
		Entry:     entry,
		Actor: Actor{
			User:      l.user,
			Source:    source,
			SessionID: l.sessionID,
		},
		Result:  result,
		Error:   errInfo,
		Context: ctx,
	}

	event.Chain.Sequence = l.sequence + 1
	event.Chain.PrevHash = l.prevHash
	event.Chain.HMAC = l.sign(&event)

	if err := l.writeEvent(&event, now); err != nil {
		return err
	}

	l.sequence = event.Chain.Sequence
	l.prevHash = event.Chain.HMAC

	state, _ := l.loadChainState()
	state.Sequence = l.sequence
	state.PrevHash = l.prevHash
	return l.saveChainState(state)
}

// LogSuccess is a convenience method for successful operations
func (l *Logger) LogSuccess(op, source, entry string) error {
	return l.Log(op, source, ResultSuccess, entry, nil, nil)
}

// LogError is a convenience method for failed operations
func (l *Logger) LogError(op, source, entry string, errCode, errMsg string) error {
	return l.Log(op, source, ResultError, entry, &ErrorInfo{Code: errCode, Message: errMsg}, nil)
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (l *Logger) sign(event *Event) string {
	mac := hmac.New(sha256.New, l.hmacKey)
	mac.Write(buildRecordData(event))
	return hex.EncodeToString(mac.Sum(nil))
}

// buildRecordData serializes every field covered by the record HMAC.
func buildRecordData(event *Event) []byte {
	actorData := fmt.Sprintf("%s|%s|%s",
		event.Actor.User,
		event.Actor.Source,
		event.Actor.SessionID,
	)

	errorData := ""
	if event.Error != nil {
		errorData = fmt.Sprintf("%s|%s", event.Error.Code, event.Error.Message)
	}

	var contextData strings.Builder
	if event.Context != nil {
		keys := make([]string, 0, len(event.Context))
		for k := range event.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&contextData, "%s=%v|", k, event.Context[k])
		}
	}

	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%s|%d|%s",
		event.Version,
		event.ID,
		event.Timestamp,
		event.Operation,
		event.Entry,
		actorData,
		event.Result,
		errorData,
		contextData.String(),
		event.Chain.Sequence,
		event.Chain.PrevHash,
	)
	return []byte(data)
}

// writeEvent appends event to the log file of its month.
func (l *Logger) writeEvent(event *Event, at time.Time) error {
	path := filepath.Join(l.path, at.Format("2006-01")+".jsonl")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FileMode)
	if err != nil {
		return fmt.Errorf("audit: failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

// ChainState is the persisted tail of the chain. Anchor is where
// verification starts; it moves forward when old records are pruned.
type ChainState struct {
	Sequence   int64  `json:"seq"`
	PrevHash   string `json:"prev"`
	AnchorSeq  int64  `json:"anchor_seq,omitempty"`
	AnchorHash string `json:"anchor_prev,omitempty"`
}

func (l *Logger) loadChainState() (ChainState, error) {
	data, err := os.ReadFile(filepath.Join(l.path, metaFileName))
	if err != nil {
		return ChainState{}, err
	}
	var state ChainState
	if err := json.Unmarshal(data, &state); err != nil {
		return ChainState{}, err
	}
	return state, nil
}

func (l *Logger) saveChainState(state ChainState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.path, metaFileName), data, FileMode); err != nil {
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	return nil
}

// VerifyResult contains the results of chain verification
type VerifyResult struct {
	Valid           bool     `json:"valid"`
	RecordsTotal    int      `json:"records_total"`
	RecordsVerified int      `json:"records_verified"`
	Errors          []string `json:"errors,omitempty"`
}

// Verify checks sequence numbers, links and HMACs of every record.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hmacKey == nil {
		return nil, ErrKeyNotSet
	}

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true}
	expectedPrev := genesisHash
	expectedSeq := int64(1)
	if state, err := l.loadChainState(); err == nil && state.AnchorSeq > 0 {
		expectedSeq = state.AnchorSeq
		expectedPrev = state.AnchorHash
	}

	for i := range events {
		event := &events[i]
		result.RecordsTotal++
		ok := true

		if event.Chain.Sequence != expectedSeq {
			ok = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"sequence gap at record %s: expected %d, got %d",
				event.ID, expectedSeq, event.Chain.Sequence))
		}
		if event.Chain.PrevHash != expectedPrev {
			ok = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"chain broken at record %s", event.ID))
		}
		if !hmac.Equal([]byte(event.Chain.HMAC), []byte(l.sign(event))) {
			ok = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"HMAC mismatch at record %s: possible tampering", event.ID))
		}

		if ok {
			result.RecordsVerified++
		} else {
			result.Valid = false
		}
		expectedPrev = event.Chain.HMAC
		expectedSeq = event.Chain.Sequence + 1
	}

	if result.RecordsTotal > 0 && expectedSeq-1 != l.sequence {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(
			"chain tail mismatch: last record %d, state %d", expectedSeq-1, l.sequence))
	}
	return result, nil
}

// logFiles returns the monthly log files in chronological order.
func (l *Logger) logFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.path, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list log files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (l *Logger) readAll() ([]Event, error) {
	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}
	var all []Event
	for _, file := range files {
		events, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", file, err)
		}
		all = append(all, events...)
	}
	return all, nil
}

func readLogFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, fmt.Errorf("failed to parse line: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

// ListEvents returns the most recent limit events (0 = all) newer than since
// (zero = no filter), oldest first.
func (l *Logger) ListEvents(limit int, since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	filtered := events
	if !since.IsZero() {
		filtered = nil
		for _, event := range events {
			ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
			if err != nil {
				continue
			}
			if ts.After(since) {
				filtered = append(filtered, event)
			}
		}
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}
