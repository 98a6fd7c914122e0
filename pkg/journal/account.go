package journal

import (
	"errors"
	"fmt"

	"github.com/forest6511/cryptlog/pkg/audit"
	"github.com/forest6511/cryptlog/pkg/catalog"
	"github.com/forest6511/cryptlog/pkg/crypto"
	"github.com/forest6511/cryptlog/pkg/logstore"
	"github.com/forest6511/cryptlog/pkg/session"
)

// Account is an authenticated user of a journal.
type Account struct {
	j        *Journal
	user     string
	password string
	audit    *audit.Logger // nil when disabled
}

// User returns the normalized user id.
func (a *Account) User() string {
	return a.user
}

// Audit returns the user's audit logger.
func (a *Account) Audit() (*audit.Logger, error) {
	if a.audit == nil {
		return nil, ErrAuditDisabled
	}
	return a.audit, nil
}

// NewEntry starts a session that creates a new entry for date on its first
// save.
func (a *Account) NewEntry(date logstore.Date) *Session {
	store := a.recorder()
	s := &Session{
		Session: session.NewEntry(store, a.user, date, a.password),
		acct:    a,
		date:    date,
		store:   store,
	}
	a.logSession(audit.OpSessionStart, date, -1, nil)
	return s
}

// EditEntry reads the entry at index and starts a session that overwrites
// it. The current plaintext is returned for the editor buffer.
func (a *Account) EditEntry(date logstore.Date, index int) (*Session, []byte, error) {
	text, err := a.j.logs.Read(date, a.user, a.password, index)
	if err != nil {
		a.logError(audit.OpEntryRead, date, index, err)
		return nil, nil, err
	}

	store := a.recorder()
	s := &Session{
		Session: session.ExistingEntry(store, a.user, date, a.password, index),
		acct:    a,
		date:    date,
		store:   store,
	}
	a.logSession(audit.OpSessionStart, date, index, nil)
	return s, text, nil
}

// ReadEntry decrypts the entry at index.
func (a *Account) ReadEntry(date logstore.Date, index int) ([]byte, error) {
	text, err := a.j.logs.Read(date, a.user, a.password, index)
	if err != nil {
		a.logError(audit.OpEntryRead, date, index, err)
		return nil, err
	}
	if a.audit != nil {
		_ = a.audit.LogSuccess(audit.OpEntryRead, audit.SourceCLI, audit.EntryRef(date.String(), index))
	}
	return text, nil
}

// History decrypts every entry of date in index order.
func (a *Account) History(date logstore.Date) ([]logstore.Log, error) {
	logs, err := a.j.logs.History(date, a.user, a.password)
	if err != nil {
		a.logError(audit.OpEntryHistory, date, -1, err)
		return nil, err
	}
	if a.audit != nil {
		_ = a.audit.Log(audit.OpEntryHistory, audit.SourceCLI, audit.ResultSuccess, date.String(), nil,
			map[string]interface{}{"entries": len(logs)})
	}
	return logs, nil
}

// HasLogs reports whether the user has written any entry.
func (a *Account) HasLogs() bool {
	return a.j.logs.HasLogs(a.user)
}

// Years lists the years holding entries, in numeric order.
func (a *Account) Years() ([]string, error) {
	return a.j.logs.Years(a.user)
}

// Months lists the months of year holding entries.
func (a *Account) Months(year string) ([]string, error) {
	return a.j.logs.Months(a.user, year)
}

// Days lists the days of year and month holding entries.
func (a *Account) Days(year, month string) ([]string, error) {
	return a.j.logs.Days(a.user, year, month)
}

// Dates returns every date holding entries, oldest first.
func (a *Account) Dates() ([]logstore.Date, error) {
	if !a.HasLogs() {
		return nil, ErrNoLogs
	}

	var dates []logstore.Date
	years, err := a.Years()
	if err != nil {
		return nil, err
	}
	for _, y := range years {
		months, err := a.Months(y)
		if err != nil {
			return nil, err
		}
		for _, m := range months {
			days, err := a.Days(y, m)
			if err != nil {
				return nil, err
			}
			for _, d := range days {
				dates = append(dates, logstore.Date{Day: d, Month: m, Year: y})
			}
		}
	}
	return dates, nil
}

// DayLogs lists the entry file names of date in index order.
func (a *Account) DayLogs(date logstore.Date) ([]string, error) {
	return a.j.logs.DayLogs(a.user, date)
}

// Indices returns the entry indices of date in ascending order.
func (a *Account) Indices(date logstore.Date) ([]int, error) {
	return a.j.logs.Indices(a.user, date)
}

// Count returns the number of entries of date.
func (a *Account) Count(date logstore.Date) (int, error) {
	return a.j.logs.Count(a.user, date)
}

// Recent returns the most recently saved entries from the catalog.
func (a *Account) Recent(limit int) ([]*catalog.Entry, error) {
	if a.j.catalog == nil {
		return nil, ErrCatalogDisabled
	}
	return a.j.catalog.Recent(a.user, limit)
}

func (a *Account) recorder() *recordingStore {
	return &recordingStore{
		logs:    a.j.logs,
		catalog: a.j.catalog,
		audit:   a.audit,
		now:     a.j.now,
	}
}

func (a *Account) logSession(op string, date logstore.Date, index int, ctx map[string]interface{}) {
	if a.audit == nil {
		return
	}
	entry := date.String()
	if index >= 0 {
		entry = audit.EntryRef(entry, index)
	}
	_ = a.audit.Log(op, audit.SourceEditor, audit.ResultSuccess, entry, nil, ctx)
}

func (a *Account) logError(op string, date logstore.Date, index int, err error) {
	if a.audit == nil {
		return
	}
	entry := date.String()
	if index >= 0 {
		entry = audit.EntryRef(entry, index)
	}
	_ = a.audit.LogError(op, audit.SourceCLI, entry, errorCode(err), err.Error())
}

// Session is a persistence session of one entry. It embeds the worker
// session, so it can be handed to the editor as its sender.
type Session struct {
	*session.Session

	acct  *Account
	date  logstore.Date
	store *recordingStore
}

// Date returns the date of the entry being written.
func (s *Session) Date() logstore.Date {
	return s.date
}

// Finish closes the worker session and returns its result. The error
// reports catalog failures that did not prevent the entry from being
// written.
func (s *Session) Finish() (session.Result, error) {
	res := s.Session.Close()

	ctx := map[string]interface{}{
		"saves":   res.Saves,
		"created": res.Created,
	}
	if res.Dropped > 0 {
		ctx["dropped"] = res.Dropped
	}
	if res.Err != nil {
		ctx["error"] = res.Err.Error()
	}
	s.acct.logSession(audit.OpSessionEnd, s.date, res.Index, ctx)

	return res, s.store.err
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, logstore.ErrLogNotFound):
		return "NOT_FOUND"
	case errors.Is(err, logstore.ErrInvalidDate), errors.Is(err, logstore.ErrInvalidIndex):
		return "INVALID_ADDRESS"
	case errors.Is(err, logstore.ErrInsufficientDisk):
		return "DISK_FULL"
	case errors.Is(err, crypto.ErrDecryptionFailed), errors.Is(err, crypto.ErrCiphertextTooShort):
		return "DECRYPT_FAILED"
	default:
		return "IO_ERROR"
	}
}

func wrapCatalog(err error) error {
	return fmt.Errorf("journal: catalog not updated: %w", err)
}
