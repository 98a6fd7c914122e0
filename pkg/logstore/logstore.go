// Package logstore maps (user, date, index) addresses to encrypted entry
// files:
//
//	<logs>/<user>/<year>/<month>/<day>/log_<index>.dat
//
// Each file holds one sealed entry (nonce || ciphertext || tag). The key is
// derived from the user's password and stored salt for every operation and
// wiped afterwards; it is never written to disk.
package logstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/forest6511/cryptlog/pkg/crypto"
	"github.com/forest6511/cryptlog/pkg/keychain"
)

// Constants
const (
	LogPrefix    = "log_"
	LogExt       = ".dat"
	FileMode     = 0600
	DirMode      = 0700
	MinFreeBytes = 1 * 1024 * 1024 // refuse writes below 1 MB available
)

// Errors
var (
	ErrInvalidDate      = errors.New("logstore: invalid date")
	ErrLogNotFound      = errors.New("logstore: log not found")
	ErrInvalidIndex     = errors.New("logstore: invalid log index")
	ErrInsufficientDisk = errors.New("logstore: insufficient disk space")
)

// Address identifies one entry.
type Address struct {
	User  string
	Date  Date
	Index int
}

// Log is one decrypted entry of a day.
type Log struct {
	Index     int
	Plaintext []byte
}

// Store reads and writes entries below a logs base directory.
type Store struct {
	dir  string
	keys *keychain.KeyChain
}

// New returns a Store rooted at dir that derives keys through keys.
func New(dir string, keys *keychain.KeyChain) *Store {
	return &Store{dir: dir, keys: keys}
}

// Base returns the logs base directory.
func (s *Store) Base() string {
	return s.dir
}

// Dir returns the directory holding user's entries for date.
func (s *Store) Dir(date Date, user string) (string, error) {
	user, err := keychain.NormalizeID(user)
	if err != nil {
		return "", err
	}
	if !isNumeric(date.Day) || !isNumeric(date.Month) || !isNumeric(date.Year) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date.String())
	}
	return filepath.Join(s.dir, user, date.Year, date.Month, date.Day), nil
}

// Path returns the file path of addr.
func (s *Store) Path(addr Address) (string, error) {
	if addr.Index < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidIndex, addr.Index)
	}
	dir, err := s.Dir(addr.Date, addr.User)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, logName(addr.Index)), nil
}

func logName(index int) string {
	return LogPrefix + strconv.Itoa(index) + LogExt
}

// parseLogName returns the index encoded in a log file name.
func parseLogName(name string) (int, bool) {
	if !strings.HasPrefix(name, LogPrefix) || !strings.HasSuffix(name, LogExt) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, LogPrefix), LogExt)
	if !isNumeric(digits) {
		return 0, false
	}
	n, _ := strconv.Atoi(digits)
	return n, true
}

// Insert seals plaintext as a new entry and returns its index. The index is
// the number of entries already present for (user, date).
func (s *Store) Insert(date Date, user string, plaintext []byte, password string) (int, error) {
	dir, err := s.Dir(date, user)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return 0, fmt.Errorf("logstore: failed to create log directory: %w", err)
	}

	indices, err := logIndices(dir)
	if err != nil {
		return 0, err
	}
	index := len(indices)
	for {
		if _, err := os.Stat(filepath.Join(dir, logName(index))); os.IsNotExist(err) {
			break
		}
		index++
	}

	if err := s.seal(Address{User: user, Date: date, Index: index}, dir, plaintext, password); err != nil {
		return 0, err
	}
	return index, nil
}

// Overwrite replaces the entry at index. It never renumbers other entries.
func (s *Store) Overwrite(date Date, user string, plaintext []byte, password string, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	dir, err := s.Dir(date, user)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("logstore: failed to create log directory: %w", err)
	}
	return s.seal(Address{User: user, Date: date, Index: index}, dir, plaintext, password)
}

func (s *Store) seal(addr Address, dir string, plaintext []byte, password string) error {
	key, err := s.keys.DeriveKey(addr.User, password)
	if err != nil {
		return fmt.Errorf("logstore: failed to derive key: %w", err)
	}
	defer crypto.SecureWipe(key)

	sealed, err := crypto.Seal(key, plaintext)
	if err != nil {
		return fmt.Errorf("logstore: failed to encrypt log: %w", err)
	}

	if err := checkDiskSpace(dir, len(sealed)); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, logName(addr.Index)), sealed)
}

// Read opens the entry at index.
func (s *Store) Read(date Date, user, password string, index int) ([]byte, error) {
	path, err := s.Path(Address{User: user, Date: date, Index: index})
	if err != nil {
		return nil, err
	}

	sealed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s index %d", ErrLogNotFound, date, index)
		}
		return nil, fmt.Errorf("logstore: failed to read log: %w", err)
	}

	key, err := s.keys.DeriveKey(user, password)
	if err != nil {
		return nil, fmt.Errorf("logstore: failed to derive key: %w", err)
	}
	defer crypto.SecureWipe(key)

	return crypto.Open(key, sealed)
}

// History opens every entry of (user, date) in index order.
func (s *Store) History(date Date, user, password string) ([]Log, error) {
	dir, err := s.Dir(date, user)
	if err != nil {
		return nil, err
	}
	indices, err := logIndices(dir)
	if err != nil {
		return nil, err
	}

	logs := make([]Log, 0, len(indices))
	for _, idx := range indices {
		plaintext, err := s.Read(date, user, password, idx)
		if err != nil {
			return nil, err
		}
		logs = append(logs, Log{Index: idx, Plaintext: plaintext})
	}
	return logs, nil
}

// Years lists the years holding entries of user, in numeric order.
func (s *Store) Years(user string) ([]string, error) {
	return s.listNumeric(user)
}

// Months lists the months of year holding entries of user, in numeric order.
func (s *Store) Months(user, year string) ([]string, error) {
	if !isNumeric(year) {
		return nil, fmt.Errorf("%w: year %q", ErrInvalidDate, year)
	}
	return s.listNumeric(user, year)
}

// Days lists the days of year/month holding entries of user, in numeric order.
func (s *Store) Days(user, year, month string) ([]string, error) {
	if !isNumeric(year) || !isNumeric(month) {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvalidDate, year, month)
	}
	return s.listNumeric(user, year, month)
}

func (s *Store) listNumeric(user string, elem ...string) ([]string, error) {
	user, err := keychain.NormalizeID(user)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(append([]string{s.dir, user}, elem...)...)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("logstore: failed to list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && isNumeric(e.Name()) {
			names = append(names, e.Name())
		}
	}
	SortNumeric(names)
	return names, nil
}

// Indices returns the entry indices of (user, date) in ascending order.
func (s *Store) Indices(user string, date Date) ([]int, error) {
	dir, err := s.Dir(date, user)
	if err != nil {
		return nil, err
	}
	return logIndices(dir)
}

// DayLogs lists the log file names of (user, date) ordered by index.
func (s *Store) DayLogs(user string, date Date) ([]string, error) {
	indices, err := s.Indices(user, date)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(indices))
	for i, idx := range indices {
		names[i] = logName(idx)
	}
	return names, nil
}

// Count returns the number of entries of (user, date).
func (s *Store) Count(user string, date Date) (int, error) {
	dir, err := s.Dir(date, user)
	if err != nil {
		return 0, err
	}
	indices, err := logIndices(dir)
	return len(indices), err
}

// HasLogs reports whether user has at least one entry.
func (s *Store) HasLogs(user string) bool {
	user, err := keychain.NormalizeID(user)
	if err != nil {
		return false
	}

	found := false
	_ = filepath.WalkDir(filepath.Join(s.dir, user), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fs.SkipDir
		}
		if !d.IsDir() {
			if _, ok := parseLogName(d.Name()); ok {
				found = true
				return fs.SkipAll
			}
		}
		return nil
	})
	return found
}

// logIndices returns the entry indices present in dir, ascending.
func logIndices(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("logstore: failed to list logs: %w", err)
	}

	var indices []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if idx, ok := parseLogName(e.Name()); ok {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)
	return indices, nil
}

// SortNumeric sorts numeric directory names by integer value ("9" before
// "10"). Equal values fall back to string order so "01" and "1" are stable.
func SortNumeric(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, _ := strconv.Atoi(names[i])
		b, _ := strconv.Atoi(names[j])
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".log_*.tmp")
	if err != nil {
		return fmt.Errorf("logstore: failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("logstore: failed to write log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("logstore: failed to sync log: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("logstore: failed to close log: %w", err)
	}
	if err := os.Chmod(tempPath, FileMode); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("logstore: failed to set log permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("logstore: failed to store log: %w", err)
	}
	return nil
}

// checkDiskSpace refuses a write when the filesystem is nearly full. A
// failing stat does not block the write.
func checkDiskSpace(dir string, size int) error {
	available, err := availableBytes(dir)
	if err != nil {
		return nil
	}

	required := uint64(MinFreeBytes)
	if uint64(size)*2 > required {
		required = uint64(size) * 2
	}
	if available < required {
		return fmt.Errorf("%w: only %d KB available", ErrInsufficientDisk, available/1024)
	}
	return nil
}
