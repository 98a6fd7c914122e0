// Package catalog keeps a SQLite index of journal entries.
//
// The catalog stores only metadata (address, size, save count and
// timestamps); entry content lives in the log store and never reaches the
// database.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/forest6511/cryptlog/pkg/logstore"

	_ "modernc.org/sqlite"
)

// Constants
const (
	DriverName   = "sqlite"
	FileName     = ".catalog.db"
	FileMode     = 0600
	DirMode      = 0700
	DefaultLimit = 10
)

// Errors
var (
	ErrNotFound = errors.New("catalog: entry not found")
)

// Entry is the catalog record of one journal entry.
type Entry struct {
	User      string
	Date      logstore.Date
	Index     int
	Size      int // plaintext bytes at the last save
	Saves     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Catalog is an open catalog database.
type Catalog struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the catalog at path.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, fmt.Errorf("catalog: failed to create directory: %w", err)
	}

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to create tables: %w", err)
	}
	if err := os.Chmod(path, FileMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to set database permissions: %w", err)
	}

	return &Catalog{db: db, path: path}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			user TEXT NOT NULL,
			date TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			day INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			size INTEGER NOT NULL,
			saves INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user, date, idx)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS entries_updated ON entries(user, updated_at)`)
	return err
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the database.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// Record notes a save of (user, date, index) at time at. The first save of
// an address creates the record; later saves bump the count and size.
func (c *Catalog) Record(user string, date logstore.Date, index, size int, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	year, _ := strconv.Atoi(date.Year)
	month, _ := strconv.Atoi(date.Month)
	day, _ := strconv.Atoi(date.Day)
	ts := at.UTC().UnixNano()

	_, err := c.db.Exec(`
		INSERT INTO entries(user, date, year, month, day, idx, size, saves, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(user, date, idx) DO UPDATE SET
			size = excluded.size,
			saves = entries.saves + 1,
			updated_at = excluded.updated_at
	`, user, date.String(), year, month, day, index, size, ts, ts)
	if err != nil {
		return fmt.Errorf("catalog: failed to record entry: %w", err)
	}
	return nil
}

// Lookup returns the record of (user, date, index).
func (c *Catalog) Lookup(user string, date logstore.Date, index int) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := c.db.QueryRow(`
		SELECT user, date, idx, size, saves, created_at, updated_at
		FROM entries WHERE user = ? AND date = ? AND idx = ?
	`, user, date.String(), index)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to read entry: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries of user, most recently saved first.
func (c *Catalog) Recent(user string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(`
		SELECT user, date, idx, size, saves, created_at, updated_at
		FROM entries WHERE user = ?
		ORDER BY updated_at DESC, year DESC, month DESC, day DESC, idx DESC
		LIMIT ?
	`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: failed to iterate entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries recorded for user.
func (c *Catalog) Count(user string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM entries WHERE user = ?`, user).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: failed to count entries: %w", err)
	}
	return n, nil
}

// Forget removes every record of user.
func (c *Catalog) Forget(user string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec(`DELETE FROM entries WHERE user = ?`, user); err != nil {
		return fmt.Errorf("catalog: failed to forget user: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e                Entry
		date             string
		created, updated int64
	)
	if err := s.Scan(&e.User, &date, &e.Index, &e.Size, &e.Saves, &created, &updated); err != nil {
		return nil, err
	}
	d, err := logstore.ParseDate(date)
	if err != nil {
		return nil, err
	}
	e.Date = d
	e.CreatedAt = time.Unix(0, created).UTC()
	e.UpdatedAt = time.Unix(0, updated).UTC()
	return &e, nil
}
