package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forest6511/cryptlog/pkg/logstore"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", FileName))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpenCreatesDatabase(t *testing.T) {
	c := openTestCatalog(t)

	info, err := os.Stat(c.Path())
	if err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != FileMode {
		t.Errorf("database mode = %04o, want %04o", perm, FileMode)
	}

	if n, err := c.Count("alice"); err != nil || n != 0 {
		t.Errorf("Count() = %d, %v; want 0", n, err)
	}
}

func TestRecordAndLookup(t *testing.T) {
	c := openTestCatalog(t)
	date := logstore.Date{Day: "01", Month: "01", Year: "2024"}
	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	if err := c.Record("alice", date, 0, 5, t0); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := c.Record("alice", date, 0, 12, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	e, err := c.Lookup("alice", date, 0)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if e.Size != 12 || e.Saves != 2 {
		t.Errorf("Lookup() size=%d saves=%d, want 12 and 2", e.Size, e.Saves)
	}
	if !e.CreatedAt.Equal(t0) || !e.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("Lookup() times = %v, %v", e.CreatedAt, e.UpdatedAt)
	}
	if e.Date != date {
		t.Errorf("Lookup() date = %+v, want %+v", e.Date, date)
	}

	if _, err := c.Lookup("alice", date, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup() missing error = %v, want %v", err, ErrNotFound)
	}
	if _, err := c.Lookup("bob", date, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup() other user error = %v, want %v", err, ErrNotFound)
	}
}

func TestRecent(t *testing.T) {
	c := openTestCatalog(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	dates := []logstore.Date{
		{Day: "1", Month: "3", Year: "2024"},
		{Day: "2", Month: "3", Year: "2024"},
		{Day: "3", Month: "3", Year: "2024"},
	}
	for i, d := range dates {
		if err := c.Record("alice", d, 0, i, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if err := c.Record("bob", dates[0], 0, 1, base.Add(10*time.Hour)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	// touching the oldest entry moves it to the front
	if err := c.Record("alice", dates[0], 0, 9, base.Add(5*time.Hour)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	recent, err := c.Recent("alice", 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent() returned %d entries, want 2", len(recent))
	}
	if recent[0].Date != dates[0] || recent[1].Date != dates[2] {
		t.Errorf("Recent() order = %v, %v", recent[0].Date, recent[1].Date)
	}

	all, err := c.Recent("alice", 0)
	if err != nil || len(all) != 3 {
		t.Errorf("Recent() default limit = %d entries, %v", len(all), err)
	}

	if n, _ := c.Count("alice"); n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	date := logstore.Date{Day: "5", Month: "5", Year: "2025"}

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := c.Record("alice", date, 2, 3, time.Now()); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer c.Close()
	if _, err := c.Lookup("alice", date, 2); err != nil {
		t.Errorf("Lookup() after reopen error = %v", err)
	}
}

func TestForget(t *testing.T) {
	c := openTestCatalog(t)
	date := logstore.Date{Day: "1", Month: "2", Year: "2024"}

	for _, user := range []string{"alice", "bob"} {
		if err := c.Record(user, date, 1, 10, time.Now()); err != nil {
			t.Fatalf("Record(%s) error = %v", user, err)
		}
	}
	if err := c.Forget("alice"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}

	if _, err := c.Lookup("alice", date, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup() after Forget error = %v, want ErrNotFound", err)
	}
	if n, _ := c.Count("bob"); n != 1 {
		t.Errorf("Count(bob) = %d, want 1", n)
	}
}
