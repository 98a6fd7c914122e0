package logstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/forest6511/cryptlog/pkg/crypto"
	"github.com/forest6511/cryptlog/pkg/keychain"
)

const (
	testUser     = "alice"
	testPassword = "p@ss1"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	keys := keychain.New(filepath.Join(root, "keys"))
	if err := keys.CreateUser(testUser, testPassword); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return New(filepath.Join(root, "logs"), keys)
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", s, err)
	}
	return d
}

func TestParseDate(t *testing.T) {
	testCases := []struct {
		input   string
		want    Date
		wantErr bool
	}{
		{"01_01_2024", Date{"01", "01", "2024"}, false},
		{"9_12_2023", Date{"9", "12", "2023"}, false},
		{" 1_2_3 ", Date{"1", "2", "3"}, false},
		{"01-01-2024", Date{}, true},
		{"01_01", Date{}, true},
		{"01_01_2024_1", Date{}, true},
		{"aa_01_2024", Date{}, true},
		{"_01_2024", Date{}, true},
		{"-1_01_2024", Date{}, true},
		{"../01_2024", Date{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseDate(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Errorf("ParseDate() error = %v, want %v", err, ErrInvalidDate)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseDate() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDateStringAndToday(t *testing.T) {
	d := mustDate(t, "01_02_2024")
	if d.String() != "01_02_2024" {
		t.Errorf("String() = %q, want %q", d.String(), "01_02_2024")
	}

	now := time.Date(2024, time.March, 7, 23, 0, 0, 0, time.Local)
	if got := Today(now).String(); got != "07_03_2024" {
		t.Errorf("Today() = %q, want %q", got, "07_03_2024")
	}
}

func TestDirLayout(t *testing.T) {
	s := New("/logs", nil)
	dir, err := s.Dir(Date{"01", "02", "2024"}, testUser)
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}
	want := filepath.Join("/logs", testUser, "2024", "02", "01")
	if dir != want {
		t.Errorf("Dir() = %q, want %q", dir, want)
	}

	if _, err := s.Dir(Date{"x", "02", "2024"}, testUser); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("Dir() invalid date error = %v, want %v", err, ErrInvalidDate)
	}
	if _, err := s.Dir(Date{"01", "02", "2024"}, "../bob"); !errors.Is(err, keychain.ErrInvalidUserID) {
		t.Errorf("Dir() invalid user error = %v, want %v", err, keychain.ErrInvalidUserID)
	}
	if _, err := s.Path(Address{User: testUser, Date: Date{"1", "1", "1"}, Index: -1}); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("Path() negative index error = %v, want %v", err, ErrInvalidIndex)
	}
}

func TestInsertReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	date := mustDate(t, "01_01_2024")

	index, err := s.Insert(date, testUser, []byte("hello\nworld\n"), testPassword)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if index != 0 {
		t.Errorf("Insert() index = %d, want 0", index)
	}

	path := filepath.Join(s.Base(), testUser, "2024", "01", "01", "log_0.dat")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if bytes.Contains(raw, []byte("hello")) {
		t.Error("log file contains plaintext")
	}
	if len(raw) != crypto.NonceLength+len("hello\nworld\n")+crypto.TagLength {
		t.Errorf("log file size = %d", len(raw))
	}
	info, _ := os.Stat(path)
	if perm := info.Mode().Perm(); perm != FileMode {
		t.Errorf("log file mode = %04o, want %04o", perm, FileMode)
	}

	got, err := s.Read(date, testUser, testPassword, 0)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != "hello\nworld\n" {
		t.Errorf("Read() = %q, want %q", got, "hello\nworld\n")
	}

	if _, err := s.Read(date, testUser, "wrong1", 0); !errors.Is(err, crypto.ErrDecryptionFailed) {
		t.Errorf("Read() wrong password error = %v, want %v", err, crypto.ErrDecryptionFailed)
	}
}

func TestReadMissing(t *testing.T) {
	s := newTestStore(t)
	date := mustDate(t, "01_01_2024")

	if _, err := s.Read(date, testUser, testPassword, 0); !errors.Is(err, ErrLogNotFound) {
		t.Errorf("Read() missing error = %v, want %v", err, ErrLogNotFound)
	}
}

func TestReadTampered(t *testing.T) {
	s := newTestStore(t)
	date := mustDate(t, "02_01_2024")

	if _, err := s.Insert(date, testUser, []byte("secret"), testPassword); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	path, _ := s.Path(Address{User: testUser, Date: date, Index: 0})
	raw, _ := os.ReadFile(path)
	raw[len(raw)-1] ^= 0xFF
	if err := os.WriteFile(path, raw, FileMode); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Read(date, testUser, testPassword, 0); !errors.Is(err, crypto.ErrDecryptionFailed) {
		t.Errorf("Read() tampered error = %v, want %v", err, crypto.ErrDecryptionFailed)
	}
}

func TestAppendAddressing(t *testing.T) {
	s := newTestStore(t)
	date := mustDate(t, "05_06_2024")

	for want := 0; want < 3; want++ {
		got, err := s.Insert(date, testUser, []byte{byte('a' + want)}, testPassword)
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if got != want {
			t.Errorf("Insert() index = %d, want %d", got, want)
		}
	}

	if err := s.Overwrite(date, testUser, []byte("B"), testPassword, 1); err != nil {
		t.Fatalf("Overwrite() error = %v", err)
	}

	n, err := s.Count(testUser, date)
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}

	logs, err := s.History(date, testUser, testPassword)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	var contents []string
	for i, l := range logs {
		if l.Index != i {
			t.Errorf("History()[%d].Index = %d", i, l.Index)
		}
		contents = append(contents, string(l.Plaintext))
	}
	if want := []string{"a", "B", "c"}; !reflect.DeepEqual(contents, want) {
		t.Errorf("History() = %v, want %v", contents, want)
	}

	next, err := s.Insert(date, testUser, []byte("d"), testPassword)
	if err != nil || next != 3 {
		t.Errorf("Insert() after overwrite = %d, %v; want 3", next, err)
	}
}

func TestOverwriteCreatesDirectories(t *testing.T) {
	s := newTestStore(t)
	date := mustDate(t, "09_09_2025")

	if err := s.Overwrite(date, testUser, []byte("x"), testPassword, 4); err != nil {
		t.Fatalf("Overwrite() error = %v", err)
	}
	got, err := s.Read(date, testUser, testPassword, 4)
	if err != nil || string(got) != "x" {
		t.Errorf("Read() = %q, %v", got, err)
	}
	if err := s.Overwrite(date, testUser, []byte("x"), testPassword, -1); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("Overwrite() negative index error = %v, want %v", err, ErrInvalidIndex)
	}
}

func TestNumericListing(t *testing.T) {
	s := newTestStore(t)
	for _, d := range []string{"1_10_2024", "1_9_2024", "1_2_2024", "10_2_2024", "9_2_2024", "1_1_9", "1_1_10"} {
		if _, err := s.Insert(mustDate(t, d), testUser, []byte(d), testPassword); err != nil {
			t.Fatalf("Insert(%s) error = %v", d, err)
		}
	}
	// stray entries are ignored
	if err := os.MkdirAll(filepath.Join(s.Base(), testUser, "notes"), DirMode); err != nil {
		t.Fatal(err)
	}

	years, err := s.Years(testUser)
	if err != nil {
		t.Fatalf("Years() error = %v", err)
	}
	if want := []string{"9", "10", "2024"}; !reflect.DeepEqual(years, want) {
		t.Errorf("Years() = %v, want %v", years, want)
	}

	months, err := s.Months(testUser, "2024")
	if err != nil {
		t.Fatalf("Months() error = %v", err)
	}
	if want := []string{"2", "9", "10"}; !reflect.DeepEqual(months, want) {
		t.Errorf("Months() = %v, want %v", months, want)
	}

	days, err := s.Days(testUser, "2024", "2")
	if err != nil {
		t.Fatalf("Days() error = %v", err)
	}
	if want := []string{"1", "9", "10"}; !reflect.DeepEqual(days, want) {
		t.Errorf("Days() = %v, want %v", days, want)
	}

	if _, err := s.Months(testUser, "x"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("Months() invalid year error = %v, want %v", err, ErrInvalidDate)
	}
	empty, err := s.Years("bob")
	if err != nil || len(empty) != 0 {
		t.Errorf("Years() unknown user = %v, %v", empty, err)
	}
}

func TestSortNumeric(t *testing.T) {
	names := []string{"10", "2", "9", "01", "1"}
	SortNumeric(names)
	if want := []string{"01", "1", "2", "9", "10"}; !reflect.DeepEqual(names, want) {
		t.Errorf("SortNumeric() = %v, want %v", names, want)
	}
}

func TestDayLogsAndHasLogs(t *testing.T) {
	s := newTestStore(t)
	date := mustDate(t, "03_03_2024")

	if s.HasLogs(testUser) {
		t.Error("HasLogs() = true before any insert")
	}

	for i := 0; i < 11; i++ {
		if _, err := s.Insert(date, testUser, []byte("x"), testPassword); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	dir, _ := s.Dir(date, testUser)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, FileMode); err != nil {
		t.Fatal(err)
	}

	names, err := s.DayLogs(testUser, date)
	if err != nil {
		t.Fatalf("DayLogs() error = %v", err)
	}
	if len(names) != 11 || names[2] != "log_2.dat" || names[10] != "log_10.dat" {
		t.Errorf("DayLogs() = %v", names)
	}
	indices, err := s.Indices(testUser, date)
	if err != nil || len(indices) != 11 || indices[10] != 10 {
		t.Errorf("Indices() = %v, %v", indices, err)
	}

	if !s.HasLogs(testUser) {
		t.Error("HasLogs() = false after insert")
	}
	if s.HasLogs("nobody") {
		t.Error("HasLogs() = true for unknown user")
	}
}
