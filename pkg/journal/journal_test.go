package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forest6511/cryptlog/internal/config"
	"github.com/forest6511/cryptlog/pkg/audit"
	"github.com/forest6511/cryptlog/pkg/document"
	"github.com/forest6511/cryptlog/pkg/keychain"
	"github.com/forest6511/cryptlog/pkg/logstore"
	"github.com/forest6511/cryptlog/pkg/session"
)

func newTestJournal(t *testing.T, catalogOn, auditOn bool) *Journal {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.LogsDir = filepath.Join(base, "logs")
	cfg.KeysDir = filepath.Join(base, "keys")
	cfg.Catalog = catalogOn
	cfg.Audit = auditOn

	j, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func mustDate(t *testing.T, s string) logstore.Date {
	t.Helper()
	d, err := logstore.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", s, err)
	}
	return d
}

func writeEntry(t *testing.T, acct *Account, date logstore.Date, texts ...string) session.Result {
	t.Helper()
	s := acct.NewEntry(date)
	for _, text := range texts {
		doc, err := document.FromBytes([]byte(text), "")
		if err != nil {
			t.Fatal(err)
		}
		s.Send(session.SaveMessage(doc.Bytes()))
	}
	res, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if res.Err != nil {
		t.Fatalf("Finish() result error = %v", res.Err)
	}
	return res
}

func operations(t *testing.T, acct *Account) []string {
	t.Helper()
	lg, err := acct.Audit()
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	events, err := lg.ListEvents(0, time.Time{})
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	ops := make([]string, len(events))
	for i, e := range events {
		ops[i] = e.Operation
	}
	return ops
}

func TestAliceEndToEnd(t *testing.T) {
	j := newTestJournal(t, true, true)

	if err := j.CreateUser("alice", "p@ss1"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := j.Login("alice", "wrong1"); !errors.Is(err, keychain.ErrNotAuthorized) {
		t.Fatalf("Login(wrong) error = %v, want %v", err, keychain.ErrNotAuthorized)
	}

	acct, err := j.Login("alice", "p@ss1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if acct.HasLogs() {
		t.Error("HasLogs() = true before any entry")
	}

	date := mustDate(t, "01_01_2024")
	res := writeEntry(t, acct, date, "hello\nworld")
	if res.Index != 0 || !res.Created || res.Saves != 1 {
		t.Errorf("Finish() = %+v, want index 0 created with 1 save", res)
	}

	got, err := acct.ReadEntry(date, 0)
	if err != nil {
		t.Fatalf("ReadEntry() error = %v", err)
	}
	if string(got) != "hello\nworld\n" {
		t.Errorf("ReadEntry() = %q, want %q", got, "hello\nworld\n")
	}

	recent, err := acct.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 1 || recent[0].Size != len("hello\nworld\n") || recent[0].Saves != 1 {
		t.Errorf("Recent() = %+v", recent)
	}

	want := []string{
		audit.OpUserCreate,
		audit.OpAuthFailed,
		audit.OpAuthSuccess,
		audit.OpSessionStart,
		audit.OpEntryCreate,
		audit.OpSessionEnd,
		audit.OpEntryRead,
	}
	ops := operations(t, acct)
	if len(ops) != len(want) {
		t.Fatalf("audit operations = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("audit operation %d = %s, want %s", i, ops[i], want[i])
		}
	}

	lg, _ := acct.Audit()
	result, err := lg.Verify()
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Valid {
		t.Errorf("Verify() errors = %v", result.Errors)
	}
}

func TestEditEntry(t *testing.T) {
	j := newTestJournal(t, true, true)
	if err := j.CreateUser("bob", "p@ss1"); err != nil {
		t.Fatal(err)
	}
	acct, err := j.Login("bob", "p@ss1")
	if err != nil {
		t.Fatal(err)
	}

	date := mustDate(t, "02_03_2024")
	writeEntry(t, acct, date, "first")
	writeEntry(t, acct, date, "second", "second draft")

	s, text, err := acct.EditEntry(date, 1)
	if err != nil {
		t.Fatalf("EditEntry() error = %v", err)
	}
	if string(text) != "second draft\n" {
		t.Errorf("EditEntry() text = %q", text)
	}
	s.Send(session.SaveMessage([]byte("rewritten\n")))
	res, err := s.Finish()
	if err != nil || res.Err != nil {
		t.Fatalf("Finish() = %+v, %v", res, err)
	}
	if res.Created || res.Index != 1 || res.Saves != 1 {
		t.Errorf("Finish() = %+v, want overwrite of index 1", res)
	}

	logs, err := acct.History(date)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(logs) != 2 || string(logs[0].Plaintext) != "first\n" || string(logs[1].Plaintext) != "rewritten\n" {
		t.Errorf("History() = %+v", logs)
	}

	recent, err := acct.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].Index != 1 || recent[0].Saves != 3 {
		t.Errorf("Recent(1) = %+v, want index 1 with 3 saves", recent)
	}

	if _, _, err := acct.EditEntry(date, 7); !errors.Is(err, logstore.ErrLogNotFound) {
		t.Errorf("EditEntry(missing) error = %v, want %v", err, logstore.ErrLogNotFound)
	}
}

func TestExitWithoutSave(t *testing.T) {
	j := newTestJournal(t, true, false)
	if err := j.CreateUser("carol", "p@ss1"); err != nil {
		t.Fatal(err)
	}
	acct, err := j.Login("carol", "p@ss1")
	if err != nil {
		t.Fatal(err)
	}

	res := writeEntry(t, acct, mustDate(t, "05_05_2025"))
	if res.Persisted() || res.Index != -1 {
		t.Errorf("Finish() = %+v, want nothing persisted", res)
	}
	if acct.HasLogs() {
		t.Error("HasLogs() = true after an empty session")
	}
	if _, err := acct.Dates(); !errors.Is(err, ErrNoLogs) {
		t.Errorf("Dates() error = %v, want %v", err, ErrNoLogs)
	}
}

func TestDates(t *testing.T) {
	j := newTestJournal(t, false, false)
	if err := j.CreateUser("dave", "p@ss1"); err != nil {
		t.Fatal(err)
	}
	acct, err := j.Login("dave", "p@ss1")
	if err != nil {
		t.Fatal(err)
	}

	for _, d := range []string{"10_2_2024", "9_2_2024", "1_12_2023"} {
		writeEntry(t, acct, mustDate(t, d), "entry")
	}

	dates, err := acct.Dates()
	if err != nil {
		t.Fatalf("Dates() error = %v", err)
	}
	want := []string{"1_12_2023", "9_2_2024", "10_2_2024"}
	if len(dates) != len(want) {
		t.Fatalf("Dates() = %v, want %v", dates, want)
	}
	for i := range want {
		if dates[i].String() != want[i] {
			t.Errorf("Dates()[%d] = %s, want %s", i, dates[i], want[i])
		}
	}
}

func TestDisabledFeatures(t *testing.T) {
	j := newTestJournal(t, false, false)
	if err := j.CreateUser("erin", "p@ss1"); err != nil {
		t.Fatal(err)
	}
	acct, err := j.Login("erin", "p@ss1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := acct.Recent(5); !errors.Is(err, ErrCatalogDisabled) {
		t.Errorf("Recent() error = %v, want %v", err, ErrCatalogDisabled)
	}
	if _, err := acct.Audit(); !errors.Is(err, ErrAuditDisabled) {
		t.Errorf("Audit() error = %v, want %v", err, ErrAuditDisabled)
	}
	if _, err := os.Stat(j.Config().AuditDir("erin")); !os.IsNotExist(err) {
		t.Errorf("audit directory created while disabled: %v", err)
	}
	if _, err := os.Stat(j.Config().CatalogPath()); !os.IsNotExist(err) {
		t.Errorf("catalog created while disabled: %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	j := newTestJournal(t, false, true)

	if _, err := j.Login("nobody", "p@ss1"); !errors.Is(err, keychain.ErrNotAuthorized) {
		t.Errorf("Login(unknown) error = %v, want %v", err, keychain.ErrNotAuthorized)
	}
	if _, err := j.Login("../etc", "p@ss1"); !errors.Is(err, keychain.ErrNotAuthorized) {
		t.Errorf("Login(invalid id) error = %v, want %v", err, keychain.ErrNotAuthorized)
	}
	if _, err := os.Stat(j.Config().AuditDir("nobody")); !os.IsNotExist(err) {
		t.Errorf("audit directory created for unknown user: %v", err)
	}

	users, err := j.Users()
	if err != nil || len(users) != 0 {
		t.Errorf("Users() = %v, %v, want none", users, err)
	}
}

func TestUserNamedLikeCatalogCanWrite(t *testing.T) {
	j := newTestJournal(t, true, true)
	user := "catalog.db"
	if err := j.CreateUser(user, "p@ss1"); err != nil {
		t.Fatalf("CreateUser(%q) error = %v", user, err)
	}
	acct, err := j.Login(user, "p@ss1")
	if err != nil {
		t.Fatal(err)
	}

	res := writeEntry(t, acct, mustDate(t, "01_01_2024"), "hello")
	if res.Index != 0 || !res.Created {
		t.Errorf("Finish() = %+v, want index 0 created", res)
	}
	if n, err := acct.Count(mustDate(t, "01_01_2024")); err != nil || n != 1 {
		t.Errorf("Count() = %d, %v; want 1", n, err)
	}

	if _, err := keychain.NormalizeID(filepath.Base(j.Config().CatalogPath())); !errors.Is(err, keychain.ErrInvalidUserID) {
		t.Errorf("catalog file name is a valid user id: %v", err)
	}
}
