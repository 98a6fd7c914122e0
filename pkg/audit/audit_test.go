package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func newKeyedLogger(t *testing.T, dir string) *Logger {
	t.Helper()
	logger := NewLogger(dir, "alice")
	if err := logger.SetHMACKey(testKey()); err != nil {
		t.Fatalf("SetHMACKey failed: %v", err)
	}
	return logger
}

func readEvents(t *testing.T, dir string) []Event {
	t.Helper()
	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	var events []Event
	for _, f := range files {
		evs, err := readLogFile(f)
		if err != nil {
			t.Fatalf("readLogFile failed: %v", err)
		}
		events = append(events, evs...)
	}
	return events
}

func TestNewLogger(t *testing.T) {
	tmpDir := t.TempDir()
	logger := NewLogger(tmpDir, "alice")

	if logger.Path() != tmpDir {
		t.Errorf("Path() = %s, want %s", logger.Path(), tmpDir)
	}
	if logger.prevHash != genesisHash {
		t.Errorf("prevHash = %s, want %s", logger.prevHash, genesisHash)
	}
	if logger.SessionID() == "" {
		t.Error("expected non-empty session id")
	}
	if NewLogger(tmpDir, "alice").SessionID() == logger.SessionID() {
		t.Error("session ids should be unique")
	}
}

func TestLogWithoutHMACKey(t *testing.T) {
	logger := NewLogger(t.TempDir(), "alice")

	err := logger.LogSuccess(OpEntryRead, SourceCLI, EntryRef("01_01_2024", 0))
	if !errors.Is(err, ErrKeyNotSet) {
		t.Errorf("LogSuccess() error = %v, want %v", err, ErrKeyNotSet)
	}
	if _, err := logger.Verify(); !errors.Is(err, ErrKeyNotSet) {
		t.Errorf("Verify() error = %v, want %v", err, ErrKeyNotSet)
	}
}

func TestLogSuccess(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newKeyedLogger(t, tmpDir)

	if err := logger.LogSuccess(OpEntryCreate, SourceWorker, EntryRef("01_01_2024", 0)); err != nil {
		t.Fatalf("LogSuccess failed: %v", err)
	}

	events := readEvents(t, tmpDir)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Operation != OpEntryCreate || e.Result != ResultSuccess {
		t.Errorf("event = %s/%s", e.Operation, e.Result)
	}
	if e.Entry != "01_01_2024#0" {
		t.Errorf("Entry = %q, want %q", e.Entry, "01_01_2024#0")
	}
	if e.Actor.User != "alice" || e.Actor.Source != SourceWorker {
		t.Errorf("Actor = %+v", e.Actor)
	}
	if e.Chain.Sequence != 1 || e.Chain.PrevHash != genesisHash || e.Chain.HMAC == "" {
		t.Errorf("Chain = %+v", e.Chain)
	}
	if len(e.ID) != 36 {
		t.Errorf("ID = %q, want a UUID", e.ID)
	}

	info, err := os.Stat(filepath.Join(tmpDir, metaFileName))
	if err != nil {
		t.Fatalf("chain state not saved: %v", err)
	}
	if perm := info.Mode().Perm(); perm != FileMode {
		t.Errorf("meta mode = %04o, want %04o", perm, FileMode)
	}
}

func TestLogError(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newKeyedLogger(t, tmpDir)

	if err := logger.LogError(OpEntrySave, SourceWorker, EntryRef("02_01_2024", 1), "io", "disk full"); err != nil {
		t.Fatalf("LogError failed: %v", err)
	}

	events := readEvents(t, tmpDir)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Result != ResultError || events[0].Error == nil || events[0].Error.Message != "disk full" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestChainIntegrity(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newKeyedLogger(t, tmpDir)

	ops := []string{OpAuthSuccess, OpSessionStart, OpEntryCreate, OpEntrySave, OpSessionEnd}
	for _, op := range ops {
		if err := logger.LogSuccess(op, SourceCLI, ""); err != nil {
			t.Fatalf("LogSuccess(%s) failed: %v", op, err)
		}
	}

	events := readEvents(t, tmpDir)
	for i, e := range events {
		if e.Chain.Sequence != int64(i+1) {
			t.Errorf("event %d seq = %d", i, e.Chain.Sequence)
		}
		if i > 0 && e.Chain.PrevHash != events[i-1].Chain.HMAC {
			t.Errorf("event %d not linked to its predecessor", i)
		}
	}

	result, err := logger.Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid || result.RecordsTotal != 5 || result.RecordsVerified != 5 {
		t.Errorf("Verify() = %+v", result)
	}
}

func TestChainPersistence(t *testing.T) {
	tmpDir := t.TempDir()
	first := newKeyedLogger(t, tmpDir)
	for i := 0; i < 2; i++ {
		if err := first.LogSuccess(OpEntryRead, SourceCLI, ""); err != nil {
			t.Fatalf("LogSuccess failed: %v", err)
		}
	}

	second := newKeyedLogger(t, tmpDir)
	if err := second.LogSuccess(OpEntryRead, SourceCLI, ""); err != nil {
		t.Fatalf("LogSuccess failed: %v", err)
	}

	events := readEvents(t, tmpDir)
	if len(events) != 3 || events[2].Chain.Sequence != 3 {
		t.Fatalf("events = %d, last seq = %d", len(events), events[len(events)-1].Chain.Sequence)
	}
	if events[2].Actor.SessionID == events[0].Actor.SessionID {
		t.Error("new logger should start a new session")
	}

	result, err := second.Verify()
	if err != nil || !result.Valid {
		t.Errorf("Verify() = %+v, %v", result, err)
	}
}

func TestContextIsSigned(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newKeyedLogger(t, tmpDir)
	ctx := map[string]interface{}{"saves": 3, "bytes": 12}
	if err := logger.Log(OpSessionEnd, SourceWorker, ResultSuccess, "", nil, ctx); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(tmpDir, "*.jsonl"))
	data, _ := os.ReadFile(files[0])
	tampered := strings.Replace(string(data), `"saves":3`, `"saves":4`, 1)
	if tampered == string(data) {
		t.Fatal("context not found in record")
	}
	if err := os.WriteFile(files[0], []byte(tampered), FileMode); err != nil {
		t.Fatal(err)
	}

	result, err := logger.Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Valid {
		t.Error("expected context tampering to be detected")
	}
}

func TestTamperingDetection(t *testing.T) {
	setup := func(t *testing.T, n int) (string, []byte) {
		tmpDir := t.TempDir()
		logger := newKeyedLogger(t, tmpDir)
		for i := 0; i < n; i++ {
			if err := logger.LogSuccess(OpEntryRead, SourceCLI, EntryRef("01_01_2024", i)); err != nil {
				t.Fatalf("LogSuccess failed: %v", err)
			}
		}
		files, _ := filepath.Glob(filepath.Join(tmpDir, "*.jsonl"))
		if len(files) == 0 {
			t.Fatal("no log files found")
		}
		data, err := os.ReadFile(files[0])
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		return files[0], data
	}

	verify := func(t *testing.T, dir string, key []byte) *VerifyResult {
		logger := NewLogger(dir, "alice")
		if err := logger.SetHMACKey(key); err != nil {
			t.Fatalf("SetHMACKey failed: %v", err)
		}
		result, err := logger.Verify()
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		return result
	}

	t.Run("detect modified record", func(t *testing.T) {
		file, data := setup(t, 3)
		tampered := strings.Replace(string(data), OpEntryRead, OpEntrySave, 1)
		if err := os.WriteFile(file, []byte(tampered), FileMode); err != nil {
			t.Fatal(err)
		}

		result := verify(t, filepath.Dir(file), testKey())
		if result.Valid || len(result.Errors) == 0 {
			t.Errorf("expected tampering to be reported, got %+v", result)
		}
		if result.RecordsVerified != 2 {
			t.Errorf("RecordsVerified = %d, want 2", result.RecordsVerified)
		}
	})

	t.Run("detect deleted record", func(t *testing.T) {
		file, data := setup(t, 5)
		lines := strings.SplitAfter(string(data), "\n")
		kept := append(append([]string{}, lines[:2]...), lines[3:]...)
		if err := os.WriteFile(file, []byte(strings.Join(kept, "")), FileMode); err != nil {
			t.Fatal(err)
		}

		if result := verify(t, filepath.Dir(file), testKey()); result.Valid {
			t.Error("expected invalid chain after record deletion")
		}
	})

	t.Run("detect truncated tail", func(t *testing.T) {
		file, data := setup(t, 3)
		lines := strings.SplitAfter(string(data), "\n")
		if err := os.WriteFile(file, []byte(strings.Join(lines[:2], "")), FileMode); err != nil {
			t.Fatal(err)
		}

		if result := verify(t, filepath.Dir(file), testKey()); result.Valid {
			t.Error("expected invalid chain after removing the last record")
		}
	})

	t.Run("detect wrong HMAC key", func(t *testing.T) {
		file, _ := setup(t, 3)
		wrongKey := make([]byte, 32)
		for i := range wrongKey {
			wrongKey[i] = byte(255 - i)
		}

		if result := verify(t, filepath.Dir(file), wrongKey); result.Valid {
			t.Error("expected invalid chain with wrong HMAC key")
		}
	})

	t.Run("detect inserted record", func(t *testing.T) {
		file, data := setup(t, 3)
		fake, _ := json.Marshal(Event{
			Version:   SchemaVersion,
			ID:        "fake",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Operation: OpEntryRead,
			Actor:     Actor{User: "alice", Source: SourceCLI, SessionID: "fake"},
			Result:    ResultSuccess,
			Chain:     Chain{Sequence: 2, PrevHash: "fake_prev", HMAC: "fake_hmac"},
		})
		lines := strings.SplitAfter(string(data), "\n")
		out := lines[0] + string(fake) + "\n" + strings.Join(lines[1:], "")
		if err := os.WriteFile(file, []byte(out), FileMode); err != nil {
			t.Fatal(err)
		}

		if result := verify(t, filepath.Dir(file), testKey()); result.Valid {
			t.Error("expected invalid chain after record insertion")
		}
	})
}

func TestVerifyEmptyLog(t *testing.T) {
	logger := newKeyedLogger(t, t.TempDir())

	result, err := logger.Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid || result.RecordsTotal != 0 {
		t.Errorf("Verify() = %+v, want valid and empty", result)
	}
}

func TestListEvents(t *testing.T) {
	tmpDir := t.TempDir()
	logger := newKeyedLogger(t, tmpDir)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		logger.now = func() time.Time { return at }
		if err := logger.LogSuccess(OpEntryRead, SourceCLI, EntryRef("01_05_2024", i)); err != nil {
			t.Fatalf("LogSuccess failed: %v", err)
		}
	}

	all, err := logger.ListEvents(0, time.Time{})
	if err != nil || len(all) != 5 {
		t.Fatalf("ListEvents() = %d events, %v", len(all), err)
	}

	last, _ := logger.ListEvents(2, time.Time{})
	if len(last) != 2 || last[1].Entry != "01_05_2024#4" {
		t.Errorf("ListEvents(2) = %+v", last)
	}

	since, _ := logger.ListEvents(0, base.Add(2*time.Hour))
	if len(since) != 2 {
		t.Errorf("ListEvents(since) returned %d events, want 2", len(since))
	}
}

func TestFailuresAreFoldedIntoChain(t *testing.T) {
	tmpDir := t.TempDir()
	unkeyed := NewLogger(tmpDir, "alice")
	for i := 0; i < 3; i++ {
		if err := unkeyed.RecordFailure(); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	logger := newKeyedLogger(t, tmpDir)
	n, err := logger.FlushFailures(SourceCLI)
	if err != nil || n != 3 {
		t.Fatalf("FlushFailures() = %d, %v; want 3", n, err)
	}

	events := readEvents(t, tmpDir)
	if len(events) != 1 || events[0].Operation != OpAuthFailed || events[0].Result != ResultDenied {
		t.Fatalf("events = %+v", events)
	}
	if attempts, _ := events[0].Context["attempts"].(float64); attempts != 3 {
		t.Errorf("attempts = %v, want 3", events[0].Context["attempts"])
	}

	if n, err := logger.FlushFailures(SourceCLI); err != nil || n != 0 {
		t.Errorf("second FlushFailures() = %d, %v; want 0", n, err)
	}
	if result, _ := logger.Verify(); !result.Valid {
		t.Errorf("Verify() = %+v", result)
	}
}

func TestExport(t *testing.T) {
	logger := newKeyedLogger(t, t.TempDir())
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return base }
	if err := logger.LogSuccess(OpEntryCreate, SourceWorker, "01_03_2024#0"); err != nil {
		t.Fatal(err)
	}
	logger.now = func() time.Time { return base.Add(48 * time.Hour) }
	if err := logger.LogSuccess(OpEntryRead, SourceCLI, "=1_03_2024#0"); err != nil {
		t.Fatal(err)
	}

	data, err := logger.Export(FormatJSON, base.Add(time.Hour), time.Time{})
	if err != nil {
		t.Fatalf("Export(json) failed: %v", err)
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if len(events) != 1 || events[0].Operation != OpEntryRead {
		t.Errorf("Export(json, since) = %+v", events)
	}

	data, err = logger.Export(FormatCSV, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Export(csv) failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv has %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[2], `"=1_03_2024#0"`) {
		t.Errorf("formula-like field not quoted: %s", lines[2])
	}

	if _, err := logger.Export("xml", time.Time{}, time.Time{}); !errors.Is(err, ErrUnsupportedFmt) {
		t.Errorf("Export(xml) error = %v, want ErrUnsupportedFmt", err)
	}
}

func TestPrune(t *testing.T) {
	logger := newKeyedLogger(t, t.TempDir())
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return base }
	for i := 0; i < 2; i++ {
		if err := logger.LogSuccess(OpEntrySave, SourceWorker, "15_01_2024#0"); err != nil {
			t.Fatal(err)
		}
	}
	logger.now = func() time.Time { return base.AddDate(0, 2, 0) }
	if err := logger.LogSuccess(OpEntryRead, SourceCLI, "15_01_2024#0"); err != nil {
		t.Fatal(err)
	}

	n, err := logger.PrunePreview(30 * 24 * time.Hour)
	if err != nil || n != 2 {
		t.Fatalf("PrunePreview() = %d, %v; want 2", n, err)
	}
	deleted, err := logger.Prune(30 * 24 * time.Hour)
	if err != nil || deleted != 2 {
		t.Fatalf("Prune() = %d, %v; want 2", deleted, err)
	}

	result, err := logger.Verify()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid || result.RecordsTotal != 1 {
		t.Errorf("Verify() after prune = %+v", result)
	}

	if err := logger.LogSuccess(OpEntryRead, SourceCLI, ""); err != nil {
		t.Fatal(err)
	}
	if result, _ := logger.Verify(); !result.Valid {
		t.Errorf("Verify() after new record = %+v", result)
	}
}
