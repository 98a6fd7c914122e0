package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// pendingFailures counts failed logins recorded before the HMAC key was
// available.
type pendingFailures struct {
	Count int    `json:"count"`
	First string `json:"first"`
	Last  string `json:"last"`
}

// RecordFailure notes a failed login. It needs no key; the count is folded
// into the chain by FlushFailures after the next successful login.
func (l *Logger) RecordFailure() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.path, DirMode); err != nil {
		return fmt.Errorf("audit: failed to create directory: %w", err)
	}

	p, _ := l.loadFailures()
	ts := l.now().UTC().Format(time.RFC3339Nano)
	if p.Count == 0 {
		p.First = ts
	}
	p.Count++
	p.Last = ts

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal failures: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.path, failuresFileName), data, FileMode); err != nil {
		return fmt.Errorf("audit: failed to save failures: %w", err)
	}
	return nil
}

// FlushFailures logs the pending failed logins as one auth.failed event and
// clears them. It returns the number of failures reported.
func (l *Logger) FlushFailures(source string) (int, error) {
	l.mu.Lock()
	p, err := l.loadFailures()
	l.mu.Unlock()
	if err != nil || p.Count == 0 {
		return 0, nil
	}

	ctx := map[string]interface{}{
		"attempts": p.Count,
		"first":    p.First,
		"last":     p.Last,
	}
	if err := l.Log(OpAuthFailed, source, ResultDenied, "", nil, ctx); err != nil {
		return 0, err
	}

	if err := os.Remove(filepath.Join(l.path, failuresFileName)); err != nil && !os.IsNotExist(err) {
		return p.Count, fmt.Errorf("audit: failed to clear failures: %w", err)
	}
	return p.Count, nil
}

func (l *Logger) loadFailures() (pendingFailures, error) {
	var p pendingFailures
	data, err := os.ReadFile(filepath.Join(l.path, failuresFileName))
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return pendingFailures{}, err
	}
	return p, nil
}
