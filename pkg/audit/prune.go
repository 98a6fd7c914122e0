package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Prune deletes events older than olderThan and moves the verification
// anchor to the first kept record. It returns the number of deleted events.
func (l *Logger) Prune(olderThan time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-olderThan)
	files, err := l.logFiles()
	if err != nil {
		return 0, err
	}

	deleted := 0
	var anchor *Chain
	for _, file := range files {
		events, err := readLogFile(file)
		if err != nil {
			return deleted, fmt.Errorf("audit: failed to read %s: %w", file, err)
		}

		var kept []Event
		for _, event := range events {
			ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
			if err == nil && ts.Before(cutoff) {
				deleted++
				continue
			}
			if anchor == nil {
				c := event.Chain
				anchor = &c
			}
			kept = append(kept, event)
		}

		if len(kept) == len(events) {
			continue
		}
		if len(kept) == 0 {
			if err := os.Remove(file); err != nil {
				return deleted, fmt.Errorf("audit: failed to delete %s: %w", file, err)
			}
			continue
		}
		if err := rewriteLogFile(file, kept); err != nil {
			return deleted, fmt.Errorf("audit: failed to rewrite %s: %w", file, err)
		}
	}

	if deleted == 0 {
		return 0, nil
	}

	state, _ := l.loadChainState()
	state.Sequence = l.sequence
	state.PrevHash = l.prevHash
	if anchor != nil {
		state.AnchorSeq = anchor.Sequence
		state.AnchorHash = anchor.PrevHash
	} else {
		// everything pruned: the next record starts the verifiable range
		state.AnchorSeq = l.sequence + 1
		state.AnchorHash = l.prevHash
	}
	return deleted, l.saveChainState(state)
}

// PrunePreview returns how many events Prune would delete.
func (l *Logger) PrunePreview(olderThan time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-olderThan)
	events, err := l.readAll()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, event := range events {
		ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
		if err == nil && ts.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

// rewriteLogFile replaces path with events through a temp file.
func rewriteLogFile(path string, events []Event) error {
	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, FileMode)
	if err != nil {
		return err
	}

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			f.Close()
			os.Remove(tempPath)
			return err
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			f.Close()
			os.Remove(tempPath)
			return err
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}
