package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Export formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Export returns the events between since and until (zero = open) as JSON
// or CSV.
func (l *Logger) Export(format string, since, until time.Time) ([]byte, error) {
	l.mu.Lock()
	events, err := l.readAll()
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var filtered []Event
	for _, event := range events {
		ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
		if err != nil {
			continue
		}
		if !since.IsZero() && ts.Before(since) {
			continue
		}
		if !until.IsZero() && ts.After(until) {
			continue
		}
		filtered = append(filtered, event)
	}

	switch format {
	case FormatCSV:
		return formatCSV(filtered), nil
	case FormatJSON:
		if filtered == nil {
			filtered = []Event{}
		}
		return json.MarshalIndent(filtered, "", "  ")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFmt, format)
	}
}

func formatCSV(events []Event) []byte {
	var b strings.Builder
	b.WriteString("timestamp,operation,entry,result,source\n")
	for _, event := range events {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s\n",
			csvEscape(event.Timestamp),
			csvEscape(event.Operation),
			csvEscape(event.Entry),
			csvEscape(event.Result),
			csvEscape(event.Actor.Source),
		)
	}
	return []byte(b.String())
}

// csvEscape quotes a field when it contains separators or starts with a
// spreadsheet formula character.
func csvEscape(field string) string {
	if field == "" {
		return field
	}

	needsQuoting := strings.ContainsAny(field[:1], "=+-@") ||
		strings.ContainsAny(field, ",\"\n\r")
	if !needsQuoting {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
