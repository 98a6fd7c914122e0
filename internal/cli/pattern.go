package cli

import (
	"errors"
	"fmt"
	"path"
)

// ErrNoMatch is returned when a pattern selects no date.
var ErrNoMatch = errors.New("no date matches")

// MatchPattern returns the date names (day_month_year) selected by a glob
// such as "*_01_2024" or "0?_*_2025", keeping the order of names. A pattern
// without wildcards selects the date it spells.
func MatchPattern(pattern string, names []string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var matches []string
	for _, name := range names {
		ok, err := path.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if ok {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoMatch, pattern)
	}
	return matches, nil
}
