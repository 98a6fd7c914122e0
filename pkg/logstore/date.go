package logstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateSeparator separates the components of an external date string.
const DateSeparator = "_"

// Date is a calendar day in the external day_month_year form.
// Components keep the spelling they were given ("01" stays "01") because
// they name directories; each one is known to be a non-negative integer.
type Date struct {
	Day   string
	Month string
	Year  string
}

// ParseDate parses "dd_mm_yyyy". Exactly three integer components are required.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), DateSeparator)
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q must have the form day_month_year", ErrInvalidDate, s)
	}
	for _, p := range parts {
		if !isNumeric(p) {
			return Date{}, fmt.Errorf("%w: %q is not a number", ErrInvalidDate, p)
		}
	}
	return Date{Day: parts[0], Month: parts[1], Year: parts[2]}, nil
}

// Today returns the local calendar day of now, zero padded.
func Today(now time.Time) Date {
	return Date{
		Day:   now.Format("02"),
		Month: now.Format("01"),
		Year:  now.Format("2006"),
	}
}

// String returns the external form of d.
func (d Date) String() string {
	return d.Day + DateSeparator + d.Month + DateSeparator + d.Year
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	// reject values that overflow int so numeric ordering stays total
	_, err := strconv.Atoi(s)
	return err == nil
}
