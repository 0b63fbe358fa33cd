package shared

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD value.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, NewValidationError("date", fmt.Sprintf("%q is not a YYYY-MM-DD date", value))
	}
	return t, nil
}

// MonthRange returns the first and last calendar day of the month.
func MonthRange(year, month int) (time.Time, time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, NewValidationError("month", "must be between 1 and 12")
	}
	if year < 1900 || year > 9999 {
		return time.Time{}, time.Time{}, NewValidationError("year", "out of range")
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1), nil
}

// EndOfMonth returns the last calendar day of the month containing t.
func EndOfMonth(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1)
}

// Period formats a date as YYYY-MM.
func Period(t time.Time) string {
	return t.Format("2006-01")
}
