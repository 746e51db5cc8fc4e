package common

import (
	"fmt"
	"time"
)

// Standard date format constants
const (
	// ISO8601Date is the date format of form input, cache keys and API parameters
	ISO8601Date = "2006-01-02"

	// DisplayDate is the human-readable format used for acquisition dates
	DisplayDate = "Jan 02, 2006"

	// DefaultWindowDays is how far around a requested date imagery is searched
	DefaultWindowDays = 15
)

// ParseISO8601 parses a date string in ISO 8601 format (YYYY-MM-DD)
func ParseISO8601(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date string is empty")
	}
	return time.Parse(ISO8601Date, dateStr)
}

// FormatISO8601 formats a time.Time to ISO 8601 date string (YYYY-MM-DD)
func FormatISO8601(t time.Time) string {
	return t.Format(ISO8601Date)
}

// FormatDisplay formats a time.Time to display format (Jan 02, 2006)
func FormatDisplay(t time.Time) string {
	return t.Format(DisplayDate)
}

// ValidateISO8601 checks if a date string is in valid ISO 8601 format
func ValidateISO8601(dateStr string) bool {
	_, err := ParseISO8601(dateStr)
	return err == nil
}

// DateWindow returns an RFC 3339 interval covering whole days from days before
// date to days after it, e.g. "2024-09-01T00:00:00Z/2024-10-01T23:59:59Z".
func DateWindow(dateStr string, days int) (string, error) {
	t, err := ParseISO8601(dateStr)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", dateStr, err)
	}
	start := t.AddDate(0, 0, -days)
	end := t.AddDate(0, 0, days)
	return FormatISO8601(start) + "T00:00:00Z/" + FormatISO8601(end) + "T23:59:59Z", nil
}
