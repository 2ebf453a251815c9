package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/studyroom/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// NowInTimezone returns the current time in the specified timezone.
func NowInTimezone(timezone string) (time.Time, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return time.Now().In(loc), nil
}

// FromMillis converts an epoch-millisecond client timestamp to a time in loc.
func FromMillis(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(loc)
}

// DayOf returns the calendar day (YYYY-MM-DD) an epoch-millisecond timestamp falls on in loc.
func DayOf(ms int64, loc *time.Location) string {
	return FromMillis(ms, loc).Format(constants.DateFormat)
}

// Midnight returns the start of t's calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDateInLocation parses a date string (YYYY-MM-DD) in the specified timezone.
func ParseDateInLocation(dateStr string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, dateStr)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// ShiftDate returns the date string offset by days from dateStr.
func ShiftDate(dateStr string, days int) (string, error) {
	t, err := time.Parse(constants.DateFormat, dateStr)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, days).Format(constants.DateFormat), nil
}

// MonthRange returns the first and last calendar day of a YYYY-MM month.
func MonthRange(month string) (string, string, error) {
	t, err := time.Parse(constants.MonthFormat, month)
	if err != nil {
		return "", "", fmt.Errorf("invalid month %q (expected YYYY-MM): %w", month, err)
	}
	last := t.AddDate(0, 1, -1)
	return t.Format(constants.DateFormat), last.Format(constants.DateFormat), nil
}

// FormatMillis renders a millisecond duration as "1h 05m" or "12m 30s".
func FormatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	if timezone == "" || timezone == "Local" {
		return true
	}
	_, err := time.LoadLocation(timezone)
	return err == nil
}
