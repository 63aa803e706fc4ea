package shared

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var errYear = errors.New("must be a four digit year")

// ParseDate accepts RFC3339 or YYYY-MM-DD. Date-only values are UTC midnight.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse(dateLayout, value)
}

// EndOfDay widens a date-only upper bound so it includes the whole day.
func EndOfDay(t time.Time) time.Time {
	if t.IsZero() || t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return t
	}
	return t.Add(24*time.Hour - time.Nanosecond)
}

// ParseYear reads a plan year filter such as "2025".
func ParseYear(raw string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || year < 2000 || year > 2100 {
		return 0, errYear
	}
	return year, nil
}
