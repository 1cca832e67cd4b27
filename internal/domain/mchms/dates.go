package mchms

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// FloorToDay returns the first instant of t's calendar day, in t's location.
func FloorToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays shifts t by n calendar days. n may be negative.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// ParseAsOf parses a free-form calculation instant ("2024-03-01",
// "03/01/2024 14:00", RFC 3339, ...) in the local zone. Empty input yields the
// zero time, which callers treat as "now".
func ParseAsOf(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := dateparse.ParseLocal(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as_of date %q: %w", s, err)
	}
	return t, nil
}
