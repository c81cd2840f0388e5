package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/beesaferoot/rentals/internal/apperr"
)

// DayLayout is the persisted format of calendar days.
const DayLayout = "2006-01-02"

// NormalizeDay accepts a calendar day (2006-01-02) or an RFC 3339 timestamp
// and returns the day it names. Time of day is discarded.
func NormalizeDay(v string) (string, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(DayLayout, v); err == nil {
		return t.Format(DayLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.Format(DayLayout), nil
	}
	return "", apperr.WithMetadata(apperr.CodeInvalidDate,
		fmt.Sprintf("date %q must be YYYY-MM-DD", v),
		map[string]string{"value": v})
}

// DayOf returns the UTC calendar day of t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// IsAfterToday reports whether day is strictly after the UTC day of now.
// day must already be normalized.
func IsAfterToday(day string, now time.Time) bool {
	return day > DayOf(now)
}
