// Package timeutil converts the heterogeneous timestamp representations the
// upstream CI systems emit (epoch-millis strings, linked yyyyMMdd[HHmmss]
// strings, dashed dates) into comparable values and day-granularity keys.
package timeutil

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	linkedSecondLayout = "20060102150405"
	linkedDayLayout    = "20060102"
	dashedDayLayout    = "2006-01-02"
)

// ErrUnparseable is returned when a timestamp string matches none of the
// known upstream formats.
var ErrUnparseable = errors.New("timeutil: unparseable timestamp")

// ParseLinked parses a linked timestamp string (yyyyMMddHHmmss or yyyyMMdd).
func ParseLinked(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case len(linkedSecondLayout):
		return time.Parse(linkedSecondLayout, s)
	case len(linkedDayLayout):
		return time.Parse(linkedDayLayout, s)
	default:
		return time.Time{}, ErrUnparseable
	}
}

// ParseFlexible parses either an epoch-millis string or a linked timestamp.
// Epoch millis are distinguished by length: a 13-digit number is far in the
// future as yyyyMMddHHmmss would require a 14-digit string.
func ParseFlexible(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrUnparseable
	}
	if len(s) == 13 {
		if millis, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(millis), nil
		}
	}
	return ParseLinked(s)
}

// FormatLinked renders t as a linked second-resolution timestamp.
func FormatLinked(t time.Time) string {
	return t.Format(linkedSecondLayout)
}

// DayKey reduces a timestamp string to its yyyyMMdd day key. Dashed dates
// ("2023-03-21") are normalized by stripping separators; epoch millis are
// converted first. Returns "" when the input is unusable.
func DayKey(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dashedDayLayout, s); err == nil {
		return t.Format(linkedDayLayout)
	}
	s = strings.ReplaceAll(s, "-", "")
	if t, err := ParseFlexible(s); err == nil {
		return t.Format(linkedDayLayout)
	}
	return ""
}

// KeyNumeric returns the numeric value of a date key with any separator
// characters stripped, for ascending sort of date-keyed series. Non-numeric
// keys sort first as 0.
func KeyNumeric(key string) int64 {
	var digits strings.Builder
	for _, r := range key {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// InRange reports whether the timestamp falls inside [start, end], compared
// numerically on the linked representation. Blank or malformed timestamps are
// out of range.
func InRange(ts, start, end string) bool {
	tv, err := ParseFlexible(ts)
	if err != nil {
		return false
	}
	sv, err := ParseFlexible(start)
	if err != nil {
		return false
	}
	ev, err := ParseFlexible(end)
	if err != nil {
		return false
	}
	return !tv.Before(sv) && !tv.After(ev)
}
