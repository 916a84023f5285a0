package util

import (
	"strconv"
	"strings"
	"time"
)

const (
	CompactLayout = "20060102"
	DayLayout     = "2006-01-02"
)

var dateLayouts = []string{
	DayLayout,
	CompactLayout,
	"2006-01-02 15:04:05",
	"2006/01/02",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseTime tries the known date layouts and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// eight digits are a compact date, not a timestamp
	if len(s) != 8 {
		if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
			return time.Unix(ts, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// CompactDate strips dashes so "2024-01-02" becomes "20240102".
func CompactDate(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "-", "")
}

// FormatCompact renders t as YYYYMMDD.
func FormatCompact(t time.Time) string { return t.Format(CompactLayout) }

// FormatDay renders t as YYYY-MM-DD.
func FormatDay(t time.Time) string { return t.Format(DayLayout) }

// StartOfDay truncates t to midnight UTC of its calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
