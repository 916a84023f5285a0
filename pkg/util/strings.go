package util

import (
	"strconv"
	"strings"
)

// ParseFloatDefault parses a numeric cell. Blank cells and placeholders like "-" give def.
func ParseFloatDefault(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "--" {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return def
	}
	return v
}

// FormatFloat renders v with the shortest representation that round-trips.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
