package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	stamp := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05", day},
		{"20240305", day},
		{"2024/03/05", day},
		{" 2024-03-05 ", day},
		{"2024-10-10 10:10:10", stamp},
		{"2024-10-10T10:10:10Z", stamp},
		{strconv.FormatInt(stamp.Unix(), 10), stamp},
	}
	for _, tc := range cases {
		got, ok := ParseTime(tc.in)
		require.True(t, ok, tc.in)
		assert.True(t, tc.want.Equal(got), "%q parsed as %v", tc.in, got)
	}
}

func TestParseTimeRejects(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2024-13-01", "-5", "99999999"} {
		_, ok := ParseTime(in)
		assert.False(t, ok, in)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, def, ParseTimeDefault("", def))
	assert.Equal(t, def, ParseTimeDefault("not-a-date", def))
	assert.Equal(t, 2023, ParseTimeDefault("20230601", def).Year())
}

func TestDayFormatting(t *testing.T) {
	ts := time.Date(2024, 1, 2, 23, 30, 0, 0, time.FixedZone("CST", 8*3600))

	assert.Equal(t, "20240102", CompactDate("2024-01-02"))
	assert.Equal(t, "20240102", CompactDate("20240102"))
	assert.Equal(t, "20240102", FormatCompact(ts))
	assert.Equal(t, "2024-01-02", FormatDay(ts))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
}
