package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
)

func fragments(fs ...models.Fragment) <-chan models.Fragment {
	ch := make(chan models.Fragment, len(fs))
	for _, f := range fs {
		ch <- f
	}
	close(ch)
	return ch
}

func TestWriteNDJSON(t *testing.T) {
	var buf bytes.Buffer
	err := writeNDJSON(&buf, fragments(
		models.StatusFragment("600519", models.StatusAnalyzing),
		models.NarrativeFragment("600519", "up"),
	))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"stock_code":"600519","status":"analyzing"}`, lines[0])
	assert.JSONEq(t, `{"stock_code":"600519","ai_analysis_chunk":"up"}`, lines[1])
}

func TestWriteNDJSONReportsErrorFragments(t *testing.T) {
	var buf bytes.Buffer
	err := writeNDJSON(&buf, fragments(
		models.ErrorFragment("X", models.MarketA, models.ErrEmptyData),
	))
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"error":"empty data"`)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, n := range []string{"serve", "analyze", "scan", "test-api"} {
		assert.True(t, names[n], n)
	}
}
