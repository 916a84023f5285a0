package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest(stream bool) service.NarrativeRequest {
	pct := 1.5
	row := models.IndicatorRow{MA5: 10, MA20: 9, MA60: 8, RSI: 55, Volatility: 0.25}
	row.Date = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	row.Close = 10.5
	row.ChangePct = &pct
	return service.NarrativeRequest{
		Symbol: "600519",
		Market: models.MarketA,
		Table:  models.IndicatorTable{Symbol: "600519", Rows: []models.IndicatorRow{row}},
		Stream: stream,
	}
}

func collect(seq iter.Seq2[string, error]) ([]string, error) {
	var chunks []string
	for c, err := range seq {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func TestFormatAPIURL(t *testing.T) {
	cases := map[string]string{
		"https://api.deepseek.com":                     "https://api.deepseek.com/v1/chat/completions",
		"https://api.deepseek.com/":                    "https://api.deepseek.com/v1/chat/completions",
		"https://openrouter.ai/api/v1":                 "https://openrouter.ai/api/v1/chat/completions",
		"https://api.openai.com/v1/chat/completions":   "https://api.openai.com/v1/chat/completions",
		"https://api.openai.com/v1/chat/completions/ ": "https://api.openai.com/v1/chat/completions",
		"":                                             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAPIURL(in), in)
	}
}

func TestBuildPromptIncludesLatestRow(t *testing.T) {
	p := BuildPrompt(sampleRequest(false))
	assert.Contains(t, p, "China A-share security 600519")
	assert.Contains(t, p, "2024-03-01 | 10.500 | 1.50")
	assert.Contains(t, p, "25.00%")
}

func TestOpenAIStreamsSSE(t *testing.T) {
	var body chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range []string{"Up", "", "trend"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
		}
		fmt.Fprint(w, ": keep-alive\n\ndata: not-json\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	n, err := NewOpenAI(OpenAIConfig{APIURL: srv.URL, APIKey: "k"}, nil)
	require.NoError(t, err)

	chunks, err := collect(n.Stream(context.Background(), sampleRequest(true)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Up", "trend"}, chunks)
	assert.True(t, body.Stream)
	assert.Equal(t, DefaultModel, body.Model)
}

func TestOpenAINonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"full text"}}]}`))
	}))
	defer srv.Close()

	n, err := NewOpenAI(OpenAIConfig{APIURL: srv.URL + "/v1", APIKey: "k", Model: "m"}, nil)
	require.NoError(t, err)
	chunks, err := collect(n.Stream(context.Background(), sampleRequest(false)))
	require.NoError(t, err)
	assert.Equal(t, []string{"full text"}, chunks)
}

func TestOpenAIUpstreamErrorIsNarrativeFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	n, err := NewOpenAI(OpenAIConfig{APIURL: srv.URL, APIKey: "k"}, nil)
	require.NoError(t, err)
	_, err = collect(n.Stream(context.Background(), sampleRequest(true)))
	require.ErrorIs(t, err, models.ErrNarrative)
	assert.Contains(t, err.Error(), "401")
}

func TestOpenAIRequiresCredentials(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{APIURL: "https://x"}, nil)
	require.Error(t, err)
}

func seqOf(chunks []string, tail error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if tail != nil {
			yield("", tail)
		}
	}
}

func TestCollapse(t *testing.T) {
	chunks, err := collect(Collapse(seqOf([]string{"a", "b", "c"}, nil)))
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, chunks)

	boom := errors.New("boom")
	var got []string
	var gotErr error
	for c, err := range Collapse(seqOf([]string{"a", "b"}, boom)) {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, c)
	}
	assert.Equal(t, []string{"ab"}, got)
	assert.ErrorIs(t, gotErr, boom)

	chunks, err = collect(Collapse(seqOf(nil, nil)))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestNoneIsEmpty(t *testing.T) {
	chunks, err := collect(None{}.Stream(context.Background(), sampleRequest(true)))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestInstrumentPassesThrough(t *testing.T) {
	n := Instrument(stubNarrator{chunks: []string{"x", "y"}})
	assert.Equal(t, "stub", n.Name())
	chunks, err := collect(n.Stream(context.Background(), sampleRequest(true)))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, chunks)

	// stopping early must not panic
	for range n.Stream(context.Background(), sampleRequest(true)) {
		break
	}
}

func TestForOverride(t *testing.T) {
	fallback := stubNarrator{}
	assert.Equal(t, fallback, ForOverride(models.NarrativeOverride{}, fallback, nil))

	n := ForOverride(models.NarrativeOverride{APIURL: "https://api.example.com", APIKey: "k"}, fallback, nil)
	assert.Equal(t, ProviderOpenAI, n.Name())
}

type stubNarrator struct {
	chunks []string
}

func (s stubNarrator) Name() string { return "stub" }

func (s stubNarrator) Stream(context.Context, service.NarrativeRequest) iter.Seq2[string, error] {
	return seqOf(s.chunks, nil)
}

func TestProbe(t *testing.T) {
	var body chatRequest
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer ok.Close()

	p := NewProber(nil)
	res := p.Probe(context.Background(), models.TestAPIRequest{APIURL: ok.URL, APIKey: "k", APITimeout: 5})
	assert.True(t, res.Success)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 20, body.MaxTokens)
	assert.Equal(t, DefaultModel, body.Model)

	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer denied.Close()

	res = p.Probe(context.Background(), models.TestAPIRequest{APIURL: denied.URL, APIKey: "k", APIModel: "x", APITimeout: 5})
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, res.Message, "quota exceeded")

	res = p.Probe(context.Background(), models.TestAPIRequest{APIURL: "http://127.0.0.1:1", APIKey: "k", APITimeout: 1})
	assert.False(t, res.Success)
	assert.Zero(t, res.StatusCode)
}
