package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"StockPulse/internal/domain/models"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"
)

const probeMessage = "Hello, this is a test message. Please respond with 'API connection successful'."

// ProbeResult is the outcome of an API connection test.
type ProbeResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Prober checks that an OpenAI-compatible endpoint accepts a key and model.
type Prober struct {
	logger *applogger.Logger
}

func NewProber(logger *applogger.Logger) *Prober {
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &Prober{logger: logger}
}

// Probe posts a tiny chat completion. Transport failures come back as an unsuccessful
// result without a status code.
func (p *Prober) Probe(ctx context.Context, req models.TestAPIRequest) ProbeResult {
	model := req.APIModel
	if model == "" {
		model = DefaultModel
	}
	timeout := req.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	url := FormatAPIURL(req.APIURL)
	client := xhttp.NewClient(xhttp.WithTimeout(timeout))

	p.logger.Debug("probing narrative api",
		applogger.String("url", url),
		applogger.String("model", model),
		applogger.Bool("api_key_set", req.APIKey != ""),
	)

	resp, err := client.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    url,
		Headers: map[string]string{
			"Authorization": "Bearer " + req.APIKey,
			"Content-Type":  "application/json",
		},
		Body: chatRequest{
			Model:     model,
			Messages:  []chatMessage{{Role: "user", Content: probeMessage}},
			MaxTokens: 20,
		},
	})
	if err != nil {
		p.logger.Warn("api probe request failed", applogger.Error(err))
		return ProbeResult{Message: fmt.Sprintf("request error: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		p.logger.Info("api probe succeeded", applogger.String("url", url))
		return ProbeResult{Success: true, Message: "API connection test succeeded", StatusCode: resp.StatusCode}
	}

	msg := probeErrorMessage(resp)
	p.logger.Warn("api probe failed", applogger.Int("status", resp.StatusCode), applogger.String("reason", msg))
	return ProbeResult{
		Message:    "API connection test failed: " + msg,
		StatusCode: resp.StatusCode,
	}
}

// probeErrorMessage prefers error.message from a JSON body, then the first 200 bytes of text.
func probeErrorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	if len(body) > 0 {
		return string(body)
	}
	return fmt.Sprintf("HTTP %d error", resp.StatusCode)
}
