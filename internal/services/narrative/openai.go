package narrative

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"
)

const (
	DefaultModel   = "deepseek/deepseek-chat"
	DefaultTimeout = 60 * time.Second

	chatCompletionsPath = "/chat/completions"
	sseDataPrefix       = "data:"
	sseDone             = "[DONE]"
)

// FormatAPIURL turns a base URL into a chat completions endpoint.
// URLs that already name the endpoint are kept; a trailing /v1 gets the path appended;
// anything else gets /v1/chat/completions.
func FormatAPIURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	switch {
	case u == "":
		return ""
	case strings.HasSuffix(u, chatCompletionsPath):
		return u
	case strings.HasSuffix(u, "/v1"):
		return u + chatCompletionsPath
	}
	return u + "/v1" + chatCompletionsPath
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   chatMessage `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIConfig configures an OpenAI-compatible chat completions narrator.
type OpenAIConfig struct {
	APIURL      string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// OpenAI streams from any OpenAI-compatible chat completions endpoint (OpenAI, DeepSeek, OpenRouter...).
type OpenAI struct {
	url    string
	cfg    OpenAIConfig
	client *xhttp.Client
	logger *applogger.Logger
}

func NewOpenAI(cfg OpenAIConfig, logger *applogger.Logger) (*OpenAI, error) {
	if cfg.APIURL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("openai narrator requires api_url and api_key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &OpenAI{
		url:    FormatAPIURL(cfg.APIURL),
		cfg:    cfg,
		client: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		logger: logger,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Stream(ctx context.Context, req service.NarrativeRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body := chatRequest{
			Model:       o.cfg.Model,
			Messages:    []chatMessage{{Role: "user", Content: BuildPrompt(req)}},
			MaxTokens:   o.cfg.MaxTokens,
			Temperature: o.cfg.Temperature,
			Stream:      req.Stream,
		}
		resp, err := o.client.SendRequest(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    o.url,
			Headers: map[string]string{
				"Authorization": "Bearer " + o.cfg.APIKey,
				"Content-Type":  "application/json",
			},
			Body: body,
		})
		if err != nil {
			yield("", fmt.Errorf("%w: %v", models.ErrNarrative, err))
			return
		}
		defer resp.Body.Close()
		if err := xhttp.CheckStatus(resp); err != nil {
			yield("", fmt.Errorf("%w: %v", models.ErrNarrative, err))
			return
		}

		if !req.Stream {
			var out chatResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				yield("", fmt.Errorf("%w: decode completion: %v", models.ErrNarrative, err))
				return
			}
			if out.Error != nil {
				yield("", fmt.Errorf("%w: %s", models.ErrNarrative, out.Error.Message))
				return
			}
			if len(out.Choices) > 0 && out.Choices[0].Message.Content != "" {
				yield(out.Choices[0].Message.Content, nil)
			}
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, sseDataPrefix) {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
			if data == sseDone {
				return
			}
			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				o.logger.Debug("skipping malformed sse chunk", applogger.String("data", data))
				continue
			}
			if chunk.Error != nil {
				yield("", fmt.Errorf("%w: %s", models.ErrNarrative, chunk.Error.Message))
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("%w: read stream: %v", models.ErrNarrative, err))
		}
	}
}

var _ service.Narrator = (*OpenAI)(nil)
