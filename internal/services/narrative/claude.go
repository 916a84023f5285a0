package narrative

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
)

const (
	DefaultClaudeModel     = "claude-sonnet-4-5"
	DefaultClaudeMaxTokens = 1024
)

type Claude struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

func NewClaude(apiKey, model string, maxTokens int, temperature float64, opts ...option.RequestOption) *Claude {
	if model == "" {
		model = DefaultClaudeModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultClaudeMaxTokens
	}
	return &Claude{
		client:      anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
	}
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) params(req service.NarrativeRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(req))),
		},
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}
	return params
}

func (c *Claude) Stream(ctx context.Context, req service.NarrativeRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !req.Stream {
			resp, err := c.client.Messages.New(ctx, c.params(req))
			if err != nil {
				yield("", fmt.Errorf("%w: claude: %v", models.ErrNarrative, err))
				return
			}
			var sb strings.Builder
			for _, block := range resp.Content {
				if block.Type == "text" {
					sb.WriteString(block.Text)
				}
			}
			if sb.Len() > 0 {
				yield(sb.String(), nil)
			}
			return
		}

		stream := c.client.Messages.NewStreaming(ctx, c.params(req))
		defer stream.Close()
		for stream.Next() {
			ev, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			if !yield(delta.Text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("%w: claude: %v", models.ErrNarrative, err))
		}
	}
}

var _ service.Narrator = (*Claude)(nil)
