package narrative

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type Gemini struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGemini(ctx context.Context, apiKey, model string, maxTokens int, temperature float64) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	cfg := &genai.GenerateContentConfig{}
	if temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(temperature))
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	return &Gemini{client: client, model: model, config: cfg}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Stream uses GenerateContentStream when streaming and GenerateContent otherwise.
func (g *Gemini) Stream(ctx context.Context, req service.NarrativeRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents := genai.Text(BuildPrompt(req))
		if !req.Stream {
			resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.config)
			if err != nil {
				yield("", fmt.Errorf("%w: gemini: %v", models.ErrNarrative, err))
				return
			}
			if text := resp.Text(); text != "" {
				yield(text, nil)
			}
			return
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, g.config) {
			if err != nil {
				yield("", fmt.Errorf("%w: gemini: %v", models.ErrNarrative, err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

var _ service.Narrator = (*Gemini)(nil)
