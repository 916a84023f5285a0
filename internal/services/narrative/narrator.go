package narrative

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
	svcmetrics "StockPulse/internal/service/metrics"
	"StockPulse/pkg/config"
	applogger "StockPulse/pkg/logger"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
	ProviderNone   = "none"
)

// New builds the configured narrator wrapped with metrics.
func New(ctx context.Context, cfg *config.Config, logger *applogger.Logger) (service.Narrator, error) {
	n := cfg.Narrative
	var (
		inner service.Narrator
		err   error
	)
	switch n.Provider {
	case ProviderNone, "":
		return None{}, nil
	case ProviderOpenAI:
		inner, err = NewOpenAI(OpenAIConfig{
			APIURL:      n.APIURL,
			APIKey:      n.APIKey,
			Model:       n.Model,
			MaxTokens:   n.MaxTokens,
			Temperature: n.Temperature,
			Timeout:     n.Timeout,
		}, logger)
	case ProviderGemini:
		inner, err = NewGemini(ctx, n.APIKey, n.Model, n.MaxTokens, n.Temperature)
	case ProviderClaude:
		inner = NewClaude(n.APIKey, n.Model, n.MaxTokens, n.Temperature)
	default:
		err = fmt.Errorf("unknown narrative provider %q", n.Provider)
	}
	if err != nil {
		return nil, err
	}
	svcmetrics.Register()
	return Instrument(inner), nil
}

// ForOverride returns a per-request OpenAI-compatible narrator when the caller supplied one,
// otherwise fallback.
func ForOverride(o models.NarrativeOverride, fallback service.Narrator, logger *applogger.Logger) service.Narrator {
	if !o.Set() {
		return fallback
	}
	n, err := NewOpenAI(OpenAIConfig{
		APIURL:  o.APIURL,
		APIKey:  o.APIKey,
		Model:   o.APIModel,
		Timeout: time.Duration(o.APITimeout) * time.Second,
	}, logger)
	if err != nil {
		return fallback
	}
	return Instrument(n)
}

// None is the disabled narrator; its sequence is empty.
type None struct{}

func (None) Name() string { return ProviderNone }

func (None) Stream(context.Context, service.NarrativeRequest) iter.Seq2[string, error] {
	return func(func(string, error) bool) {}
}

// Collapse joins every chunk of seq into a single chunk. An error ends the sequence
// after whatever text arrived before it.
func Collapse(seq iter.Seq2[string, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var sb strings.Builder
		for chunk, err := range seq {
			if err != nil {
				if sb.Len() > 0 && !yield(sb.String(), nil) {
					return
				}
				yield("", err)
				return
			}
			sb.WriteString(chunk)
		}
		if sb.Len() > 0 {
			yield(sb.String(), nil)
		}
	}
}

type instrumented struct {
	service.Narrator
}

// Instrument records latency, chunk and error counts for n.
func Instrument(n service.Narrator) service.Narrator {
	return instrumented{Narrator: n}
}

func (i instrumented) Stream(ctx context.Context, req service.NarrativeRequest) iter.Seq2[string, error] {
	name := i.Name()
	return func(yield func(string, error) bool) {
		start := time.Now()
		defer func() {
			svcmetrics.NarrativeLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}()
		for chunk, err := range i.Narrator.Stream(ctx, req) {
			if err != nil {
				svcmetrics.NarrativeErrors.WithLabelValues(name).Inc()
			} else {
				svcmetrics.NarrativeChunks.WithLabelValues(name).Inc()
			}
			if !yield(chunk, err) {
				return
			}
		}
	}
}
