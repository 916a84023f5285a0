package service

import (
	"context"
	"iter"

	"StockPulse/internal/domain/models"
)

// IndicatorCalculator derives technical series from a canonical table.
type IndicatorCalculator interface {
	Compute(table models.CanonicalTable) (models.IndicatorTable, error)
}

// Scorer turns an indicator table into a composite score and a label.
type Scorer interface {
	Score(table models.IndicatorTable) (int, error)
	Recommend(score int) string
}

// NarrativeRequest describes one narrative generation call.
type NarrativeRequest struct {
	Symbol string
	Market models.MarketType
	Table  models.IndicatorTable
	Stream bool
}

// Narrator produces commentary as a finite, single-use sequence of text chunks.
// A non-nil error ends the sequence.
type Narrator interface {
	Name() string
	Stream(ctx context.Context, req NarrativeRequest) iter.Seq2[string, error]
}
