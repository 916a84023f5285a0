package models

import (
	"context"
	"errors"
)

// Fault taxonomy. Every error produced by the pipeline wraps exactly one of these.
var (
	ErrProviderFault     = errors.New("provider fault")
	ErrSchemaMismatch    = errors.New("schema mismatch")
	ErrEmptyData         = errors.New("empty data")
	ErrComputation       = errors.New("computation fault")
	ErrNarrative         = errors.New("narrative fault")
	ErrUnsupportedMarket = errors.New("unsupported market type")
	ErrInvalidDate       = errors.New("invalid date")
)

// ErrorKind maps an error to a stable label for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrEmptyData):
		return "empty_data"
	case errors.Is(err, ErrComputation):
		return "computation"
	case errors.Is(err, ErrNarrative):
		return "narrative"
	case errors.Is(err, ErrUnsupportedMarket):
		return "unsupported_market"
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "provider"
	}
}
