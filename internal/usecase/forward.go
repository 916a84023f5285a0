package usecase

import (
	"context"
	"fmt"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
)

// ForwardFragments publishes every fragment produced by start under requestID.
// The first publish error cancels the stream and is returned.
func ForwardFragments(ctx context.Context, pub domrepo.FragmentPublisher, requestID string, start func(context.Context) <-chan models.Fragment) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := 0
	for f := range start(ctx) {
		if err := pub.PublishFragment(ctx, requestID, f); err != nil {
			return n, fmt.Errorf("publish %s fragment for %s: %w", f.Kind, requestID, err)
		}
		n++
	}
	return n, ctx.Err()
}
