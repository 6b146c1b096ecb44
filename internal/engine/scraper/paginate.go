package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rendis/mapsweep/internal/config"
)

// Scroller is the part of a Session that pagination needs.
type Scroller interface {
	Scroll(ctx context.Context, deltaY int) error
	CountListings(ctx context.Context) (int, error)
}

// CollectListings scrolls the result feed in batches until it holds at
// least target listings or a batch adds nothing. It returns how many
// listings to take: target on convergence, otherwise whatever is loaded
// (possibly zero). There is no batch cap; the stall check ends the loop
// because the feed is finite.
func CollectListings(ctx context.Context, s Scroller, target int, pacing config.Pacing, pacer Pacer, logger *zap.Logger) (int, error) {
	previous := 0
	for batch := 1; ; batch++ {
		for i := 0; i < pacing.ScrollBatch; i++ {
			if err := s.Scroll(ctx, pacer.ScrollDelta(pacing.ScrollMin, pacing.ScrollMax)); err != nil {
				return 0, fmt.Errorf("scrolling: %w", err)
			}
			if err := pacer.Pause(ctx, pacing.ScrollDelay); err != nil {
				return 0, err
			}
		}
		if err := pacer.Pause(ctx, fixed(pacing.Settle)); err != nil {
			return 0, err
		}

		current, err := s.CountListings(ctx)
		if err != nil {
			return 0, fmt.Errorf("counting listings: %w", err)
		}
		logger.Debug("current listings count", zap.Int("batch", batch), zap.Int("count", current))

		switch {
		case current >= target:
			logger.Info("reached target", zap.Int("listings", target), zap.Int("batches", batch))
			return target, nil
		case current <= previous:
			logger.Info("no more listings", zap.Int("listings", current), zap.Int("batches", batch))
			return current, nil
		}
		previous = current
	}
}
