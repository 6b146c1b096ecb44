package scraper

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rendis/mapsweep/internal/config"
)

// Pacer inserts the human-looking pauses between UI actions.
type Pacer interface {
	Pause(ctx context.Context, r config.Range) error
	ScrollDelta(lo, hi int) int
}

type randomPacer struct{}

func (randomPacer) Pause(ctx context.Context, r config.Range) error {
	d := r.Min
	if r.Max > r.Min {
		d += time.Duration(rand.Int64N(int64(r.Max - r.Min)))
	}
	return sleep(ctx, d)
}

func (randomPacer) ScrollDelta(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rand.IntN(hi-lo+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fixed is a degenerate range for single waits.
func fixed(d time.Duration) config.Range {
	return config.Range{Min: d, Max: d}
}
