package scraper

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Stats struct {
	PairsTotal       atomic.Int64
	PairsDone        atomic.Int64
	PairsAbandoned   atomic.Int64
	PairsFailed      atomic.Int64
	ListingsSeen     atomic.Int64
	ListingErrors    atomic.Int64
	BusinessesFound  atomic.Int64
	BusinessesStored atomic.Int64
}

// Finished counts pairs that left the queue, whatever their outcome.
func (s *Stats) Finished() int64 {
	return s.PairsDone.Load() + s.PairsAbandoned.Load() + s.PairsFailed.Load()
}

func (s *Stats) fields(elapsed time.Duration) []zap.Field {
	return []zap.Field{
		zap.Int64("pairs_done", s.PairsDone.Load()),
		zap.Int64("pairs_total", s.PairsTotal.Load()),
		zap.Int64("abandoned", s.PairsAbandoned.Load()),
		zap.Int64("failed", s.PairsFailed.Load()),
		zap.Int64("listings", s.ListingsSeen.Load()),
		zap.Int64("listing_errors", s.ListingErrors.Load()),
		zap.Int64("found", s.BusinessesFound.Load()),
		zap.Int64("stored", s.BusinessesStored.Load()),
		zap.Duration("elapsed", elapsed.Truncate(time.Second)),
	}
}

// reportProgress logs a PROGRESS line every interval until stop is closed.
func reportProgress(stats *Stats, logger *zap.Logger, interval time.Duration, stop <-chan struct{}) {
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			logger.Info("PROGRESS", stats.fields(time.Since(start))...)
		case <-stop:
			logger.Info("finished", stats.fields(time.Since(start))...)
			return
		}
	}
}
