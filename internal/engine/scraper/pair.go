package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/rendis/mapsweep/internal/model"
)

// errRetriesExhausted means the listings never showed up. The pair is
// abandoned for this run.
var errRetriesExhausted = errors.New("listings did not load")

// processPair runs one search end to end. Only a pair that was searched,
// collected and saved is marked complete; any failure leaves it pending.
func (o *Orchestrator) processPair(ctx context.Context, s Session, pair model.WorkPair, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			o.stats.PairsFailed.Add(1)
			logger.Error("panic while processing pair", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	err := o.crawlPair(ctx, s, pair, logger)
	switch {
	case err == nil:
		o.stats.PairsDone.Add(1)
	case ctx.Err() != nil:
		logger.Info("pair interrupted, left pending")
	case errors.Is(err, errRetriesExhausted):
		o.stats.PairsAbandoned.Add(1)
		logger.Warn("max retries reached, abandoning pair", zap.Int("max_retries", o.maxRetries()))
	default:
		o.stats.PairsFailed.Add(1)
		logger.Error("error processing pair", zap.Error(err))
	}
}

func (o *Orchestrator) crawlPair(ctx context.Context, s Session, pair model.WorkPair, logger *zap.Logger) error {
	pacing := o.cfg.Pacing

	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := s.ClearSearch(ctx); err != nil {
		return fmt.Errorf("clearing search box: %w", err)
	}
	if err := o.pacer.Pause(ctx, pacing.PreSearch); err != nil {
		return err
	}
	query := pair.Query()
	logger.Info("searching", zap.String("query", query))
	if err := s.Submit(ctx, query); err != nil {
		return fmt.Errorf("submitting %q: %w", query, err)
	}
	if err := o.pacer.Pause(ctx, pacing.PostSearch); err != nil {
		return err
	}
	if err := o.pacer.Pause(ctx, fixed(pacing.Settle)); err != nil {
		return err
	}

	if err := o.waitForListings(ctx, s, logger); err != nil {
		return err
	}

	n, err := CollectListings(ctx, s, o.cfg.Crawl.Target, pacing, o.pacer, logger)
	if err != nil {
		return err
	}
	listings, err := s.Listings(ctx, n)
	if err != nil {
		return fmt.Errorf("resolving listings: %w", err)
	}
	logger.Info("collecting listings", zap.Int("listings", len(listings)))

	var found []model.Business
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.stats.ListingsSeen.Add(1)
		rec, err := o.readListing(ctx, s, l)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.stats.ListingErrors.Add(1)
			logger.Warn("error processing listing", zap.Int("listing", l.Index), zap.Error(err))
			continue
		}
		if !rec.HasName() {
			logger.Debug("listing without name, skipped", zap.Int("listing", l.Index))
			continue
		}
		rec.Query = query
		found = append(found, rec)
		o.stats.BusinessesFound.Add(1)
	}

	if len(found) > 0 {
		stored, err := o.sink.Save(ctx, pair.Keyword, found)
		if err != nil {
			return fmt.Errorf("saving results: %w", err)
		}
		o.stats.BusinessesStored.Add(int64(len(stored)))
		if o.onStored != nil && len(stored) > 0 {
			o.onStored(pair, stored)
		}
	} else {
		logger.Info("no businesses found")
	}

	if err := o.done.MarkDone(ctx, pair); err != nil {
		return fmt.Errorf("marking pair done: %w", err)
	}
	return nil
}

func (o *Orchestrator) readListing(ctx context.Context, s Session, l Listing) (model.Business, error) {
	if err := s.Open(ctx, l); err != nil {
		return model.Business{}, fmt.Errorf("opening listing: %w", err)
	}
	if err := o.pacer.Pause(ctx, fixed(o.cfg.Pacing.Settle)); err != nil {
		return model.Business{}, err
	}
	view, err := s.Details(ctx)
	if err != nil {
		return model.Business{}, fmt.Errorf("reading details: %w", err)
	}
	return o.extractor.Extract(ctx, view), nil
}

// waitForListings makes up to maxRetries attempts. Only timeouts are
// retried.
func (o *Orchestrator) waitForListings(ctx context.Context, s Session, logger *zap.Logger) error {
	attempts := o.maxRetries()
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.cfg.Pacing.RetryPause), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := s.WaitForListings(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrTimeout):
			return err
		default:
			return backoff.Permanent(err)
		}
	}, policy, func(err error, next time.Duration) {
		logger.Warn("timeout waiting for listings, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", attempts),
			zap.Duration("next", next))
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, ErrTimeout):
		return fmt.Errorf("%w after %d attempts: %w", errRetriesExhausted, attempt, err)
	default:
		return fmt.Errorf("waiting for listings: %w", err)
	}
}

func (o *Orchestrator) maxRetries() int {
	return max(o.cfg.Crawl.MaxRetries, 1)
}
