package scraper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rendis/mapsweep/internal/config"
	"github.com/rendis/mapsweep/internal/engine/extract"
	"github.com/rendis/mapsweep/internal/model"
)

const progressInterval = 10 * time.Second

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPacer replaces the randomized pauses.
func WithPacer(p Pacer) Option {
	return func(o *Orchestrator) { o.pacer = p }
}

// WithShuffle sets how pending pairs are ordered. nil keeps input order.
func WithShuffle(fn func([]model.WorkPair)) Option {
	return func(o *Orchestrator) { o.shuffle = fn }
}

// WithOnStored is called with the records of a pair that the sink newly
// stored. Duplicates it dropped are not passed. It runs on the worker goroutine.
func WithOnStored(fn func(model.WorkPair, []model.Business)) Option {
	return func(o *Orchestrator) { o.onStored = fn }
}

// Orchestrator runs the keyword × location crawl over a pool of sessions.
type Orchestrator struct {
	cfg       config.Config
	factory   SessionFactory
	extractor *extract.Extractor
	done      CompletionLog
	sink      ResultSink
	logger    *zap.Logger

	pacer    Pacer
	stats    *Stats
	shuffle  func([]model.WorkPair)
	onStored func(model.WorkPair, []model.Business)
	limiter  *rate.Limiter
}

func New(cfg config.Config, factory SessionFactory, ex *extract.Extractor, done CompletionLog, sink ResultSink, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:       cfg,
		factory:   factory,
		extractor: ex,
		done:      done,
		sink:      sink,
		logger:    logger,
		pacer:     randomPacer{},
		shuffle:   randomShuffle,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.stats = &Stats{}
	if o.extractor == nil {
		o.extractor = extract.NewExtractor(logger, cfg.Browser.DetailsTimeout)
	}
	o.limiter = rate.NewLimiter(rate.Inf, 1)
	if spm := cfg.Crawl.SearchesPerMinute; spm > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(spm/60), 1)
	}
	return o
}

// Run processes every pending pair once. Pairs that fail stay pending and
// are picked up by the next run. Cancellation of ctx stops the workers
// after their current wait and is not reported as an error.
func (o *Orchestrator) Run(ctx context.Context, keywords, locations []string) (*Stats, error) {
	if len(keywords) == 0 || len(locations) == 0 {
		return o.stats, ErrNoInput
	}

	completed, err := o.done.Completed(ctx)
	if err != nil {
		o.logger.Warn("reading completion log, starting from scratch", zap.Error(err))
		completed = model.PairSet{}
	}

	pending := PendingPairs(keywords, locations, completed, o.shuffle)
	o.stats.PairsTotal.Store(int64(len(pending)))
	if len(pending) == 0 {
		o.logger.Info("all combinations already processed", zap.Int("completed", len(completed)))
		return o.stats, nil
	}
	o.logger.Info("starting crawl",
		zap.Int("pending", len(pending)),
		zap.Int("completed", len(completed)),
		zap.Int("keywords", len(keywords)),
		zap.Int("locations", len(locations)),
		zap.String("rate", searchesPerMinute(o.limiter)))

	sessions := o.openSessions(ctx, min(max(o.cfg.Crawl.Concurrency, 1), len(pending)))
	defer o.closeSessions(sessions)
	if len(sessions) == 0 {
		if err := ctx.Err(); err != nil {
			return o.stats, nil
		}
		return o.stats, errors.New("no browser session could be opened")
	}

	stop := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		reportProgress(o.stats, o.logger, progressInterval, stop)
	}()

	queue := NewQueue(pending)
	var g errgroup.Group
	for i, s := range sessions {
		logger := o.logger.With(zap.Int("worker", i))
		g.Go(func() error {
			o.work(ctx, queue, s, logger)
			return nil
		})
	}
	_ = g.Wait()

	close(stop)
	<-progressDone
	return o.stats, nil
}

func (o *Orchestrator) work(ctx context.Context, queue *Queue, s Session, logger *zap.Logger) {
	for ctx.Err() == nil {
		pair, ok := queue.Pop()
		if !ok {
			return
		}
		o.processPair(ctx, s, pair, logger.With(zap.String("keyword", pair.Keyword), zap.String("location", pair.Location)))
		if queue.Len() > 0 {
			if err := o.pacer.Pause(ctx, o.cfg.Pacing.BetweenPairs); err != nil {
				return
			}
		}
	}
}

func (o *Orchestrator) openSessions(ctx context.Context, n int) []Session {
	sessions := make([]Session, 0, n)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		s, err := o.factory.NewSession(ctx)
		if err != nil {
			o.logger.Error("opening session", zap.Int("session", i), zap.Error(err))
			continue
		}
		sessions = append(sessions, s)
	}
	o.logger.Info("sessions ready", zap.Int("sessions", len(sessions)), zap.Int("requested", n))
	return sessions
}

func (o *Orchestrator) closeSessions(sessions []Session) {
	for i, s := range sessions {
		if err := s.Close(); err != nil {
			o.logger.Warn("closing session", zap.Int("session", i), zap.Error(err))
		}
	}
}

// Stats returns the counters updated by Run.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

func searchesPerMinute(l *rate.Limiter) string {
	if l.Limit() == rate.Inf {
		return "unlimited"
	}
	return fmt.Sprintf("%.1f/min", math.Round(float64(l.Limit())*600)/10)
}
