package scraper

import (
	"context"
	"errors"

	"github.com/rendis/mapsweep/internal/engine/extract"
	"github.com/rendis/mapsweep/internal/model"
)

var (
	// ErrTimeout marks a wait that ran out of time. It is recoverable.
	ErrTimeout = errors.New("timed out")
	// ErrNoInput is returned by Run when there are no keywords or locations.
	ErrNoInput = errors.New("no keywords or locations")
)

// Listing is a handle on one result in the current search feed.
type Listing struct {
	Index int
	Href  string
}

// Session is one browser tab. A session belongs to a single worker.
type Session interface {
	ClearSearch(ctx context.Context) error
	Submit(ctx context.Context, query string) error
	WaitForListings(ctx context.Context) error
	Scroll(ctx context.Context, deltaY int) error
	CountListings(ctx context.Context) (int, error)
	Listings(ctx context.Context, limit int) ([]Listing, error)
	Open(ctx context.Context, l Listing) error
	Details(ctx context.Context) (extract.View, error)
	Close() error
}

// SessionFactory opens sessions already sitting on the search page.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// CompletionLog records which pairs are finished.
type CompletionLog interface {
	Completed(ctx context.Context) (model.PairSet, error)
	MarkDone(ctx context.Context, pair model.WorkPair) error
}

// ResultSink persists businesses per keyword, dropping known identities.
// Save returns the records it actually stored.
type ResultSink interface {
	Save(ctx context.Context, keyword string, records []model.Business) ([]model.Business, error)
}
