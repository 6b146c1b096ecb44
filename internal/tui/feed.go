package tui

import (
	"sync"
	"time"

	"github.com/rendis/mapsweep/internal/model"
)

const maxRecent = 8

// RecentEntry is a business shown in the live feed.
type RecentEntry struct {
	Name     string
	Address  string
	Query    string
	StoredAt time.Time
}

// Feed keeps the most recently stored businesses, newest first. Workers
// write to it while the UI reads.
type Feed struct {
	mu      sync.Mutex
	entries []RecentEntry
}

func NewFeed() *Feed {
	return &Feed{}
}

// Add has the signature of scraper.WithOnStored.
func (f *Feed) Add(pair model.WorkPair, records []model.Business) {
	now := time.Now()
	fresh := make([]RecentEntry, 0, min(len(records), maxRecent))
	for i := len(records) - 1; i >= 0 && len(fresh) < maxRecent; i-- {
		r := records[i]
		fresh = append(fresh, RecentEntry{Name: r.Name, Address: r.Address, Query: pair.Query(), StoredAt: now})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(fresh, f.entries...)
	if len(f.entries) > maxRecent {
		f.entries = f.entries[:maxRecent]
	}
}

func (f *Feed) Recent() []RecentEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecentEntry, len(f.entries))
	copy(out, f.entries)
	return out
}
