package scraper

import (
	"math/rand/v2"

	"github.com/rendis/mapsweep/internal/model"
)

// Queue hands out each pair to exactly one worker.
type Queue struct {
	pairs chan model.WorkPair
}

func NewQueue(pairs []model.WorkPair) *Queue {
	ch := make(chan model.WorkPair, len(pairs))
	for _, p := range pairs {
		ch <- p
	}
	close(ch)
	return &Queue{pairs: ch}
}

// Pop returns the next pair; ok is false once the queue is drained.
func (q *Queue) Pop() (model.WorkPair, bool) {
	p, ok := <-q.pairs
	return p, ok
}

func (q *Queue) Len() int {
	return len(q.pairs)
}

// PendingPairs returns keywords × locations in shuffled order, without
// repeats and without pairs already in done.
func PendingPairs(keywords, locations []string, done model.PairSet, shuffle func([]model.WorkPair)) []model.WorkPair {
	seen := make(model.PairSet, len(keywords)*len(locations))
	var pending []model.WorkPair
	for _, kw := range keywords {
		for _, loc := range locations {
			p := model.WorkPair{Keyword: kw, Location: loc}
			if seen.Has(p) || done.Has(p) {
				continue
			}
			seen.Add(p)
			pending = append(pending, p)
		}
	}
	if shuffle != nil {
		shuffle(pending)
	}
	return pending
}

func randomShuffle(pairs []model.WorkPair) {
	rand.Shuffle(len(pairs), func(i, j int) {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	})
}
