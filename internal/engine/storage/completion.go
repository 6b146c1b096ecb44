package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/rendis/mapsweep/internal/model"
)

// CompletionFile persists completed pairs as a JSON array of
// [keyword, location] arrays.
type CompletionFile struct {
	path   string
	lock   *fileLock
	logger *zap.Logger
}

func NewCompletionFile(path string, logger *zap.Logger) *CompletionFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionFile{
		path:   path,
		lock:   newFileLock(path + ".lock"),
		logger: logger,
	}
}

func (c *CompletionFile) Path() string { return c.path }

// Completed loads the set of finished pairs. A missing or unreadable log is
// an empty log.
func (c *CompletionFile) Completed(ctx context.Context) (model.PairSet, error) {
	pairs, _ := c.read()
	set := make(model.PairSet, len(pairs))
	for _, p := range pairs {
		set.Add(p)
	}
	return set, nil
}

// MarkDone appends pair unless it is already recorded.
func (c *CompletionFile) MarkDone(ctx context.Context, pair model.WorkPair) error {
	unlock, err := c.lock.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	pairs, malformed := c.read()
	if malformed {
		aside, err := moveAside(c.path)
		if err != nil {
			return fmt.Errorf("moving malformed completion log aside: %w", err)
		}
		c.logger.Warn("moved malformed completion log aside", zap.String("path", aside))
	}
	for _, p := range pairs {
		if p == pair {
			return nil
		}
	}
	pairs = append(pairs, pair)

	out := make([][2]string, len(pairs))
	for i, p := range pairs {
		out[i] = [2]string{p.Keyword, p.Location}
	}
	if err := writeJSONAtomic(c.path, out); err != nil {
		return fmt.Errorf("marking %s done: %w", pair, err)
	}
	c.logger.Info("logged processed combination",
		zap.String("keyword", pair.Keyword), zap.String("location", pair.Location))
	return nil
}

func (c *CompletionFile) read() (pairs []model.WorkPair, malformed bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("reading completion log, treating as empty", zap.String("path", c.path), zap.Error(err))
		}
		return nil, false
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Warn("malformed completion log, treating as empty", zap.String("path", c.path), zap.Error(err))
		return nil, true
	}

	pairs = make([]model.WorkPair, 0, len(raw))
	for _, item := range raw {
		var pair []string
		if err := json.Unmarshal(item, &pair); err != nil || len(pair) != 2 {
			continue
		}
		pairs = append(pairs, model.WorkPair{Keyword: pair[0], Location: pair[1]})
	}
	return pairs, false
}
