package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rendis/mapsweep/internal/model"
)

// ResultFiles stores each partition as <dir>/<partition>.json, the
// authoritative copy, plus a derived <dir>/<partition>.csv.
type ResultFiles struct {
	dir    string
	lock   *fileLock
	logger *zap.Logger
}

func NewResultFiles(dir string, logger *zap.Logger) *ResultFiles {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultFiles{
		dir:    dir,
		lock:   newFileLock(filepath.Join(dir, ".results.lock")),
		logger: logger,
	}
}

func (r *ResultFiles) JSONPath(keyword string) string {
	return filepath.Join(r.dir, model.PartitionName(keyword)+".json")
}

func (r *ResultFiles) CSVPath(keyword string) string {
	return filepath.Join(r.dir, model.PartitionName(keyword)+".csv")
}

// Save appends the records whose (name, address) is not stored yet and
// returns them.
func (r *ResultFiles) Save(ctx context.Context, keyword string, records []model.Business) ([]model.Business, error) {
	unlock, err := r.lock.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	jsonPath := r.JSONPath(keyword)
	existing, err := LoadPartition(jsonPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			aside, mvErr := moveAside(jsonPath)
			if mvErr != nil {
				return nil, fmt.Errorf("moving unreadable partition aside: %w", mvErr)
			}
			r.logger.Warn("unreadable partition moved aside, starting empty", zap.String("path", aside), zap.Error(err))
		}
		existing = nil
	}

	merged, added := mergeNew(existing, records)
	if len(added) == 0 {
		return nil, nil
	}

	if err := writeJSONAtomic(jsonPath, merged); err != nil {
		return nil, err
	}

	csvPath := r.CSVPath(keyword)
	if err := WriteCSVFile(csvPath, merged); err != nil {
		r.logger.Warn("failed to write csv projection", zap.String("path", csvPath), zap.Error(err))
	}

	r.logger.Info("saved businesses",
		zap.String("keyword", keyword),
		zap.String("file", jsonPath),
		zap.Int("added", len(added)),
		zap.Int("total", len(merged)))
	return added, nil
}

// mergeNew appends to existing every named record whose identity is not
// already present, including repeats within records. added holds the
// appended records.
func mergeNew(existing, records []model.Business) (merged, added []model.Business) {
	seen := make(map[model.Identity]bool, len(existing)+len(records))
	for _, b := range existing {
		seen[b.Identity()] = true
	}

	merged = existing
	for _, b := range records {
		if !b.HasName() || seen[b.Identity()] {
			continue
		}
		seen[b.Identity()] = true
		merged = append(merged, b)
		added = append(added, b)
	}
	return merged, added
}

// LoadPartition reads a partition JSON file.
func LoadPartition(path string) ([]model.Business, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []model.Business
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return records, nil
}
