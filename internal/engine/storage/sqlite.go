package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rendis/mapsweep/internal/model"
)

// SQLiteStore keeps completed pairs and businesses in one database. It
// satisfies both the completion log and the result sink.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	csvDir string
	logger *zap.Logger
}

// NewSQLiteStore opens dbPath. When csvDir is not empty every save also
// rewrites the partition's CSV projection there.
func NewSQLiteStore(dbPath, csvDir string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	// Optimize for write throughput
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, csvDir: csvDir, logger: logger}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS completed_pairs (
		keyword TEXT NOT NULL,
		location TEXT NOT NULL,
		completed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (keyword, location)
	);
	CREATE TABLE IF NOT EXISTS businesses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		keyword TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		website TEXT,
		phone TEXT,
		reviews_count INTEGER,
		reviews_average REAL,
		lat REAL,
		lng REAL,
		query TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(keyword, name, address)
	);
	CREATE INDEX IF NOT EXISTS idx_businesses_keyword ON businesses(keyword);
	`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Completed(ctx context.Context) (model.PairSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT keyword, location FROM completed_pairs`)
	if err != nil {
		return nil, fmt.Errorf("querying completed pairs: %w", err)
	}
	defer rows.Close()

	set := model.PairSet{}
	for rows.Next() {
		var p model.WorkPair
		if err := rows.Scan(&p.Keyword, &p.Location); err != nil {
			return nil, fmt.Errorf("scanning completed pair: %w", err)
		}
		set.Add(p)
	}
	return set, rows.Err()
}

func (s *SQLiteStore) MarkDone(ctx context.Context, pair model.WorkPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO completed_pairs (keyword, location) VALUES (?, ?)`,
		pair.Keyword, pair.Location)
	if err != nil {
		return fmt.Errorf("marking %s done: %w", pair, err)
	}
	s.logger.Info("logged processed combination",
		zap.String("keyword", pair.Keyword), zap.String("location", pair.Location))
	return nil
}

// Save inserts records into the keyword's partition, ignoring identities
// that are already stored.
func (s *SQLiteStore) Save(ctx context.Context, keyword string, records []model.Business) ([]model.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO businesses
		(keyword, name, address, website, phone, reviews_count, reviews_average, lat, lng, query)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	var inserted []model.Business
	for _, b := range records {
		if !b.HasName() {
			continue
		}
		res, err := stmt.ExecContext(ctx,
			keyword, b.Name, b.Address, b.Website, b.Phone,
			nullInt(b.ReviewsCount), nullFloat(b.ReviewsAverage),
			nullFloat(b.Latitude), nullFloat(b.Longitude), b.Query,
		)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("inserting %q: %w", b.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, b)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing tx: %w", err)
	}

	if s.csvDir != "" && len(inserted) > 0 {
		all, err := s.records(ctx, keyword)
		if err == nil {
			err = WriteCSVFile(filepath.Join(s.csvDir, model.PartitionName(keyword)+".csv"), all)
		}
		if err != nil {
			s.logger.Warn("failed to write csv projection", zap.String("keyword", keyword), zap.Error(err))
		}
	}

	return inserted, nil
}

// Records returns a partition in insertion order.
func (s *SQLiteStore) Records(ctx context.Context, keyword string) ([]model.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records(ctx, keyword)
}

func (s *SQLiteStore) records(ctx context.Context, keyword string) ([]model.Business, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, address, website, phone, reviews_count, reviews_average, lat, lng, query
		FROM businesses WHERE keyword = ? ORDER BY id`, keyword)
	if err != nil {
		return nil, fmt.Errorf("querying businesses: %w", err)
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		var (
			b                     model.Business
			website, phone, query sql.NullString
			count                 sql.NullInt64
			avg, lat, lng         sql.NullFloat64
		)
		if err := rows.Scan(&b.Name, &b.Address, &website, &phone, &count, &avg, &lat, &lng, &query); err != nil {
			return nil, fmt.Errorf("scanning business: %w", err)
		}
		b.Website, b.Phone, b.Query = website.String, phone.String, query.String
		if count.Valid {
			n := int(count.Int64)
			b.ReviewsCount = &n
		}
		b.ReviewsAverage = floatPtr(avg)
		b.Latitude = floatPtr(lat)
		b.Longitude = floatPtr(lng)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Partitions lists the keywords that have stored businesses.
func (s *SQLiteStore) Partitions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT keyword FROM businesses ORDER BY keyword`)
	if err != nil {
		return nil, fmt.Errorf("querying partitions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM businesses").Scan(&count)
	return count, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
