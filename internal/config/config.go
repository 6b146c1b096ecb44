package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Range is a closed interval used for randomized pauses.
type Range struct {
	Min time.Duration
	Max time.Duration
}

type Input struct {
	KeywordsFile   string
	LocationsFile  string
	LocationColumn string
}

type Output struct {
	Dir           string
	CompletionLog string // completion log path; relative paths resolve against Dir
	Store         string // json | sqlite
	DBName        string
}

type Crawl struct {
	Target            int // listings per search
	MaxRetries        int // attempts at waiting for listings
	Concurrency       int // browser tabs
	SearchesPerMinute float64
}

type Browser struct {
	Headless        bool
	BaseURL         string
	UserAgent       string
	ChromePath      string
	ViewportWidth   int64
	ViewportHeight  int64
	PageLoadTimeout time.Duration
	PageWaitTimeout time.Duration
	DetailsTimeout  time.Duration
}

type Pacing struct {
	ScrollBatch  int
	ScrollMin    int // pixels
	ScrollMax    int
	ScrollDelay  Range
	Settle       time.Duration
	PreSearch    Range
	PostSearch   Range
	BetweenPairs Range
	RetryPause   time.Duration
}

type Log struct {
	Level   string
	File    string
	Console bool
}

// Config holds everything a scan needs. It is built once by the CLI and
// passed down explicitly.
type Config struct {
	Input   Input
	Output  Output
	Crawl   Crawl
	Browser Browser
	Pacing  Pacing
	Log     Log
	TUI     bool
}

func Default() Config {
	return Config{
		Input: Input{
			KeywordsFile:   "keywords.txt",
			LocationsFile:  "all_zip.csv",
			LocationColumn: "zip",
		},
		Output: Output{
			Dir:           ".",
			CompletionLog: "processed_combinations.json",
			Store:         StoreJSON,
			DBName:        "mapsweep.db",
		},
		Crawl: Crawl{
			Target:      100,
			MaxRetries:  3,
			Concurrency: 4,
		},
		Browser: Browser{
			BaseURL:         "https://www.google.com/maps",
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			ViewportWidth:   1920,
			ViewportHeight:  1080,
			PageLoadTimeout: 60 * time.Second,
			PageWaitTimeout: 5 * time.Second,
			DetailsTimeout:  10 * time.Second,
		},
		Pacing: Pacing{
			ScrollBatch:  10,
			ScrollMin:    300,
			ScrollMax:    800,
			ScrollDelay:  Range{Min: 200 * time.Millisecond, Max: 1200 * time.Millisecond},
			Settle:       5 * time.Second,
			PreSearch:    Range{Min: 2 * time.Second, Max: 5 * time.Second},
			PostSearch:   Range{Min: 5 * time.Second, Max: 11 * time.Second},
			BetweenPairs: Range{Min: 10 * time.Second, Max: 20 * time.Second},
			RetryPause:   time.Second,
		},
		Log: Log{
			Level:   "info",
			Console: true,
		},
	}
}

// Load returns the defaults overlaid with an optional .env file and
// MAPSWEEP_* environment variables. A missing env file is not an error.
func Load(envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if v := os.Getenv("MAPSWEEP_CHROME_PATH"); v != "" {
		cfg.Browser.ChromePath = v
	} else if v := os.Getenv("CHROME_PATH"); v != "" {
		cfg.Browser.ChromePath = v
	}
	if v := os.Getenv("MAPSWEEP_BASE_URL"); v != "" {
		cfg.Browser.BaseURL = v
	}
	if v := os.Getenv("MAPSWEEP_USER_AGENT"); v != "" {
		cfg.Browser.UserAgent = v
	}
	if v := os.Getenv("MAPSWEEP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MAPSWEEP_STORE"); v != "" {
		cfg.Output.Store = v
	}
	if v := os.Getenv("MAPSWEEP_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("MAPSWEEP_HEADLESS: %w", err)
		}
		cfg.Browser.Headless = b
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Crawl.Target <= 0 {
		return fmt.Errorf("target must be positive, got %d", c.Crawl.Target)
	}
	if c.Crawl.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive, got %d", c.Crawl.MaxRetries)
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Crawl.Concurrency)
	}
	if c.Crawl.SearchesPerMinute < 0 {
		return fmt.Errorf("rate must not be negative")
	}
	if c.Pacing.ScrollBatch <= 0 {
		return fmt.Errorf("scroll batch must be positive")
	}
	if c.Pacing.ScrollMin <= 0 || c.Pacing.ScrollMax < c.Pacing.ScrollMin {
		return fmt.Errorf("invalid scroll range [%d, %d]", c.Pacing.ScrollMin, c.Pacing.ScrollMax)
	}
	for name, r := range map[string]Range{
		"scroll delay":  c.Pacing.ScrollDelay,
		"pre-search":    c.Pacing.PreSearch,
		"post-search":   c.Pacing.PostSearch,
		"between pairs": c.Pacing.BetweenPairs,
	} {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("invalid %s range [%s, %s]", name, r.Min, r.Max)
		}
	}
	switch c.Output.Store {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("unknown store %q (json or sqlite)", c.Output.Store)
	}
	return nil
}
