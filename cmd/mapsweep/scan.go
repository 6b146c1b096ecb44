package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rendis/mapsweep/internal/config"
	"github.com/rendis/mapsweep/internal/engine/browser"
	"github.com/rendis/mapsweep/internal/engine/extract"
	"github.com/rendis/mapsweep/internal/engine/scraper"
	"github.com/rendis/mapsweep/internal/engine/storage"
	"github.com/rendis/mapsweep/internal/input"
	"github.com/rendis/mapsweep/internal/logx"
	"github.com/rendis/mapsweep/internal/tui"
)

type scanFlags struct {
	envFile      string
	keywordsFile string
	zipFile      string
	zipColumn    string
	total        int
	maxRetries   int
	concurrent   int
	headless     bool
	output       string
	store        string
	rate         float64
	logLevel     string
	chromePath   string
	tui          bool
}

func newScanCmd() *cobra.Command {
	var f scanFlags
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Crawl every keyword × location pair",
		Example: `  mapsweep scan --keywords-file keywords.txt --zip-file all_zip.csv
  mapsweep scan --total 50 --concurrent 2 --headless --store sqlite --output ./data
  mapsweep scan --rate 6 --tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd.Flags())
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	f.bind(cmd.Flags())
	return cmd
}

func (f *scanFlags) bind(fl *pflag.FlagSet) {
	d := config.Default()
	fl.StringVar(&f.envFile, "env-file", ".env", "Optional .env file with MAPSWEEP_* settings")
	fl.StringVar(&f.keywordsFile, "keywords-file", d.Input.KeywordsFile, "Newline-delimited keywords")
	fl.StringVar(&f.zipFile, "zip-file", d.Input.LocationsFile, "CSV file with locations")
	fl.StringVar(&f.zipColumn, "zip-column", d.Input.LocationColumn, "Location column in --zip-file")
	fl.IntVar(&f.total, "total", d.Crawl.Target, "Listings to collect per search")
	fl.IntVar(&f.maxRetries, "max-retries", d.Crawl.MaxRetries, "Attempts at waiting for results before abandoning a pair")
	fl.IntVar(&f.concurrent, "concurrent", d.Crawl.Concurrency, "Browser tabs working in parallel")
	fl.BoolVar(&f.headless, "headless", d.Browser.Headless, "Run Chrome without a window")
	fl.StringVar(&f.output, "output", d.Output.Dir, "Output directory")
	fl.StringVar(&f.store, "store", d.Output.Store, "Result store: json or sqlite")
	fl.Float64Var(&f.rate, "rate", d.Crawl.SearchesPerMinute, "Max searches per minute across all tabs (0 = unlimited)")
	fl.StringVar(&f.logLevel, "log-level", d.Log.Level, "Log level: debug, info, warn, error")
	fl.StringVar(&f.chromePath, "chrome-path", "", "Chrome executable (default: auto-detect)")
	fl.BoolVar(&f.tui, "tui", false, "Show a live progress screen")
}

// resolve layers defaults, the env file and explicitly set flags.
func (f *scanFlags) resolve(fl *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return cfg, err
	}

	set := func(name string, apply func()) {
		if fl.Changed(name) {
			apply()
		}
	}
	set("keywords-file", func() { cfg.Input.KeywordsFile = f.keywordsFile })
	set("zip-file", func() { cfg.Input.LocationsFile = f.zipFile })
	set("zip-column", func() { cfg.Input.LocationColumn = f.zipColumn })
	set("total", func() { cfg.Crawl.Target = f.total })
	set("max-retries", func() { cfg.Crawl.MaxRetries = f.maxRetries })
	set("concurrent", func() { cfg.Crawl.Concurrency = f.concurrent })
	set("headless", func() { cfg.Browser.Headless = f.headless })
	set("output", func() { cfg.Output.Dir = f.output })
	set("store", func() { cfg.Output.Store = strings.ToLower(f.store) })
	set("rate", func() { cfg.Crawl.SearchesPerMinute = f.rate })
	set("log-level", func() { cfg.Log.Level = f.logLevel })
	set("chrome-path", func() { cfg.Browser.ChromePath = f.chromePath })
	cfg.TUI = f.tui

	if !filepath.IsAbs(cfg.Output.CompletionLog) {
		cfg.Output.CompletionLog = filepath.Join(cfg.Output.Dir, cfg.Output.CompletionLog)
	}
	if cfg.Log.File == "" {
		ts := time.Now().Format("20060102_150405")
		cfg.Log.File = filepath.Join(cfg.Output.Dir, fmt.Sprintf("%s_%s.log", appName, ts))
	}
	cfg.Log.Console = !cfg.TUI

	return cfg, cfg.Validate()
}

// crawlStore is what a scan persists to: the completion log and the
// result sink.
type crawlStore interface {
	scraper.CompletionLog
	scraper.ResultSink
}

type jsonStore struct {
	*storage.CompletionFile
	*storage.ResultFiles
}

func openStore(cfg config.Config, logger *zap.Logger) (crawlStore, func(), error) {
	switch cfg.Output.Store {
	case config.StoreSQLite:
		dbPath := filepath.Join(cfg.Output.Dir, cfg.Output.DBName)
		s, err := storage.NewSQLiteStore(dbPath, cfg.Output.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return jsonStore{
			CompletionFile: storage.NewCompletionFile(cfg.Output.CompletionLog, logger),
			ResultFiles:    storage.NewResultFiles(cfg.Output.Dir, logger),
		}, func() {}, nil
	}
}

func runScan(parent context.Context, cfg config.Config, stderr io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}

	keywords, err := input.ReadKeywords(cfg.Input.KeywordsFile)
	if err != nil {
		return fmt.Errorf("keywords: %w", err)
	}
	locations, err := input.ReadLocations(cfg.Input.LocationsFile, cfg.Input.LocationColumn)
	if err != nil {
		return fmt.Errorf("locations: %w", err)
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	baseLogger, cleanup, err := logx.New(logx.Options{Level: cfg.Log.Level, File: cfg.Log.File, Console: cfg.Log.Console})
	if err != nil {
		return err
	}
	defer cleanup()
	logger := baseLogger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("session start",
		zap.Int("keywords", len(keywords)),
		zap.Int("locations", len(locations)),
		zap.Int("target", cfg.Crawl.Target),
		zap.Int("max_retries", cfg.Crawl.MaxRetries),
		zap.Int("concurrency", cfg.Crawl.Concurrency),
		zap.Bool("headless", cfg.Browser.Headless),
		zap.String("store", cfg.Output.Store))
	fmt.Fprintf(stderr, "Log: %s\n", cfg.Log.File)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	launcher := browser.NewLauncher(ctx, cfg.Browser, logger)
	defer launcher.Close()

	var opts []scraper.Option
	feed := tui.NewFeed()
	if cfg.TUI {
		opts = append(opts, scraper.WithOnStored(feed.Add))
	}
	orch := scraper.New(cfg, launcher, extract.NewExtractor(logger, cfg.Browser.DetailsTimeout), store, store, logger, opts...)
	stats := orch.Stats()

	start := time.Now()
	job := func(ctx context.Context) error {
		_, err := orch.Run(ctx, keywords, locations)
		return err
	}
	if cfg.TUI {
		err = tui.Run(ctx, tui.Options{
			Title:  fmt.Sprintf("mapsweep: %d keywords × %d locations", len(keywords), len(locations)),
			Output: cfg.Output.Dir,
			Stats:  stats,
			Feed:   feed,
		}, job)
	} else {
		err = job(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scan failed", zap.Error(err))
		return fmt.Errorf("scanning: %w", err)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(stderr, "\nInterrupted; unfinished pairs will be resumed next run.")
	}

	total := -1
	if c, ok := store.(counter); ok {
		if total, err = c.Count(); err != nil {
			logger.Warn("counting stored businesses", zap.Error(err))
			total = -1
		}
	}
	printSummary(stderr, cfg, stats, total, time.Since(start))
	return nil
}

// counter is implemented by stores that can report their size cheaply.
type counter interface {
	Count() (int, error)
}

// printSummary writes the final box. total < 0 omits the store size.
func printSummary(w io.Writer, cfg config.Config, stats *scraper.Stats, total int, d time.Duration) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "══════════════════════════════\n")
	fmt.Fprintf(w, "  mapsweep complete\n")
	fmt.Fprintf(w, "══════════════════════════════\n")
	fmt.Fprintf(w, "  Pairs:      %d/%d\n", stats.PairsDone.Load(), stats.PairsTotal.Load())
	fmt.Fprintf(w, "  Abandoned:  %d\n", stats.PairsAbandoned.Load())
	fmt.Fprintf(w, "  Failed:     %d\n", stats.PairsFailed.Load())
	fmt.Fprintf(w, "  Found:      %d\n", stats.BusinessesFound.Load())
	fmt.Fprintf(w, "  Stored:     %d (new)\n", stats.BusinessesStored.Load())
	if total >= 0 {
		fmt.Fprintf(w, "  In store:   %d\n", total)
	}
	fmt.Fprintf(w, "  Duration:   %s\n", d.Truncate(time.Second))
	fmt.Fprintf(w, "  Output:     %s (%s)\n", cfg.Output.Dir, cfg.Output.Store)
	fmt.Fprintf(w, "  Log:        %s\n", cfg.Log.File)
	fmt.Fprintf(w, "══════════════════════════════\n")
}
