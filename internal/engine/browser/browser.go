// Package browser drives Google Maps in Chrome through the DevTools
// protocol.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/rendis/mapsweep/internal/config"
	"github.com/rendis/mapsweep/internal/engine/extract"
	"github.com/rendis/mapsweep/internal/engine/scraper"
)

const (
	searchBoxSelector = `input#searchboxinput`
	listingSelector   = `a[href*="https://www.google.com/maps/place"]`
)

// Browser owns one Chrome process. Sessions are tabs in their own browser
// context so they share no cookies or storage.
type Browser struct {
	cfg       config.Browser
	logger    *zap.Logger
	selectors extract.Selectors

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

// NewBrowser starts Chrome. ctx bounds the lifetime of the process.
func NewBrowser(ctx context.Context, cfg config.Browser, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(int(cfg.ViewportWidth), int(cfg.ViewportHeight)),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	b := &Browser{cfg: cfg, logger: logger, selectors: extract.DefaultSelectors()}
	b.allocCtx, b.cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	b.browserCtx, b.cancel = chromedp.NewContext(b.allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug("devtools", zap.String("msg", fmt.Sprintf(format, args...)))
		}))

	// Running with no actions launches the process.
	if err := chromedp.Run(b.browserCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}
	logger.Info("browser started", zap.Bool("headless", cfg.Headless), zap.String("exec", cfg.ChromePath))
	return b, nil
}

// NewSession opens a tab on the Maps search page.
func (b *Browser) NewSession(ctx context.Context) (scraper.Session, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	s := &session{
		b:      b,
		tabCtx: tabCtx,
		cancel: cancel,
		nodes:  map[int]string{},
	}

	// The first Run attaches the tab and starts its event loop on the
	// context it is given, so it must be tabCtx itself and not a child
	// that s.run cancels on return.
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("opening tab: %w", err)
	}

	err = s.run(ctx, b.cfg.PageLoadTimeout,
		chromedp.EmulateViewport(b.cfg.ViewportWidth, b.cfg.ViewportHeight),
		chromedp.Navigate(b.cfg.BaseURL),
		chromedp.WaitVisible(searchBoxSelector, chromedp.ByQuery),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening %s: %w", b.cfg.BaseURL, err)
	}
	b.logger.Debug("session ready", zap.String("url", b.cfg.BaseURL))
	return s, nil
}

// Close shuts Chrome down. Open sessions die with it.
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
}

// Launcher starts Chrome on the first NewSession call, so a run with
// nothing pending never spawns a browser.
type Launcher struct {
	ctx    context.Context
	cfg    config.Browser
	logger *zap.Logger

	once    sync.Once
	browser *Browser
	err     error
}

func NewLauncher(ctx context.Context, cfg config.Browser, logger *zap.Logger) *Launcher {
	return &Launcher{ctx: ctx, cfg: cfg, logger: logger}
}

func (l *Launcher) NewSession(ctx context.Context) (scraper.Session, error) {
	l.once.Do(func() {
		l.browser, l.err = NewBrowser(l.ctx, l.cfg, l.logger)
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.browser.NewSession(ctx)
}

// Close stops Chrome if it was started.
func (l *Launcher) Close() {
	if l.browser != nil {
		l.browser.Close()
	}
}
