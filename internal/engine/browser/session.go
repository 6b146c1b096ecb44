package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/rendis/mapsweep/internal/engine/extract"
	"github.com/rendis/mapsweep/internal/engine/scraper"
)

var (
	countListingsJS = fmt.Sprintf(`new Set(Array.from(document.querySelectorAll(%q), a => a.getAttribute("href"))).size`, listingSelector)
	listingHrefsJS  = fmt.Sprintf(`Array.from(new Set(Array.from(document.querySelectorAll(%q), a => a.getAttribute("href"))))`, listingSelector)
	feedCenterJS    = fmt.Sprintf(`(() => {
	const a = document.querySelector(%q);
	const feed = (a && a.closest('div[role="feed"]')) || document.querySelector('div[role="feed"]');
	if (!feed) return [];
	const r = feed.getBoundingClientRect();
	return [r.left + r.width / 2, r.top + r.height / 2];
})()`, listingSelector)
)

// session is a single Maps tab. It is used by one worker at a time.
type session struct {
	b      *Browser
	tabCtx context.Context
	cancel context.CancelFunc

	// nodes maps listing indexes from the last Listings call to hrefs.
	nodes map[int]string
}

// errTabDetached is returned when actions run before NewSession attached
// the tab.
var errTabDetached = errors.New("tab not attached")

// run executes actions in the tab, bounded by timeout and by the caller's
// ctx. Deadline hits come back as scraper.ErrTimeout. The tab must already
// be attached: a first Run on runCtx would tie its event loop to runCtx.
func (s *session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if c := chromedp.FromContext(s.tabCtx); c == nil || c.Target == nil {
		return errTabDetached
	}
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", scraper.ErrTimeout, err)
	default:
		return err
	}
}

func (s *session) ClearSearch(ctx context.Context) error {
	return s.run(ctx, s.b.cfg.PageWaitTimeout,
		chromedp.Click(searchBoxSelector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
		chromedp.KeyEvent(kb.Backspace),
	)
}

func (s *session) Submit(ctx context.Context, query string) error {
	clear(s.nodes)
	return s.run(ctx, s.b.cfg.PageWaitTimeout,
		chromedp.SendKeys(searchBoxSelector, query, chromedp.ByQuery),
		chromedp.KeyEvent(kb.Enter),
	)
}

func (s *session) WaitForListings(ctx context.Context) error {
	return s.run(ctx, s.b.cfg.PageWaitTimeout,
		chromedp.WaitVisible(listingSelector, chromedp.ByQuery),
	)
}

// Scroll sends a wheel event over the result feed.
func (s *session) Scroll(ctx context.Context, deltaY int) error {
	var center []float64
	if err := s.run(ctx, s.b.cfg.PageWaitTimeout, chromedp.Evaluate(feedCenterJS, &center)); err != nil {
		return err
	}
	x, y := float64(s.b.cfg.ViewportWidth)/6, float64(s.b.cfg.ViewportHeight)/2
	if len(center) == 2 {
		x, y = center[0], center[1]
	}

	return s.run(ctx, s.b.cfg.PageWaitTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseWheel, x, y).
			WithDeltaX(0).
			WithDeltaY(float64(deltaY)).
			Do(ctx)
	}))
}

func (s *session) CountListings(ctx context.Context) (int, error) {
	var n int
	if err := s.run(ctx, s.b.cfg.PageWaitTimeout, chromedp.Evaluate(countListingsJS, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *session) Listings(ctx context.Context, limit int) ([]scraper.Listing, error) {
	var hrefs []string
	if err := s.run(ctx, s.b.cfg.PageWaitTimeout, chromedp.Evaluate(listingHrefsJS, &hrefs)); err != nil {
		return nil, err
	}
	if len(hrefs) > limit {
		hrefs = hrefs[:limit]
	}

	clear(s.nodes)
	out := make([]scraper.Listing, len(hrefs))
	for i, h := range hrefs {
		s.nodes[i] = h
		out[i] = scraper.Listing{Index: i, Href: h}
	}
	return out, nil
}

// Open clicks the listing so its details panel is shown. The node is
// looked up again by href because the feed re-renders while scrolling.
func (s *session) Open(ctx context.Context, l scraper.Listing) error {
	href := l.Href
	if href == "" {
		href = s.nodes[l.Index]
	}
	if href == "" {
		return fmt.Errorf("listing %d: unknown", l.Index)
	}

	var nodes []*cdp.Node
	sel := "a[href=" + cssString(href) + "]"
	if err := s.run(ctx, s.b.cfg.PageWaitTimeout, chromedp.Nodes(sel, &nodes, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("listing %d: %w", l.Index, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("listing %d: node not found", l.Index)
	}
	node := nodes[0]

	return s.run(ctx, s.b.cfg.PageWaitTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return dom.ScrollIntoViewIfNeeded().WithNodeID(node.NodeID).Do(ctx)
		}),
		chromedp.MouseClickNode(node),
	)
}

// Details snapshots the page once the details panel shows a name. A panel
// that never shows one is still returned; the extractor leaves the record
// nameless and it gets dropped.
func (s *session) Details(ctx context.Context) (extract.View, error) {
	if nameSel := s.b.selectors[extract.FieldName]; nameSel != "" {
		err := s.run(ctx, s.b.cfg.DetailsTimeout, chromedp.WaitVisible(nameSel, chromedp.ByQuery))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			s.b.logger.Debug("details panel without name", zap.Error(err))
		}
	}

	var html, location string
	err := s.run(ctx, s.b.cfg.PageWaitTimeout,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		return nil, err
	}
	return extract.NewHTMLView(html, location, s.b.selectors)
}

func (s *session) Close() error {
	err := chromedp.Cancel(s.tabCtx)
	s.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// cssString quotes s as a CSS string literal.
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}
