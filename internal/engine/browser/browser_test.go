package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rendis/mapsweep/internal/config"
	"github.com/rendis/mapsweep/internal/engine/extract"
)

func TestCSSString(t *testing.T) {
	assert.Equal(t, `"https://www.google.com/maps/place/A"`, cssString("https://www.google.com/maps/place/A"))
	assert.Equal(t, `"a\"b\\c"`, cssString(`a"b\c`))
}

func TestRunRefusesUnattachedTab(t *testing.T) {
	tabCtx, cancel := chromedp.NewContext(context.Background())
	defer cancel()
	s := &session{
		b:      &Browser{cfg: config.Default().Browser, logger: zap.NewNop()},
		tabCtx: tabCtx,
		cancel: cancel,
		nodes:  map[int]string{},
	}

	err := s.ClearSearch(context.Background())
	require.ErrorIs(t, err, errTabDetached)
	assert.Nil(t, chromedp.FromContext(tabCtx).Target, "a bounded action must not attach the tab")
}

// chromeAvailable reports whether a browser test can run here.
func chromeAvailable() bool {
	if os.Getenv("MAPSWEEP_BROWSER_TESTS") != "" {
		return true
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// fakeMapsPage mimics the parts of the Maps UI the session touches: the
// search box, a lazily loading feed and a details panel.
const fakeMapsPage = `<!DOCTYPE html>
<html><body style="margin:0">
<input id="searchboxinput" style="width:300px">
<div role="feed" id="feed" style="height:400px;width:300px;overflow-y:scroll"></div>
<div id="details"></div>
<script>
const feed = document.getElementById("feed");
let loaded = 0;
function more(n) {
	for (let i = 0; i < n && loaded < 25; i++, loaded++) {
		const idx = loaded;
		const a = document.createElement("a");
		a.href = "https://www.google.com/maps/place/Place+" + idx;
		a.textContent = "Place " + idx;
		a.style.display = "block";
		a.style.height = "60px";
		a.addEventListener("click", e => { e.preventDefault(); show(idx); });
		feed.appendChild(a);
	}
}
function show(i) {
	document.getElementById("details").innerHTML =
		'<h1 class="DUwDvf lfPIob">Place ' + i + '</h1>' +
		'<button data-item-id="address"><div class="fontBodyMedium">' + i + ' Main St</div></button>';
	history.replaceState(null, "", "/maps/place/Place+" + i + "/@40.7127,-74.0059,17z");
}
document.getElementById("searchboxinput").addEventListener("keydown", e => {
	if (e.key === "Enter") { feed.innerHTML = ""; loaded = 0; more(10); }
});
feed.addEventListener("scroll", () => {
	if (feed.scrollTop + feed.clientHeight >= feed.scrollHeight - 5) more(10);
});
</script>
</body></html>`

func TestSessionAgainstFakePage(t *testing.T) {
	if !chromeAvailable() {
		t.Skip("no Chrome found; set MAPSWEEP_BROWSER_TESTS=1 and MAPSWEEP_CHROME_PATH to force")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, fakeMapsPage)
	}))
	defer srv.Close()

	cfg := config.Default().Browser
	cfg.Headless = true
	cfg.BaseURL = srv.URL
	cfg.ChromePath = os.Getenv("MAPSWEEP_CHROME_PATH")
	cfg.PageLoadTimeout = 20 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b, err := NewBrowser(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	s, err := b.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	// The tab keeps answering after NewSession's bounded load returned.
	var state string
	tab := s.(*session)
	require.NoError(t, tab.run(ctx, 5*time.Second, chromedp.Evaluate(`document.readyState`, &state)))
	assert.Equal(t, "complete", state)

	require.NoError(t, s.ClearSearch(ctx))
	require.NoError(t, s.Submit(ctx, "dentist in 02139"))
	require.NoError(t, s.WaitForListings(ctx))

	n, err := s.CountListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	require.Eventually(t, func() bool {
		_ = s.Scroll(ctx, 800)
		n, _ := s.CountListings(ctx)
		return n > 10
	}, 15*time.Second, 300*time.Millisecond)

	listings, err := s.Listings(ctx, 5)
	require.NoError(t, err)
	require.Len(t, listings, 5)
	assert.Equal(t, "https://www.google.com/maps/place/Place+2", listings[2].Href)

	require.NoError(t, s.Open(ctx, listings[2]))
	view, err := s.Details(ctx)
	require.NoError(t, err)

	rec := extract.NewExtractor(zap.NewNop(), time.Second).Extract(ctx, view)
	assert.Equal(t, "Place 2", rec.Name)
	assert.Equal(t, "2 Main St", rec.Address)
	require.NotNil(t, rec.Latitude)
	assert.InDelta(t, 40.7127, *rec.Latitude, 1e-9)
}
