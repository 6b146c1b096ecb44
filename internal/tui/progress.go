// Package tui renders live crawl progress in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/mapsweep/internal/engine/scraper"
	"github.com/rendis/mapsweep/internal/tui/styles"
)

// Options describes what the progress screen shows.
type Options struct {
	Title  string
	Output string
	Stats  *scraper.Stats
	Feed   *Feed
}

// ProgressModel shows the crawl counters, a progress bar and the latest
// stored businesses. Stats and Feed are shared with the workers and read
// on every tick.
type ProgressModel struct {
	opts      Options
	cancel    context.CancelFunc
	progress  progress.Model
	startTime time.Time
	stopping  bool
	done      bool
	err       error
	width     int
}

type progressTickMsg time.Time

type jobDoneMsg struct {
	Err error
}

func NewProgressModel(opts Options, cancel context.CancelFunc) ProgressModel {
	if opts.Stats == nil {
		opts.Stats = &scraper.Stats{}
	}
	if opts.Feed == nil {
		opts.Feed = NewFeed()
	}
	return ProgressModel{
		opts:      opts,
		cancel:    cancel,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		startTime: time.Now(),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(max(msg.Width-4, 10), 80)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.stopping {
				// Second request: leave without waiting for the workers.
				return m, tea.Quit
			}
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
	case progressTickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case jobDoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}

	pModel, cmd := m.progress.Update(msg)
	m.progress = pModel.(progress.Model)
	return m, cmd
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render(m.opts.Title))
	b.WriteString("\n")
	b.WriteString(styles.Box.Render(m.renderStats()))
	b.WriteString("\n\n")

	stats := m.opts.Stats
	var pct float64
	if total := stats.PairsTotal.Load(); total > 0 {
		pct = float64(stats.Finished()) / float64(total)
	}
	b.WriteString(m.progress.ViewAs(pct))
	b.WriteString("\n\n")

	if recent := m.opts.Feed.Recent(); len(recent) > 0 {
		b.WriteString(styles.Subtitle.Render("Latest"))
		b.WriteString("\n")
		for _, e := range recent {
			line := e.Name
			if e.Address != "" {
				line += lipgloss.NewStyle().Foreground(styles.Muted).Render("  " + e.Address)
			}
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}

	switch {
	case m.done && m.err != nil && !errors.Is(m.err, context.Canceled):
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.done:
		b.WriteString(styles.Done.Render(fmt.Sprintf("Complete! %d businesses stored", stats.BusinessesStored.Load())))
		if m.opts.Output != "" {
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render("Output: " + m.opts.Output))
		}
	case m.stopping:
		b.WriteString(styles.ErrorText.Render("Stopping after current waits... press again to quit now"))
	default:
		b.WriteString(styles.StatusBar.Render("q stop • ctrl+c stop"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m ProgressModel) renderStats() string {
	var sb strings.Builder
	stats := m.opts.Stats
	elapsed := time.Since(m.startTime).Truncate(time.Second)

	row := func(label, value string, style lipgloss.Style) {
		sb.WriteString(styles.StatLabel.Render(label))
		sb.WriteString(style.Render(value))
		sb.WriteString("\n")
	}
	countStyle := func(n int64, hot lipgloss.Style) lipgloss.Style {
		if n > 0 {
			return hot
		}
		return styles.StatValue
	}

	finished, total := stats.Finished(), stats.PairsTotal.Load()
	row("Pairs:", fmt.Sprintf("%d/%d", finished, total), styles.StatValue)
	row("Completed:", fmt.Sprintf("%d", stats.PairsDone.Load()), styles.StatValue)
	abandoned := stats.PairsAbandoned.Load()
	row("Abandoned:", fmt.Sprintf("%d", abandoned), countStyle(abandoned, styles.WarnValue))
	failed := stats.PairsFailed.Load()
	row("Failed:", fmt.Sprintf("%d", failed), countStyle(failed, styles.ErrorValue))
	row("Listings:", fmt.Sprintf("%d", stats.ListingsSeen.Load()), styles.StatValue)
	listingErrs := stats.ListingErrors.Load()
	row("Listing errs:", fmt.Sprintf("%d", listingErrs), countStyle(listingErrs, styles.WarnValue))
	row("Found:", fmt.Sprintf("%d", stats.BusinessesFound.Load()), styles.StatValue)
	row("Stored:", fmt.Sprintf("%d", stats.BusinessesStored.Load()), styles.StatValue)
	row("Elapsed:", elapsed.String(), styles.StatValue)

	if finished > 0 && total > finished && !m.done && elapsed > 0 {
		rate := float64(finished) / elapsed.Seconds()
		eta := time.Duration(float64(total-finished) / rate * float64(time.Second)).Truncate(time.Second)
		row("ETA:", "~"+eta.String(), styles.StatValue)
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

// Run shows the progress screen while job runs. Stopping from the keyboard
// cancels job's context. The returned error is job's.
func Run(ctx context.Context, opts Options, job func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(opts, cancel))

	jobErr := make(chan error, 1)
	go func() {
		err := job(ctx)
		jobErr <- err
		p.Send(jobDoneMsg{Err: err})
	}()

	_, uiErr := p.Run()
	cancel()
	err := <-jobErr
	if err == nil && uiErr != nil {
		return fmt.Errorf("progress screen: %w", uiErr)
	}
	return err
}
