package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bamsammich/snapwatch/internal/config"
	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
	"github.com/bamsammich/snapwatch/internal/ui"
)

// Config configures the TUI presenter.
type Config struct {
	Stats *stats.Collector // shared with the observer; drives the header and rate view
	Theme config.ThemeConfig
	// Roots are the watched roots in command-line order. With more than one,
	// feed lines carry the root so paths stay unambiguous.
	Roots []string
}

// Presenter wraps a Bubble Tea program and implements ui.Presenter.
type Presenter struct {
	cfg   Config
	model Model
}

var _ ui.Presenter = (*Presenter)(nil)

// NewPresenter creates a new TUI presenter.
func NewPresenter(cfg Config) *Presenter {
	ApplyTheme(cfg.Theme)
	return &Presenter{cfg: cfg}
}

// Run starts the Bubble Tea program and blocks until the user quits.
func (p *Presenter) Run(events <-chan event.Event) error {
	p.model = NewModel(events, p.cfg.Stats, p.cfg.Roots)
	prog := tea.NewProgram(
		p.model,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
	finalModel, err := prog.Run()
	if err != nil {
		return err
	}
	if m, ok := finalModel.(Model); ok {
		p.model = m
	}
	return nil
}

// Summary returns the final completion summary line.
func (p *Presenter) Summary() string {
	return ui.CompletionSummary(p.cfg.Stats.Snapshot())
}
