package ui

import (
	"fmt"
	"io"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
)

// Presenter consumes the change feed and displays it.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Output selects a presenter.
type Output string

const (
	OutputAuto  Output = ""      // hud on a terminal, plain otherwise
	OutputPlain Output = "plain" // one line per change
	OutputJSON  Output = "json"  // one JSON object per event
	OutputQuiet Output = "quiet"
	OutputTUI   Output = "tui" // built by package tui
)

// ParseOutput validates a --format value.
func ParseOutput(s string) (Output, error) {
	switch o := Output(s); o {
	case OutputAuto, OutputPlain, OutputJSON, OutputQuiet, OutputTUI:
		return o, nil
	case "auto":
		return OutputAuto, nil
	default:
		return "", fmt.Errorf("unknown format %q (want plain, json, quiet or tui)", s)
	}
}

// Config configures a Presenter.
type Config struct {
	Writer    io.Writer
	ErrWriter io.Writer
	Stats     *stats.Collector
	Output    Output
	Roots     int // number of observed roots; paths carry the root when > 1
	IsTTY     bool
	Verbose   bool
}

// NewPresenter creates the presenter selected by cfg.Output. OutputTUI is
// not handled here.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) (Presenter, error) {
	withRoot := cfg.Roots > 1
	switch cfg.Output {
	case OutputQuiet:
		return &quietPresenter{stats: cfg.Stats}, nil
	case OutputJSON:
		return newJSONPresenter(cfg.Writer, cfg.Stats), nil
	case OutputPlain:
		return &plainPresenter{w: cfg.Writer, errW: cfg.ErrWriter, stats: cfg.Stats, verbose: cfg.Verbose, withRoot: withRoot}, nil
	case OutputAuto:
		if !cfg.IsTTY {
			return &plainPresenter{w: cfg.Writer, errW: cfg.ErrWriter, stats: cfg.Stats, verbose: cfg.Verbose, withRoot: withRoot}, nil
		}
		return &hudPresenter{
			w:        cfg.ErrWriter, // HUD renders to stderr (the TTY)
			stats:    cfg.Stats,
			withRoot: withRoot,
			scanning: make(map[string]string),
		}, nil
	default:
		return nil, fmt.Errorf("no inline presenter for format %q", cfg.Output)
	}
}
