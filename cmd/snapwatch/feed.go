package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/bamsammich/snapwatch/internal/config"
	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
	"github.com/bamsammich/snapwatch/internal/ui"
	"github.com/bamsammich/snapwatch/internal/ui/tui"
)

// feedConfig selects and drives the presenter for a run.
type feedConfig struct {
	stdout    io.Writer
	stderr    io.Writer
	collector *stats.Collector
	theme     config.ThemeConfig
	output    ui.Output
	roots     []string
	verbose   bool
	quiet     bool
	logEvents bool // tee every event into the structured log
}

// producer runs cycles and sends their events. It must return once ctx is
// cancelled; events is closed by the caller afterwards.
type producer func(ctx context.Context, events chan<- event.Event)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && ui.IsTTY(f)
}

//nolint:ireturn // factory returns interface by design
func newPresenter(fc feedConfig) (ui.Presenter, bool, error) {
	if fc.output == ui.OutputTUI {
		if isTerminal(fc.stdout) {
			return tui.NewPresenter(tui.Config{
				Stats: fc.collector,
				Theme: fc.theme,
				Roots: fc.roots,
			}), true, nil
		}
		slog.Warn("--format tui requires a terminal, falling back to inline output")
		fc.output = ui.OutputAuto
	}
	p, err := ui.NewPresenter(ui.Config{
		Writer:    fc.stdout,
		ErrWriter: fc.stderr,
		Stats:     fc.collector,
		Output:    fc.output,
		Roots:     len(fc.roots),
		IsTTY:     isTerminal(fc.stderr),
		Verbose:   fc.verbose,
	})
	return p, false, err
}

// teeEvents logs every event before forwarding it.
func teeEvents(in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, cap(in))
	go func() {
		for ev := range in {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("root", ev.Root),
				slog.String("scan_id", ev.ScanID),
			}
			if ev.Path != "" {
				attrs = append(attrs, slog.String("path", ev.Path))
			}
			if ev.Type.IsChange() {
				attrs = append(attrs, slog.Int64("size", ev.Item.Size))
				if ev.Type == event.Modified {
					attrs = append(attrs, slog.String("fields", ev.Fields.String()))
				}
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelInfo, "snapwatch.event", attrs...)
			out <- ev
		}
		close(out)
	}()
	return out
}

// runFeed runs produce against a presenter. The TUI takes the foreground
// and quitting it cancels produce; inline presenters run in the background
// until produce returns.
func runFeed(ctx context.Context, fc feedConfig, produce producer) error {
	presenter, useTUI, err := newPresenter(fc)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	events := make(chan event.Event, 256)
	presenterEvents := (<-chan event.Event)(events)
	if fc.logEvents {
		presenterEvents = teeEvents(events)
	}

	if useTUI {
		// TUI mode: run cycles in background, TUI in foreground.
		// Bubble Tea needs the foreground to capture stdin properly.
		engineCtx, engineCancel := context.WithCancel(ctx)
		defer engineCancel()

		var engineWg sync.WaitGroup
		engineWg.Add(1)
		go func() {
			defer engineWg.Done()
			produce(engineCtx, events)
			close(events)
		}()

		presenterErr := presenter.Run(presenterEvents)

		// User quit the TUI: stop producing and drain what is left so
		// no cycle blocks on a full channel.
		engineCancel()
		for range presenterEvents { //nolint:revive // drain
		}
		engineWg.Wait()
		if presenterErr != nil {
			slog.Warn("tui failed", "error", presenterErr)
		}
	} else {
		// Inline mode: run presenter in background, cycles in foreground.
		var presenterErr error
		var presenterWg sync.WaitGroup
		presenterWg.Add(1)
		go func() {
			defer presenterWg.Done()
			presenterErr = presenter.Run(presenterEvents)
		}()

		produce(ctx, events)
		close(events)
		presenterWg.Wait()
		if presenterErr != nil {
			fmt.Fprintf(fc.stderr, "presenter: %v\n", presenterErr)
		}
	}

	if !fc.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(fc.stderr, summary)
		}
	}
	return nil
}
