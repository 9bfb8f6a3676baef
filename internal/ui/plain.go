package ui

import (
	"fmt"
	"io"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
)

// plainPresenter writes one line per change record to stdout. Cycle
// failures go to stderr; completed cycles are reported there in verbose mode.
type plainPresenter struct {
	w        io.Writer
	errW     io.Writer
	stats    *stats.Collector
	verbose  bool
	withRoot bool
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	for ev := range events {
		p.handleEvent(ev)
	}
	return nil
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.Added, event.Removed, event.Modified:
		fmt.Fprintln(p.w, DescribeChange(ev, p.withRoot))
	case event.ScanFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.errW, "scan failed: %s: %s\n", ev.Root, errMsg)
	case event.ScanComplete:
		if p.verbose {
			fmt.Fprintf(p.errW, "scanned %s: %s changes\n", ev.Root, FormatCount(int64(ev.Changes)))
		}
	case event.ScanCancelled:
		if p.verbose {
			fmt.Fprintf(p.errW, "scan cancelled: %s\n", ev.Root)
		}
	case event.ScanStarted:
		// silent in plain mode
	}
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
