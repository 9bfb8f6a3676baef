package ui

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
)

// ANSI escape sequences.
const (
	ansiDim   = "\033[2m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// hudPresenter provides a TTY display with a scrolling feed of change
// records and a one-line status that redraws in place.
type hudPresenter struct {
	w        io.Writer
	stats    *stats.Collector
	withRoot bool

	// Internal state.
	scanning    map[string]string // scan ID -> root
	lastRoot    string
	lastScan    time.Time
	failures    int
	hudDrawn    bool
	lastHUDDraw time.Time
}

const (
	sparklineWidth = 20
	statusPathMax  = 32
	hudMinInterval = 50 * time.Millisecond // don't redraw faster than this
)

func (p *hudPresenter) Run(events <-chan event.Event) error {
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	// Redraw ticker keeps the "last scan" age current while idle.
	redrawTicker := time.NewTicker(500 * time.Millisecond)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			p.handleEvent(ev)
			p.maybeDrawHUD()

		case <-redrawTicker.C:
			p.drawHUD()

		case <-secTicker.C:
			p.stats.Tick()
		}
	}
}

func (p *hudPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.ScanStarted:
		p.scanning[ev.ScanID] = ev.Root

	case event.ScanComplete, event.ScanCancelled:
		delete(p.scanning, ev.ScanID)
		p.lastRoot, p.lastScan = ev.Root, ev.Timestamp

	case event.ScanFailed:
		delete(p.scanning, ev.ScanID)
		p.failures++
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		p.clearHUD()
		fmt.Fprintf(p.w, "✗  %s  %s\n", ev.Root, errMsg)
		p.drawHUD()

	case event.Added, event.Removed, event.Modified:
		p.clearHUD()
		p.printChange(ev)
		p.drawHUD() // always redraw HUD after feed line
	}
}

func (p *hudPresenter) printChange(ev event.Event) {
	line := ChangeIcon(ev.Type) + "  " + p.styledPath(DisplayPath(ev, p.withRoot))
	if d := ChangeDetail(ev); d != "" {
		line += "  " + ansiDim + d + ansiReset
	}
	fmt.Fprintln(p.w, line)
}

// maybeDrawHUD redraws the HUD if enough time has passed since the last draw.
func (p *hudPresenter) maybeDrawHUD() {
	if time.Since(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	snap := p.stats.Snapshot()
	p.clearHUD()

	spark := Sparkline(p.stats.SparklineData(sparklineWidth), sparklineWidth)
	fmt.Fprintf(p.w, "%s%s%s  %s  %s  +%s -%s ~%s  %s\n",
		ansiBold, p.statusLabel(), ansiReset,
		spark,
		FormatRate(p.stats.RollingChangesPerSec(10)),
		FormatCount(snap.Added), FormatCount(snap.Removed), FormatCount(snap.Modified),
		p.cycleInfo(snap),
	)

	p.hudDrawn = true
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) statusLabel() string {
	if len(p.scanning) == 0 {
		return "idle"
	}
	roots := make([]string, 0, len(p.scanning))
	for _, r := range p.scanning {
		roots = append(roots, path.Base(r))
	}
	sort.Strings(roots)
	return "scanning " + truncPath(strings.Join(roots, ","), statusPathMax)
}

func (p *hudPresenter) cycleInfo(snap stats.Snapshot) string {
	s := fmt.Sprintf("cycles %s", FormatCount(snap.CyclesCompleted))
	if !p.lastScan.IsZero() {
		s += fmt.Sprintf("  last %s %s ago", path.Base(p.lastRoot),
			FormatDuration(max(time.Since(p.lastScan), time.Second)))
	}
	if p.failures > 0 {
		s += fmt.Sprintf("  failed %d", p.failures)
	}
	return s
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	// Move cursor up one line and clear to end of screen.
	fmt.Fprint(p.w, "\033[1A\033[J")
	p.hudDrawn = false
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}

// styledPath returns the path with the directory portion dimmed and the
// filename in normal weight, making the actual filename stand out.
func (*hudPresenter) styledPath(p string) string {
	trimmed := strings.TrimSuffix(p, "/")
	dir, base := path.Split(trimmed)
	if strings.HasSuffix(p, "/") {
		base += "/"
	}
	if dir == "" {
		return base
	}
	return fmt.Sprintf("%s%s%s%s", ansiDim, dir, ansiReset, base)
}
