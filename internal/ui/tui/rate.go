package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
	"github.com/bamsammich/snapwatch/internal/ui"
)

type rootStat struct {
	last    time.Time
	changes int
	cycles  int
	failed  int
}

// rateView shows change throughput and per-root scan history.
type rateView struct {
	roots map[string]*rootStat
}

func newRateView() rateView {
	return rateView{roots: make(map[string]*rootStat)}
}

func (r *rateView) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.ScanComplete:
		rs := r.root(ev.Root)
		rs.last = ev.Timestamp
		rs.changes += ev.Changes
		rs.cycles++
	case event.ScanFailed:
		r.root(ev.Root).failed++
	}
}

func (r *rateView) root(name string) *rootStat {
	rs, ok := r.roots[name]
	if !ok {
		rs = &rootStat{}
		r.roots[name] = rs
	}
	return rs
}

func (r *rateView) view(width, _ int, snap stats.Snapshot, collector *stats.Collector) string {
	width = max(width, 20)

	var b strings.Builder

	// Big changes/s number.
	rate := collector.RollingChangesPerSec(5)
	b.WriteString("  " + styleBigNumber.Render(ui.FormatRate(rate)) + "  " + styleDetail.Render("changes"))
	b.WriteString("\n\n")

	// Full-width sparkline (60-second history).
	sparkWidth := max(width-4, 10)
	spark := ui.Sparkline(collector.SparklineData(sparkWidth), sparkWidth)
	b.WriteString("  " + styleSparkline.Render(spark))
	b.WriteString("\n\n")

	// Counter cells.
	b.WriteString(fmt.Sprintf("  %s   %s   %s\n",
		styleIconAdded.Render("+"+ui.FormatCount(snap.Added)),
		styleIconRemoved.Render("-"+ui.FormatCount(snap.Removed)),
		styleIconModified.Render("~"+ui.FormatCount(snap.Modified)),
	))
	b.WriteString(fmt.Sprintf("  %s   %s   %s\n",
		styleCounter.Render(ui.FormatCount(snap.FilesScanned)+" files"),
		styleCounter.Render(ui.FormatCount(snap.DirsScanned)+" dirs"),
		styleDetail.Render(ui.FormatCount(snap.Unreadable)+" unreadable"),
	))
	b.WriteByte('\n')

	// Per-root table.
	if len(r.roots) > 0 {
		b.WriteString(styleDivider.Render("─ roots"))
		b.WriteByte('\n')
		names := make([]string, 0, len(r.roots))
		for name := range r.roots {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString(r.renderRoot(name, r.roots[name], width))
			b.WriteByte('\n')
		}
	}

	return b.String()
}

func (*rateView) renderRoot(name string, rs *rootStat, width int) string {
	age := "never"
	if !rs.last.IsZero() {
		age = ui.FormatDuration(max(time.Since(rs.last), time.Second)) + " ago"
	}
	line := fmt.Sprintf("  %s  %s  %s",
		clip(name, width/2),
		styleCounter.Render(fmt.Sprintf("%d cycles  %s changes", rs.cycles, ui.FormatCount(int64(rs.changes)))),
		styleDetail.Render("last "+age),
	)
	if rs.failed > 0 {
		line += "  " + styleError.Render(fmt.Sprintf("%d failed", rs.failed))
	}
	return line
}
