package tui

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/ui"
)

// historyLimit bounds the change history of a long-running watch.
const historyLimit = 10000

type scanEntry struct {
	started time.Time
	root    string
}

type changeEntry struct {
	at     time.Time
	path   string
	detail string
	typ    event.Type
}

type errorEntry struct {
	time time.Time
	root string
	err  string
}

type feedView struct {
	scanning     map[string]scanEntry // keyed by scan ID
	changes      []changeEntry
	errors       []errorEntry // never evicted
	dropped      int          // changes evicted past historyLimit
	withRoot     bool
	scrollOffset int  // viewport offset into changes
	autoScroll   bool // follow new entries
	expandErrors bool
}

func newFeedView(withRoot bool) feedView {
	return feedView{
		scanning:   make(map[string]scanEntry),
		withRoot:   withRoot,
		autoScroll: true,
	}
}

func (f *feedView) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.ScanStarted:
		f.scanning[ev.ScanID] = scanEntry{root: ev.Root, started: ev.Timestamp}

	case event.ScanComplete, event.ScanCancelled:
		delete(f.scanning, ev.ScanID)

	case event.ScanFailed:
		delete(f.scanning, ev.ScanID)
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		f.errors = append(f.errors, errorEntry{root: ev.Root, err: errMsg, time: ev.Timestamp})

	case event.Added, event.Removed, event.Modified:
		f.addChange(changeEntry{
			typ:    ev.Type,
			path:   ui.DisplayPath(ev, f.withRoot),
			detail: ui.ChangeDetail(ev),
			at:     ev.Timestamp,
		})
	}
}

func (f *feedView) addChange(e changeEntry) {
	f.changes = append(f.changes, e)
	if over := len(f.changes) - historyLimit; over > 0 {
		f.changes = append(f.changes[:0:0], f.changes[over:]...)
		f.dropped += over
		f.scrollOffset = max(f.scrollOffset-over, 0)
	}
}

// scrollDown moves the viewport down one line and disables autoScroll.
func (f *feedView) scrollDown() {
	f.autoScroll = false
	f.scrollOffset++
}

// scrollUp moves the viewport up one line and disables autoScroll.
func (f *feedView) scrollUp() {
	f.autoScroll = false
	if f.scrollOffset > 0 {
		f.scrollOffset--
	}
}

// scrollToTop jumps to the oldest retained change.
func (f *feedView) scrollToTop() {
	f.autoScroll = false
	f.scrollOffset = 0
}

// scrollToBottom jumps to the most recent change and re-enables autoScroll.
func (f *feedView) scrollToBottom() {
	f.autoScroll = true
}

func (f *feedView) view(width, height int) string {
	width = max(width, 20)

	// Scanning: capped at height/3. Errors: 5 lines, or height/2 expanded.
	// Changes fill the rest.
	maxScanning := max(height/3, 1)
	scanCount := min(len(f.scanning), maxScanning)

	maxErrors := 5
	if f.expandErrors {
		maxErrors = max(height/2, maxErrors)
	}
	errCount := min(len(f.errors), maxErrors)

	dividers := 0
	if scanCount > 0 {
		dividers++
	}
	if errCount > 0 {
		dividers++
	}
	if len(f.changes) > 0 {
		dividers++
	}

	changesHeight := max(height-scanCount-errCount-dividers, 1)

	// Clamp scroll offset.
	maxOffset := max(len(f.changes)-changesHeight, 0)
	if f.autoScroll {
		f.scrollOffset = maxOffset
	}
	f.scrollOffset = min(max(f.scrollOffset, 0), maxOffset)

	var b strings.Builder

	if lines := f.renderScanning(width, scanCount); lines != "" {
		b.WriteString(styleDivider.Render("─ scanning"))
		b.WriteByte('\n')
		b.WriteString(lines)
	}

	if lines := f.renderChangesViewport(width, changesHeight); lines != "" {
		label := fmt.Sprintf("─ changes (%s)", ui.FormatCount(int64(len(f.changes)+f.dropped)))
		b.WriteString(styleDivider.Render(label))
		b.WriteByte('\n')
		b.WriteString(lines)
	}

	if lines := f.renderErrors(width, errCount); lines != "" {
		label := fmt.Sprintf("─ errors (%d)", len(f.errors))
		b.WriteString(styleDivider.Render(label))
		b.WriteByte('\n')
		b.WriteString(lines)
	}

	return b.String()
}

func (f *feedView) renderScanning(width, maxLines int) string {
	if len(f.scanning) == 0 {
		return ""
	}
	entries := make([]scanEntry, 0, len(f.scanning))
	for _, e := range f.scanning {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].root < entries[j].root })

	var b strings.Builder
	for _, e := range entries[:min(maxLines, len(entries))] {
		elapsed := ""
		if !e.started.IsZero() {
			elapsed = styleDetail.Render(ui.FormatDuration(time.Since(e.started)))
		}
		line := fmt.Sprintf("  %s  %s  %s", styleScanning.Render("⟳"), clip(e.root, width-16), elapsed)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *feedView) renderChangesViewport(width, viewportHeight int) string {
	if len(f.changes) == 0 {
		return ""
	}

	start := max(f.scrollOffset, 0)
	end := min(start+viewportHeight, len(f.changes))

	var b strings.Builder
	for _, e := range f.changes[start:end] {
		line := fmt.Sprintf("  %s  %s", changeIcon(e.typ), f.styledPath(clip(e.path, width-8)))
		if e.detail != "" {
			line += "  " + styleDetail.Render(e.detail)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *feedView) renderErrors(_, maxLines int) string {
	if len(f.errors) == 0 || maxLines <= 0 {
		return ""
	}

	var b strings.Builder
	// Show the most recent errors (tail).
	start := max(len(f.errors)-maxLines, 0)
	for _, e := range f.errors[start:] {
		line := fmt.Sprintf("  %s  %s  %s",
			styleIconRemoved.Render("✗"),
			styleErrorPath.Render(e.root),
			styleError.Render(e.err))
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (*feedView) styledPath(p string) string {
	trimmed := strings.TrimSuffix(p, "/")
	dir, base := path.Split(trimmed)
	if strings.HasSuffix(p, "/") {
		base += "/"
	}
	if dir == "" {
		return styleFilePath.Render(base)
	}
	return styleFileDir.Render(dir) + styleFilePath.Render(base)
}

func changeIcon(t event.Type) string {
	icon := ui.ChangeIcon(t)
	switch t {
	case event.Added:
		return styleIconAdded.Render(icon)
	case event.Removed:
		return styleIconRemoved.Render(icon)
	default:
		return styleIconModified.Render(icon)
	}
}

// clip keeps the tail of s within n bytes.
func clip(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n+1:]
}
