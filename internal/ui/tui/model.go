package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
	"github.com/bamsammich/snapwatch/internal/ui"
)

type viewMode int

const (
	viewFeed viewMode = iota
	viewRate
)

// Bubble Tea messages.
type feedEventMsg event.Event
type channelDoneMsg struct{}
type tickMsg time.Time
type saveResultMsg struct {
	err  error
	path string
}

// readNextEvent returns a tea.Cmd that blocks on the event channel.
func readNextEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return channelDoneMsg{}
		}
		return feedEventMsg(ev)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// saveModal manages the text input overlay for saving the change report.
type saveModal struct {
	input  string
	cursor int
	active bool
}

func (s *saveModal) insertRune(r rune) {
	s.input = s.input[:s.cursor] + string(r) + s.input[s.cursor:]
	s.cursor += len(string(r))
}

func (s *saveModal) backspace() {
	if s.cursor > 0 {
		s.input = s.input[:s.cursor-1] + s.input[s.cursor:]
		s.cursor--
	}
}

func (s *saveModal) deleteChar() {
	if s.cursor < len(s.input) {
		s.input = s.input[:s.cursor] + s.input[s.cursor+1:]
	}
}

func (s *saveModal) moveLeft() {
	if s.cursor > 0 {
		s.cursor--
	}
}

func (s *saveModal) moveRight() {
	if s.cursor < len(s.input) {
		s.cursor++
	}
}

func (s *saveModal) render() string {
	prompt := styleSavePrompt.Render("Save to: ")
	before := s.input[:s.cursor]
	after := s.input[s.cursor:]
	cursor := styleSaveInput.Render("█")
	return "  " + prompt + styleSaveInput.Render(before) + cursor + styleSaveInput.Render(after)
}

// Model is the root Bubble Tea model.
type Model struct {
	events <-chan event.Event
	stats  *stats.Collector
	roots  []string

	mode      viewMode
	feed      feedView
	rate      rateView
	width     int
	height    int
	statusMsg string // transient notification
	done      bool   // feed closed
	quitting  bool

	lastSnap stats.Snapshot
	lastRate float64

	save saveModal
}

// NewModel creates a new TUI model.
func NewModel(events <-chan event.Event, collector *stats.Collector, roots []string) Model {
	return Model{
		events: events,
		stats:  collector,
		roots:  roots,
		feed:   newFeedView(len(roots) > 1),
		rate:   newRateView(),
		width:  80,
		height: 24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		readNextEvent(m.events),
		tickCmd(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case feedEventMsg:
		ev := event.Event(msg)
		m.feed.handleEvent(ev)
		m.rate.handleEvent(ev)
		return m, readNextEvent(m.events)

	case channelDoneMsg:
		m.done = true
		m.lastSnap = m.stats.Snapshot()
		return m, nil

	case tickMsg:
		m.stats.Tick()
		m.lastSnap = m.stats.Snapshot()
		m.lastRate = m.stats.RollingChangesPerSec(10)
		return m, tickCmd()

	case saveResultMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("save failed: %v", msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("saved to %s", msg.path)
		}
		m.save.active = false
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// When save modal is active, capture all input.
	if m.save.active {
		return m.handleSaveKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "r":
		m.mode = viewRate
		m.statusMsg = ""

	case "f":
		m.mode = viewFeed
		m.statusMsg = ""

	case "e":
		m.mode = viewFeed
		m.feed.expandErrors = !m.feed.expandErrors
		m.statusMsg = ""

	case "j", "down":
		if m.mode == viewFeed {
			m.feed.scrollDown()
		}

	case "k", "up":
		if m.mode == viewFeed {
			m.feed.scrollUp()
		}

	case "G":
		if m.mode == viewFeed {
			m.feed.scrollToBottom()
		}

	case "g":
		if m.mode == viewFeed {
			m.feed.scrollToTop()
		}

	case "s":
		m.save.active = true
		m.save.input = fmt.Sprintf("snapwatch-%s.log", time.Now().Format("2006-01-02-150405"))
		m.save.cursor = len(m.save.input)
		m.statusMsg = ""
	}

	return m, nil
}

func (m Model) handleSaveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.save.active = false
		m.statusMsg = ""

	case tea.KeyEnter:
		return m, m.writeReport(m.save.input)

	case tea.KeyBackspace:
		m.save.backspace()

	case tea.KeyDelete:
		m.save.deleteChar()

	case tea.KeyLeft:
		m.save.moveLeft()

	case tea.KeyRight:
		m.save.moveRight()

	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.save.insertRune(r)
		}
	}

	return m, nil
}

// writeReport saves the retained change history as a plain-text report.
func (m Model) writeReport(path string) tea.Cmd {
	// Capture data needed by the goroutine.
	snap := m.stats.Snapshot()
	roots := append([]string(nil), m.roots...)
	changes := append([]changeEntry(nil), m.feed.changes...)
	failures := append([]errorEntry(nil), m.feed.errors...)
	dropped := m.feed.dropped

	return func() tea.Msg {
		var b strings.Builder

		b.WriteString("snapwatch change report\n")
		b.WriteString("=======================\n")
		fmt.Fprintf(&b, "roots:     %s\n", strings.Join(roots, ", "))
		fmt.Fprintf(&b, "written:   %s\n", time.Now().Format(time.DateTime))
		fmt.Fprintf(&b, "uptime:    %s\n", ui.FormatDuration(snap.Elapsed))
		fmt.Fprintf(&b, "cycles:    %s (%d failed)\n", ui.FormatCount(snap.CyclesCompleted), snap.CyclesFailed)
		fmt.Fprintf(&b, "changes:   +%s -%s ~%s\n",
			ui.FormatCount(snap.Added), ui.FormatCount(snap.Removed), ui.FormatCount(snap.Modified))
		if dropped > 0 {
			fmt.Fprintf(&b, "omitted:   %s oldest changes\n", ui.FormatCount(int64(dropped)))
		}
		b.WriteString("\n--- changes ---\n")
		for _, e := range changes {
			fmt.Fprintf(&b, "%s  %s %-50s  %s\n",
				e.at.Format(time.DateTime), ui.ChangeIcon(e.typ), e.path, e.detail)
		}
		if len(failures) > 0 {
			b.WriteString("\n--- errors ---\n")
			for _, e := range failures {
				fmt.Fprintf(&b, "%s  %s  %s\n", e.time.Format(time.DateTime), e.root, e.err)
			}
		}

		err := os.WriteFile(path, []byte(b.String()), 0o644) //nolint:gosec // user-chosen path for report output
		return saveResultMsg{err: err, path: path}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// Header (1 line).
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	// Content area: header (1) + footer (1) + save/status (1).
	contentHeight := max(m.height-3, 3)

	switch m.mode {
	case viewFeed:
		b.WriteString(m.feed.view(m.width, contentHeight))
	case viewRate:
		b.WriteString(m.rate.view(m.width, contentHeight, m.lastSnap, m.stats))
	}

	// Save modal or status message.
	switch {
	case m.save.active:
		b.WriteString(m.save.render())
	case m.statusMsg != "":
		b.WriteString(styleStatus.Render("  " + m.statusMsg))
	}
	b.WriteByte('\n')

	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	snap := m.lastSnap

	state := styleScanning.Render("watching")
	switch {
	case m.done:
		state = styleIconAdded.Render("done")
	case len(m.feed.scanning) > 0:
		state = styleScanning.Render(fmt.Sprintf("scanning %d", len(m.feed.scanning)))
	}

	header := fmt.Sprintf("  %s  %s  %d roots  +%s -%s ~%s  %s  cycles %s  %s",
		styleHeaderLabel.Render("snapwatch"),
		state,
		len(m.roots),
		ui.FormatCount(snap.Added),
		ui.FormatCount(snap.Removed),
		ui.FormatCount(snap.Modified),
		ui.FormatRate(m.lastRate),
		ui.FormatCount(snap.CyclesCompleted),
		ui.FormatDuration(snap.Elapsed),
	)
	return styleHeader.Render(header)
}

func (m Model) renderFooter() string {
	type keybind struct {
		key   string
		label string
	}

	binds := []keybind{
		{"q", "quit"},
		{"f", "feed"},
		{"r", "rate"},
		{"e", "errors"},
		{"j/k", "scroll"},
		{"s", "save"},
	}

	parts := make([]string, 0, len(binds))
	for _, kb := range binds {
		parts = append(parts,
			styleKeybindKey.Render(kb.key)+" "+styleKeybindLabel.Render(kb.label))
	}

	return "  " + strings.Join(parts, "   ")
}
