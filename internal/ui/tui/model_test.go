package tui

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/item"
	"github.com/bamsammich/snapwatch/internal/stats"
)

func newTestModel(roots ...string) (Model, chan event.Event, *stats.Collector) {
	if len(roots) == 0 {
		roots = []string{"/data"}
	}
	ch := make(chan event.Event, 10)
	c := stats.NewCollector()
	return NewModel(ch, c, roots), ch, c
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	model, ok := updated.(Model)
	require.True(t, ok)
	return model, cmd
}

func addedEvent(root, p string) event.Event {
	return event.Event{
		Type:      event.Added,
		Root:      root,
		Path:      p,
		Item:      item.Snapshot{Name: filepath.Base(p), Kind: item.KindFile, Size: 10},
		Timestamp: time.Now(),
	}
}

func TestModel_Init(t *testing.T) {
	m, _, _ := newTestModel()
	assert.NotNil(t, m.Init())
}

func TestModel_WithRootOnlyForSeveralRoots(t *testing.T) {
	m, _, _ := newTestModel("/a")
	assert.False(t, m.feed.withRoot)

	m, _, _ = newTestModel("/a", "/b")
	assert.True(t, m.feed.withRoot)
}

func TestModel_KeyQ_Quits(t *testing.T) {
	m, _, _ := newTestModel()
	m, cmd := update(t, m, key('q'))
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestModel_ModeKeys(t *testing.T) {
	m, _, _ := newTestModel()

	m, _ = update(t, m, key('r'))
	assert.Equal(t, viewRate, m.mode)

	m, _ = update(t, m, key('f'))
	assert.Equal(t, viewFeed, m.mode)

	m.mode = viewRate
	m, _ = update(t, m, key('e'))
	assert.Equal(t, viewFeed, m.mode)
	assert.True(t, m.feed.expandErrors)

	m, _ = update(t, m, key('e'))
	assert.False(t, m.feed.expandErrors)
}

func TestModel_WindowResize(t *testing.T) {
	m, _, _ := newTestModel()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 40, m.height)
}

func TestModel_EventsReachBothViews(t *testing.T) {
	m, _, _ := newTestModel()

	m, cmd := update(t, m, feedEventMsg(event.Event{Type: event.ScanStarted, Root: "/data", ScanID: "s1"}))
	assert.NotNil(t, cmd, "keeps reading the channel")
	assert.Len(t, m.feed.scanning, 1)

	m, _ = update(t, m, feedEventMsg(addedEvent("/data", "a.txt")))
	m, _ = update(t, m, feedEventMsg(event.Event{
		Type: event.ScanComplete, Root: "/data", ScanID: "s1", Changes: 1, Timestamp: time.Now(),
	}))
	assert.Empty(t, m.feed.scanning)
	require.Len(t, m.feed.changes, 1)
	assert.Equal(t, "a.txt", m.feed.changes[0].path)
	require.Contains(t, m.rate.roots, "/data")
	assert.Equal(t, 1, m.rate.roots["/data"].cycles)
}

func TestModel_ReadNextEvent(t *testing.T) {
	ch := make(chan event.Event, 1)
	ch <- addedEvent("/data", "x")
	msg := readNextEvent(ch)()
	ev, ok := msg.(feedEventMsg)
	require.True(t, ok)
	assert.Equal(t, "x", ev.Path)

	close(ch)
	assert.IsType(t, channelDoneMsg{}, readNextEvent(ch)())
}

func TestModel_ChannelDone_StaysOpen(t *testing.T) {
	m, _, _ := newTestModel()
	m, cmd := update(t, m, channelDoneMsg{})
	assert.True(t, m.done)
	assert.False(t, m.quitting)
	assert.Nil(t, cmd)
	assert.Contains(t, m.renderHeader(), "done")
}

func TestModel_Tick(t *testing.T) {
	m, _, c := newTestModel()
	c.AddAdded(3)
	c.AddCyclesCompleted(1)

	m, cmd := update(t, m, tickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Equal(t, int64(3), m.lastSnap.Added)
	assert.Contains(t, m.renderHeader(), "+3")
}

func TestModel_ViewFeedAndRate(t *testing.T) {
	m, _, _ := newTestModel()
	m.width, m.height = 100, 30
	m, _ = update(t, m, feedEventMsg(addedEvent("/data", "report.pdf")))

	out := m.View()
	assert.Contains(t, out, "snapwatch")
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "quit")

	m.mode = viewRate
	out = m.View()
	assert.Contains(t, out, "changes")
	assert.NotContains(t, out, "report.pdf")
}

func TestModel_ScrollKeys(t *testing.T) {
	m, _, _ := newTestModel()
	for i := range 20 {
		m, _ = update(t, m, feedEventMsg(addedEvent("/data", filepath.Join("d", string(rune('a'+i))))))
	}

	m, _ = update(t, m, key('g'))
	assert.False(t, m.feed.autoScroll)
	assert.Equal(t, 0, m.feed.scrollOffset)

	m, _ = update(t, m, key('j'))
	assert.Equal(t, 1, m.feed.scrollOffset)

	m, _ = update(t, m, key('k'))
	assert.Equal(t, 0, m.feed.scrollOffset)

	m, _ = update(t, m, key('G'))
	assert.True(t, m.feed.autoScroll)
}

func TestModel_ScrollIgnoredInRateMode(t *testing.T) {
	m, _, _ := newTestModel()
	m.mode = viewRate
	m, _ = update(t, m, key('j'))
	assert.True(t, m.feed.autoScroll)
}

func TestModel_SaveModal_OpensWhileWatching(t *testing.T) {
	m, _, _ := newTestModel()
	m, _ = update(t, m, key('s'))
	assert.True(t, m.save.active)
	assert.Contains(t, m.save.input, "snapwatch-")
	assert.Equal(t, len(m.save.input), m.save.cursor)
	assert.Contains(t, m.View(), "Save to:")
}

func TestModel_SaveModal_CapturesKeys(t *testing.T) {
	m, _, _ := newTestModel()
	m, _ = update(t, m, key('s'))

	// 'q' is text while the modal is open.
	m, cmd := update(t, m, key('q'))
	assert.False(t, m.quitting)
	assert.Nil(t, cmd)
	assert.True(t, m.save.active)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	assert.False(t, m.save.active)
}

func TestModel_SaveModal_TextInput(t *testing.T) {
	m, _, _ := newTestModel()
	m.save.active = true

	for _, r := range "ab" {
		m, _ = update(t, m, key(r))
	}
	assert.Equal(t, "ab", m.save.input)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m, _ = update(t, m, key('x'))
	assert.Equal(t, "axb", m.save.input)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "ab", m.save.input)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDelete})
	assert.Equal(t, "a", m.save.input)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 1, m.save.cursor)
}

func TestModel_SaveModal_WritesReport(t *testing.T) {
	m, _, c := newTestModel()
	c.AddAdded(1)
	m, _ = update(t, m, feedEventMsg(addedEvent("/data", "a.txt")))
	m, _ = update(t, m, feedEventMsg(event.Event{
		Type: event.ScanFailed, Root: "/data", Error: errors.New("permission denied"), Timestamp: time.Now(),
	}))

	path := filepath.Join(t.TempDir(), "report.log")
	m.save.active = true
	m.save.input = path
	m.save.cursor = len(path)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	res, ok := cmd().(saveResultMsg)
	require.True(t, ok)
	require.NoError(t, res.err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	report := string(data)
	assert.Contains(t, report, "snapwatch change report")
	assert.Contains(t, report, "/data")
	assert.Contains(t, report, "+ a.txt")
	assert.Contains(t, report, "permission denied")

	m, _ = update(t, m, res)
	assert.False(t, m.save.active)
	assert.Contains(t, m.statusMsg, "saved to")
}

func TestModel_SaveResultError(t *testing.T) {
	m, _, _ := newTestModel()
	m.save.active = true
	m, _ = update(t, m, saveResultMsg{err: errors.New("disk full")})
	assert.False(t, m.save.active)
	assert.Contains(t, m.statusMsg, "disk full")
}
