package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/item"
	"github.com/bamsammich/snapwatch/internal/stats"
)

func runPlain(p *plainPresenter, evs ...event.Event) error {
	ch := make(chan event.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return p.Run(ch)
}

func TestPlainPresenter_OneLinePerChange(t *testing.T) {
	var out, errOut bytes.Buffer
	p := &plainPresenter{w: &out, errW: &errOut, stats: stats.NewCollector()}

	err := runPlain(p,
		event.Event{Type: event.ScanStarted, Root: "/data"},
		event.Event{Type: event.Modified, Root: "/data", Path: "fileA", Fields: event.FieldSize,
			Item: item.Snapshot{Size: 20}, Old: &item.Snapshot{Size: 10}},
		event.Event{Type: event.Added, Root: "/data", Path: "fileB", Item: item.Snapshot{Size: 5}},
		event.Event{Type: event.ScanComplete, Root: "/data", Changes: 2},
	)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"~ fileA  size 10 B → 20 B",
		"+ fileB  5 B",
	}, lines)
	assert.Empty(t, errOut.String(), "lifecycle is silent unless verbose")
}

func TestPlainPresenter_ScanFailedToStderr(t *testing.T) {
	var out, errOut bytes.Buffer
	p := &plainPresenter{w: &out, errW: &errOut, stats: stats.NewCollector()}

	assert.NoError(t, runPlain(p, event.Event{Type: event.ScanFailed, Root: "/data", Error: assert.AnError}))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "scan failed: /data: "+assert.AnError.Error())
}

func TestPlainPresenter_Verbose(t *testing.T) {
	var out, errOut bytes.Buffer
	p := &plainPresenter{w: &out, errW: &errOut, stats: stats.NewCollector(), verbose: true}

	assert.NoError(t, runPlain(p,
		event.Event{Type: event.ScanComplete, Root: "/data", Changes: 1234},
		event.Event{Type: event.ScanCancelled, Root: "/other"},
	))
	assert.Contains(t, errOut.String(), "scanned /data: 1,234 changes")
	assert.Contains(t, errOut.String(), "scan cancelled: /other")
}

func TestPlainPresenter_MultipleRootsShowRoot(t *testing.T) {
	var out bytes.Buffer
	p := &plainPresenter{w: &out, errW: &bytes.Buffer{}, stats: stats.NewCollector(), withRoot: true}

	assert.NoError(t, runPlain(p, event.Event{Type: event.Removed, Root: "/srv/a", Path: "x/y"}))
	assert.Equal(t, "- /srv/a/x/y\n", out.String())
}

func TestPlainPresenter_Summary(t *testing.T) {
	c := stats.NewCollector()
	c.AddCyclesCompleted(1)
	c.AddAdded(2)
	p := &plainPresenter{stats: c}
	assert.Contains(t, p.Summary(), "changes +2 -0 ~0")
}
