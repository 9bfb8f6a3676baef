package ui_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/snapwatch/internal/ui"
)

// failingHandler accepts everything and fails every Handle.
type failingHandler struct{ err error }

func (failingHandler) Enabled(context.Context, slog.Level) bool    { return true }
func (f failingHandler) Handle(context.Context, slog.Record) error { return f.err }
func (f failingHandler) WithAttrs([]slog.Attr) slog.Handler        { return f }
func (f failingHandler) WithGroup(string) slog.Handler             { return f }

func decodeLines(t *testing.T, b *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		out = append(out, rec)
	}
	return out
}

func TestMultiHandler_TeesEventRecords(t *testing.T) {
	t.Parallel()

	var textBuf, jsonBuf bytes.Buffer
	textH := slog.NewTextHandler(&textBuf, &slog.HandlerOptions{Level: slog.LevelWarn})
	jsonH := slog.NewJSONHandler(&jsonBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(ui.NewMultiHandler(textH, jsonH))

	logger.Info("snapwatch.event", "type", "Added", "root", "/data", "path", "a.txt", "scan_id", "s1")
	logger.Error("scan failed", "root", "/data", "error", "root unavailable")

	// The terminal only sees warnings; the log file sees everything.
	assert.NotContains(t, textBuf.String(), "snapwatch.event")
	assert.Contains(t, textBuf.String(), "scan failed")
	assert.Contains(t, textBuf.String(), "root=/data")

	recs := decodeLines(t, &jsonBuf)
	require.Len(t, recs, 2)
	assert.Equal(t, "snapwatch.event", recs[0]["msg"])
	assert.Equal(t, "Added", recs[0]["type"])
	assert.Equal(t, "a.txt", recs[0]["path"])
	assert.Equal(t, "s1", recs[0]["scan_id"])
	assert.Equal(t, "ERROR", recs[1]["level"])
}

func TestMultiHandler_Enabled(t *testing.T) {
	t.Parallel()

	warnH := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	errH := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})
	m := ui.NewMultiHandler(warnH, errH)

	tests := []struct {
		level slog.Level
		want  bool
	}{
		{level: slog.LevelDebug},
		{level: slog.LevelInfo},
		{level: slog.LevelWarn, want: true},
		{level: slog.LevelError, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, m.Enabled(context.Background(), tt.level))
		})
	}
}

func TestMultiHandler_JoinsHandlerErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	errDisk := errors.New("disk full")
	m := ui.NewMultiHandler(
		slog.NewJSONHandler(&buf, nil),
		failingHandler{err: errDisk},
	)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "cycle", 0)
	err := m.Handle(context.Background(), r)
	require.ErrorIs(t, err, errDisk)
	assert.Contains(t, buf.String(), "cycle", "healthy handlers still write")
}

func TestMultiHandler_AttrsAndGroupsReachEveryHandler(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	m := ui.NewMultiHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))
	logger := slog.New(m.WithAttrs([]slog.Attr{slog.String("root", "/data")}).WithGroup("scan"))

	logger.Info("scan complete", "changes", 3)

	for _, buf := range []*bytes.Buffer{&a, &b} {
		recs := decodeLines(t, buf)
		require.Len(t, recs, 1)
		assert.Equal(t, "/data", recs[0]["root"])
		group, ok := recs[0]["scan"].(map[string]any)
		require.True(t, ok, "expected group 'scan'")
		assert.InDelta(t, 3, group["changes"], 0)
	}
}
