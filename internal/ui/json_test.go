package ui

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/item"
	"github.com/bamsammich/snapwatch/internal/stats"
)

func TestJSONPresenter_OneObjectPerLine(t *testing.T) {
	var out bytes.Buffer
	p := newJSONPresenter(&out, stats.NewCollector())

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ch := make(chan event.Event, 4)
	ch <- event.Event{Type: event.ScanStarted, Root: "/data", ScanID: "id-1", Timestamp: ts}
	ch <- event.Event{
		Type: event.Modified, Root: "/data", Path: "b.txt", ScanID: "id-1", Timestamp: ts,
		Fields: event.FieldName | event.FieldSize,
		Item:   item.Snapshot{Name: "b.txt", Identifier: 7, Size: 20},
		Old:    &item.Snapshot{Name: "a.txt", Identifier: 7, Size: 10},
	}
	ch <- event.Event{Type: event.ScanFailed, Root: "/data", ScanID: "id-2", Error: errors.New("boom")}
	ch <- event.Event{Type: event.ScanComplete, Root: "/data", ScanID: "id-1"}
	close(ch)
	require.NoError(t, p.Run(ch))

	var recs []map[string]any
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec), sc.Text())
		recs = append(recs, rec)
	}
	require.Len(t, recs, 4)

	assert.Equal(t, "ScanStarted", recs[0]["type"])
	assert.NotContains(t, recs[0], "item", "lifecycle events carry no item")

	mod := recs[1]
	assert.Equal(t, "Modified", mod["type"])
	assert.Equal(t, "b.txt", mod["path"])
	assert.Equal(t, "id-1", mod["scan_id"])
	assert.Equal(t, []any{"name", "size"}, mod["fields"])
	assert.Equal(t, "a.txt", mod["old"].(map[string]any)["name"])
	assert.InDelta(t, 20, mod["item"].(map[string]any)["size"], 0)
	assert.Equal(t, "file", mod["item"].(map[string]any)["kind"])

	assert.Equal(t, "boom", recs[2]["error"])
	assert.InDelta(t, 0, recs[3]["changes"], 0, "zero changes is still reported")
}

func TestJSONPresenter_Summary(t *testing.T) {
	assert.Empty(t, newJSONPresenter(&bytes.Buffer{}, stats.NewCollector()).Summary())
}
