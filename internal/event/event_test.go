package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/snapwatch/internal/item"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		want string
		typ  Type
	}{
		{want: "Added", typ: Added},
		{want: "Removed", typ: Removed},
		{want: "Modified", typ: Modified},
		{want: "ScanStarted", typ: ScanStarted},
		{want: "ScanComplete", typ: ScanComplete},
		{want: "ScanCancelled", typ: ScanCancelled},
		{want: "ScanFailed", typ: ScanFailed},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestTypeStringUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Type(999).String())
	assert.Equal(t, "Unknown", Type(0).String())
}

func TestTypeIsChange(t *testing.T) {
	assert.True(t, Added.IsChange())
	assert.True(t, Removed.IsChange())
	assert.True(t, Modified.IsChange())
	assert.False(t, ScanComplete.IsChange())
}

func TestFieldNames(t *testing.T) {
	f := FieldSize | FieldName
	assert.Equal(t, []string{"name", "size"}, f.Names())
	assert.Equal(t, "name,size", f.String())
	assert.True(t, f.Has(FieldName))
	assert.False(t, f.Has(FieldCopying))
	assert.False(t, f.Has(0))
	assert.Empty(t, Field(0).String())
}

func TestEventRenamed(t *testing.T) {
	assert.True(t, Event{Type: Modified, Fields: FieldName | FieldSize}.Renamed())
	assert.False(t, Event{Type: Modified, Fields: FieldSize}.Renamed())
	assert.False(t, Event{Type: Added, Fields: FieldName}.Renamed())
}

func TestEventJSON(t *testing.T) {
	e := Event{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Type:      Modified,
		Root:      "/data",
		Path:      "dir/file.txt",
		Fields:    FieldSize,
		Item:      item.Snapshot{Kind: item.KindFile, Name: "file.txt", Identifier: 7, Size: 20},
		Old:       &item.Snapshot{Kind: item.KindFile, Name: "file.txt", Identifier: 7, Size: 10},
	}
	b, err := json.Marshal(e)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(b, &rec))
	assert.Equal(t, "Modified", rec["type"])
	assert.Equal(t, "size", rec["fields"])
	assert.Equal(t, "dir/file.txt", rec["path"])
	itemRec, ok := rec["item"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "file", itemRec["kind"])
	assert.InDelta(t, 20, itemRec["size"], 0)
}
