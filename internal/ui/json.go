package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/item"
	"github.com/bamsammich/snapwatch/internal/stats"
)

// jsonRecord is the wire shape of one feed line.
type jsonRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Item      *item.Snapshot `json:"item,omitempty"`
	Old       *item.Snapshot `json:"old,omitempty"`
	Type      event.Type     `json:"type"`
	Root      string         `json:"root"`
	Path      string         `json:"path,omitempty"`
	ScanID    string         `json:"scan_id"`
	Error     string         `json:"error,omitempty"`
	Fields    []string       `json:"fields,omitempty"`
	Changes   *int           `json:"changes,omitempty"`
}

func newRecord(ev event.Event) jsonRecord {
	rec := jsonRecord{
		Timestamp: ev.Timestamp,
		Type:      ev.Type,
		Root:      ev.Root,
		Path:      ev.Path,
		ScanID:    ev.ScanID,
		Fields:    ev.Fields.Names(),
		Old:       ev.Old,
	}
	if ev.Type.IsChange() {
		snap := ev.Item
		rec.Item = &snap
	}
	if ev.Type == event.ScanComplete {
		n := ev.Changes
		rec.Changes = &n
	}
	if ev.Error != nil {
		rec.Error = ev.Error.Error()
	}
	return rec
}

// jsonPresenter writes every event, lifecycle included, as one JSON object
// per line.
type jsonPresenter struct {
	enc   *json.Encoder
	stats *stats.Collector
}

func newJSONPresenter(w io.Writer, s *stats.Collector) *jsonPresenter {
	return &jsonPresenter{enc: json.NewEncoder(w), stats: s}
}

func (p *jsonPresenter) Run(events <-chan event.Event) error {
	var firstErr error
	for ev := range events {
		if err := p.enc.Encode(newRecord(ev)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("write event: %w", err)
		}
	}
	return firstErr
}

func (p *jsonPresenter) Summary() string {
	return ""
}
