package ui

import (
	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
)

// quietPresenter consumes events but produces no output.
type quietPresenter struct {
	stats *stats.Collector
}

func (p *quietPresenter) Run(events <-chan event.Event) error {
	for range events {
		// Counters live on the collector; the engine updates them directly.
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
