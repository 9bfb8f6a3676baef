package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bamsammich/snapwatch/internal/diff"
	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/item"
	"github.com/bamsammich/snapwatch/internal/stats"
	"github.com/bamsammich/snapwatch/internal/store"
)

// CycleConfig describes one build-diff-commit cycle for a root.
type CycleConfig struct {
	Store   store.Store
	Events  chan<- event.Event // nil discards the feed
	Stats   *stats.Collector
	Metrics *stats.Metrics // optional
	Scanner ScannerConfig  // Root and Baseline are filled in per cycle
	Root    string         // cleaned absolute path
}

// CycleResult is the outcome of one cycle.
type CycleResult struct {
	Err       error
	ScanID    string
	Root      string
	Changes   []event.Event
	Summary   diff.Summary
	Nodes     int
	Unsettled int // files in the committed tree still copying or held back
	Duration  time.Duration
	Cancelled bool
}

// RunCycle loads the baseline for cfg.Root, builds a fresh tree, diffs the
// two, commits the new tree, and then delivers the change records. Nothing
// is delivered unless the commit succeeds; a cycle cancelled before commit
// leaves the baseline untouched.
func RunCycle(ctx context.Context, cfg CycleConfig) CycleResult {
	start := time.Now()
	res := CycleResult{ScanID: uuid.NewString(), Root: cfg.Root}
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}
	log := slog.With("root", cfg.Root, "scan_id", res.ScanID)

	emit(cfg.Events, event.Event{Type: event.ScanStarted, Root: cfg.Root, ScanID: res.ScanID, Timestamp: start})

	finish := func(r CycleResult) CycleResult {
		r.Duration = time.Since(start)
		ev := event.Event{Root: cfg.Root, ScanID: r.ScanID, Timestamp: time.Now(), Error: r.Err}
		switch {
		case r.Cancelled:
			collector.AddCyclesCancelled(1)
			ev.Type = event.ScanCancelled
			log.Debug("scan cancelled")
		case r.Err != nil:
			collector.AddCyclesFailed(1)
			ev.Type = event.ScanFailed
			log.Error("scan failed", "error", r.Err)
		default:
			collector.AddCyclesCompleted(1)
			ev.Type = event.ScanComplete
			ev.Changes = len(r.Changes)
			if cfg.Metrics != nil {
				cfg.Metrics.ObserveScan(cfg.Root, r.Duration)
			}
		}
		emit(cfg.Events, ev)
		return r
	}

	baseline, err := loadBaseline(ctx, cfg.Store, cfg.Root, log)
	if err != nil {
		if ctx.Err() != nil {
			res.Cancelled = true
			return finish(res)
		}
		res.Err = err
		return finish(res)
	}

	scanCfg := cfg.Scanner
	scanCfg.Root = cfg.Root
	scanCfg.Baseline = baseline
	scanCfg.Stats = collector
	tree, err := NewScanner(scanCfg).Build(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res.Cancelled = true
			return finish(res)
		}
		res.Err = fmt.Errorf("build tree: %w", err)
		return finish(res)
	}
	res.Nodes = tree.Len()

	changes := diff.Compare(baseline, tree)
	if ctx.Err() != nil {
		res.Cancelled = true
		return finish(res)
	}

	if err := cfg.Store.Commit(ctx, cfg.Root, tree); err != nil {
		if ctx.Err() != nil {
			res.Cancelled = true
			return finish(res)
		}
		res.Err = err
		return finish(res)
	}

	now := time.Now()
	for i := range changes {
		changes[i].Root = cfg.Root
		changes[i].ScanID = res.ScanID
		changes[i].Timestamp = now
		countChange(collector, changes[i].Type)
		emit(cfg.Events, changes[i])
	}
	res.Changes = changes
	res.Summary = diff.Summarize(changes)
	res.Unsettled = unsettled(tree)
	log.Debug("scan complete", "nodes", res.Nodes, "changes", len(changes))
	return finish(res)
}

// loadBaseline returns the stored tree for root. A corrupt baseline is
// reported and treated as absent so the cycle rebuilds from scratch.
func loadBaseline(ctx context.Context, s store.Store, root string, log *slog.Logger) (*item.Tree, error) {
	baseline, err := s.Load(ctx, root)
	if errors.Is(err, store.ErrCorruptBaseline) {
		log.Warn("discarding corrupt baseline", "error", err)
		return nil, nil //nolint:nilnil // absent baseline
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	return baseline, nil
}

// unsettled counts the files of tree that a later scan must revisit before
// their state is final.
func unsettled(tree *item.Tree) int {
	n := 0
	for id := range item.NodeID(tree.Len()) {
		if it := tree.Get(id); item.CopyingOf(it) || item.PendingOf(it) {
			n++
		}
	}
	return n
}

func countChange(c *stats.Collector, t event.Type) {
	switch t {
	case event.Added:
		c.AddAdded(1)
	case event.Removed:
		c.AddRemoved(1)
	case event.Modified:
		c.AddModified(1)
	}
}

func emit(ch chan<- event.Event, ev event.Event) {
	if ch != nil {
		ch <- ev
	}
}
