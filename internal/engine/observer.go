package engine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bamsammich/snapwatch/internal/copytrack"
	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
	"github.com/bamsammich/snapwatch/internal/store"
)

// ErrObserverClosed is returned by Trigger after Close.
var ErrObserverClosed = errors.New("observer closed")

// ObserverConfig configures an Observer.
type ObserverConfig struct {
	Store    store.Store
	Events   chan<- event.Event
	Stats    *stats.Collector
	Metrics  *stats.Metrics
	OnResult func(CycleResult) // called after every cycle, from the cycle's goroutine
	Scanner  ScannerConfig
	// MaxConcurrent bounds how many roots scan at once. Defaults to
	// DefaultMaxConcurrent().
	MaxConcurrent int
	// Recheck is how long after a cycle that left files copying the root is
	// scanned again. Zero uses copytrack.DefaultSettleInterval; negative
	// disables rechecks.
	Recheck time.Duration
}

// DefaultMaxConcurrent returns min(NumCPU, 4).
func DefaultMaxConcurrent() int {
	return min(runtime.NumCPU(), 4)
}

// Observer schedules scan cycles. Cycles of one root run one at a time in
// trigger order; different roots run in parallel up to MaxConcurrent.
type Observer struct {
	cfg ObserverConfig
	ctx context.Context
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	roots  map[string]*rootState
	closed bool
	failed int
}

type rootState struct {
	recheck *time.Timer
	running bool
	pending bool // a trigger arrived while running
}

// NewObserver creates an observer. Cancelling ctx cancels in-flight cycles.
func NewObserver(ctx context.Context, cfg ObserverConfig) *Observer {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent()
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.Recheck == 0 {
		cfg.Recheck = copytrack.DefaultSettleInterval
	}
	return &Observer{
		cfg:   cfg,
		ctx:   ctx,
		sem:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		roots: make(map[string]*rootState),
	}
}

// Trigger requests a scan of root. If a cycle for root is already running,
// one rerun is queued after it; further triggers before that rerun starts
// are merged into it.
func (o *Observer) Trigger(root string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrObserverClosed
	}

	st, ok := o.roots[root]
	if !ok {
		st = &rootState{}
		o.roots[root] = st
	}
	if st.recheck != nil {
		st.recheck.Stop()
		st.recheck = nil
	}
	if st.running {
		st.pending = true
		return nil
	}
	st.running = true
	o.wg.Add(1)
	go o.run(root, st)
	return nil
}

func (o *Observer) run(root string, st *rootState) {
	defer o.wg.Done()
	for {
		if err := o.sem.Acquire(o.ctx, 1); err != nil {
			o.mu.Lock()
			st.running, st.pending = false, false
			o.mu.Unlock()
			return
		}
		res := RunCycle(o.ctx, CycleConfig{
			Store:   o.cfg.Store,
			Events:  o.cfg.Events,
			Stats:   o.cfg.Stats,
			Metrics: o.cfg.Metrics,
			Scanner: o.cfg.Scanner,
			Root:    root,
		})
		o.sem.Release(1)

		if o.cfg.OnResult != nil {
			o.cfg.OnResult(res)
		}

		o.mu.Lock()
		if res.Err != nil {
			o.failed++
		}
		if st.pending && o.ctx.Err() == nil {
			st.pending = false
			o.mu.Unlock()
			continue
		}
		st.running, st.pending = false, false
		if res.Unsettled > 0 && res.Err == nil && !res.Cancelled {
			o.scheduleRecheck(root, st)
		}
		o.mu.Unlock()
		return
	}
}

// scheduleRecheck arms a one-shot trigger for root so files still copying
// get a scan after they had time to settle. Callers hold o.mu.
func (o *Observer) scheduleRecheck(root string, st *rootState) {
	if o.cfg.Recheck < 0 || o.closed || o.ctx.Err() != nil {
		return
	}
	if st.recheck != nil {
		st.recheck.Stop()
	}
	st.recheck = time.AfterFunc(o.cfg.Recheck, func() {
		if o.ctx.Err() != nil {
			return
		}
		if err := o.Trigger(root); err != nil {
			slog.Debug("recheck skipped", "root", root, "error", err)
		}
	})
}

// Wait blocks until every running and queued cycle has finished. Pending
// rechecks are not waited for.
func (o *Observer) Wait() {
	o.wg.Wait()
}

// Close stops accepting triggers and waits for outstanding cycles.
func (o *Observer) Close() {
	o.mu.Lock()
	o.closed = true
	for _, st := range o.roots {
		if st.recheck != nil {
			st.recheck.Stop()
			st.recheck = nil
		}
	}
	o.mu.Unlock()
	o.wg.Wait()
}

// Failed returns the number of cycles that ended with an error.
func (o *Observer) Failed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failed
}

// Stats returns the collector shared by all cycles.
func (o *Observer) Stats() *stats.Collector {
	return o.cfg.Stats
}
