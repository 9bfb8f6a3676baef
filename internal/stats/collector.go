// Package stats tracks scan and change-feed counters.
package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks observer statistics using lock-free atomic counters. It is
// shared by every scan cycle of a process.
type Collector struct {
	filesScanned    atomic.Int64
	dirsScanned     atomic.Int64
	bytesObserved   atomic.Int64
	unreadable      atomic.Int64
	duplicates      atomic.Int64
	filesCopying    atomic.Int64
	cyclesCompleted atomic.Int64
	cyclesFailed    atomic.Int64
	cyclesCancelled atomic.Int64
	added           atomic.Int64
	removed         atomic.Int64
	modified        atomic.Int64
	startTime       time.Time

	// Ring buffer, written only by the presenter's Tick().
	mu         sync.Mutex
	changesSec [ringSize]int64 // change records delta per second
	ringIdx    int
	ringCount  int // samples written, capped at ringSize
	lastTotal  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesScanned    int64
	DirsScanned     int64
	BytesObserved   int64
	Unreadable      int64
	Duplicates      int64
	FilesCopying    int64
	CyclesCompleted int64
	CyclesFailed    int64
	CyclesCancelled int64
	Added           int64
	Removed         int64
	Modified        int64
	Elapsed         time.Duration
}

// Changes returns the total number of change records delivered.
func (s Snapshot) Changes() int64 {
	return s.Added + s.Removed + s.Modified
}

func (c *Collector) AddFilesScanned(n int64)    { c.filesScanned.Add(n) }
func (c *Collector) AddDirsScanned(n int64)     { c.dirsScanned.Add(n) }
func (c *Collector) AddBytesObserved(n int64)   { c.bytesObserved.Add(n) }
func (c *Collector) AddUnreadable(n int64)      { c.unreadable.Add(n) }
func (c *Collector) AddDuplicates(n int64)      { c.duplicates.Add(n) }
func (c *Collector) AddFilesCopying(n int64)    { c.filesCopying.Add(n) }
func (c *Collector) AddCyclesCompleted(n int64) { c.cyclesCompleted.Add(n) }
func (c *Collector) AddCyclesFailed(n int64)    { c.cyclesFailed.Add(n) }
func (c *Collector) AddCyclesCancelled(n int64) { c.cyclesCancelled.Add(n) }
func (c *Collector) AddAdded(n int64)           { c.added.Add(n) }
func (c *Collector) AddRemoved(n int64)         { c.removed.Add(n) }
func (c *Collector) AddModified(n int64)        { c.modified.Add(n) }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesScanned:    c.filesScanned.Load(),
		DirsScanned:     c.dirsScanned.Load(),
		BytesObserved:   c.bytesObserved.Load(),
		Unreadable:      c.unreadable.Load(),
		Duplicates:      c.duplicates.Load(),
		FilesCopying:    c.filesCopying.Load(),
		CyclesCompleted: c.cyclesCompleted.Load(),
		CyclesFailed:    c.cyclesFailed.Load(),
		CyclesCancelled: c.cyclesCancelled.Load(),
		Added:           c.added.Load(),
		Removed:         c.removed.Load(),
		Modified:        c.modified.Load(),
		Elapsed:         c.Elapsed(),
	}
}

func (c *Collector) changes() int64 {
	return c.added.Load() + c.removed.Load() + c.modified.Load()
}

// Tick records the change-record delta since the previous tick into the ring
// buffer. Called once per second by the presenter.
func (c *Collector) Tick() {
	current := c.changes()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.changesSec[c.ringIdx] = current - c.lastTotal
	c.lastTotal = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingChangesPerSec returns average change records per second over the
// last n samples.
func (c *Collector) RollingChangesPerSec(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.changesSec[idx]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns the last n per-second change counts, oldest first.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(n, c.ringCount)
	if count <= 0 {
		return nil
	}
	data := make([]float64, count)
	for i := range count {
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		data[i] = float64(c.changesSec[idx])
	}
	return data
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"files=%d dirs=%d unreadable=%d added=%d removed=%d modified=%d cycles=%d failed=%d",
		s.FilesScanned, s.DirsScanned, s.Unreadable, s.Added, s.Removed, s.Modified,
		s.CyclesCompleted, s.CyclesFailed,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
