// Package copytrack decides whether a file is still being written. The
// verdict is recomputed on every scan from the current observation and the
// previous one; no state is held between scans.
package copytrack

import "time"

// DefaultSettleInterval is how long a file's modification time must lie in
// the past before it is considered settled.
const DefaultSettleInterval = 2 * time.Second

// Observation is what one scan saw of a file.
type Observation struct {
	Modified     time.Time
	Size         int64
	OpenForWrite bool
	// WritersKnown means OpenForWrite came from real writer detection
	// rather than defaulting to false.
	WritersKnown bool
	Copying      bool // verdict of that scan; only meaningful for prev
}

// Policy decides the copying state of a file. prev is nil when the file was
// not in the baseline.
type Policy interface {
	Copying(now time.Time, cur Observation, prev *Observation) bool
}

// Settle treats a file as copying while a writer holds it open or while its
// modification time is younger than Interval. A modification time in the
// future counts as settled once a scan sees it unchanged from the previous
// one. Where writers cannot be detected, a file seen copying stays copying
// for as long as its size keeps changing between scans.
type Settle struct {
	Interval time.Duration
}

// Copying implements Policy.
func (s Settle) Copying(now time.Time, cur Observation, prev *Observation) bool {
	if cur.OpenForWrite {
		return true
	}
	if s.Interval > 0 && !cur.Modified.IsZero() {
		age := now.Sub(cur.Modified)
		if age >= 0 && age < s.Interval {
			return true
		}
		if age < 0 && !unchanged(cur, prev) {
			return true
		}
	}
	if cur.WritersKnown {
		return false
	}
	return prev != nil && prev.Copying && prev.Size != cur.Size
}

func unchanged(cur Observation, prev *Observation) bool {
	return prev != nil && prev.Size == cur.Size && prev.Modified.Equal(cur.Modified)
}

// Never disables copy tracking: every file is settled.
type Never struct{}

// Copying implements Policy.
func (Never) Copying(time.Time, Observation, *Observation) bool { return false }

// FuncPolicy adapts a plain function to Policy.
type FuncPolicy func(now time.Time, cur Observation, prev *Observation) bool

// Copying implements Policy.
func (f FuncPolicy) Copying(now time.Time, cur Observation, prev *Observation) bool {
	return f(now, cur, prev)
}

// Default returns the policy used when none is configured.
func Default() Policy {
	return Settle{Interval: DefaultSettleInterval}
}
