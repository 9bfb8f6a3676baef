package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var _ prometheus.Collector = (*Metrics)(nil)

const namespace = "snapwatch"

// Metrics exposes a Collector to Prometheus and records per-root scan
// durations.
type Metrics struct {
	c           *Collector
	scanSeconds *prometheus.HistogramVec
	counters    []counterDesc
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(Snapshot) int64
}

func counter(subsystem, name, help string, value func(Snapshot) int64) counterDesc {
	return counterDesc{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
		value: value,
	}
}

// NewMetrics wraps c.
func NewMetrics(c *Collector) *Metrics {
	return &Metrics{
		c: c,
		scanSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Duration of completed scan cycles, per root",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"root"}),
		counters: []counterDesc{
			counter("scan", "files_total", "Files observed across all scans", func(s Snapshot) int64 { return s.FilesScanned }),
			counter("scan", "dirs_total", "Directories observed across all scans", func(s Snapshot) int64 { return s.DirsScanned }),
			counter("scan", "unreadable_total", "Entries omitted because they could not be read", func(s Snapshot) int64 { return s.Unreadable }),
			counter("scan", "duplicates_total", "Entries dropped for sharing an identifier with a sibling", func(s Snapshot) int64 { return s.Duplicates }),
			counter("cycle", "completed_total", "Scan cycles committed", func(s Snapshot) int64 { return s.CyclesCompleted }),
			counter("cycle", "failed_total", "Scan cycles that failed", func(s Snapshot) int64 { return s.CyclesFailed }),
			counter("cycle", "cancelled_total", "Scan cycles cancelled before commit", func(s Snapshot) int64 { return s.CyclesCancelled }),
			counter("feed", "added_total", "Added records delivered", func(s Snapshot) int64 { return s.Added }),
			counter("feed", "removed_total", "Removed records delivered", func(s Snapshot) int64 { return s.Removed }),
			counter("feed", "modified_total", "Modified records delivered", func(s Snapshot) int64 { return s.Modified }),
		},
	}
}

// ObserveScan records the duration of one completed cycle for root.
func (m *Metrics) ObserveScan(root string, d time.Duration) {
	m.scanSeconds.WithLabelValues(root).Observe(d.Seconds())
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.counters {
		ch <- c.desc
	}
	m.scanSeconds.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	snap := m.c.Snapshot()
	for _, c := range m.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.value(snap)))
	}
	m.scanSeconds.Collect(ch)
}
