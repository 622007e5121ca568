package observability

import (
	"sync/atomic"
	"time"
)

// JobMetrics keeps in-process counters for housekeeping runs so that health
// endpoints can report them without scraping Prometheus.
type JobMetrics struct {
	runs   atomic.Uint64
	failed atomic.Uint64

	// duration stats (nanoseconds)
	durationTotal atomic.Int64
	durationMax   atomic.Int64
	lastRunUnix   atomic.Int64
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) Observe(d time.Duration, err error, at time.Time) {
	m.runs.Add(1)
	if err != nil {
		m.failed.Add(1)
	}
	m.lastRunUnix.Store(at.Unix())

	ns := d.Nanoseconds()
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type JobMetricsSnapshot struct {
	Runs            uint64        `json:"runs"`
	Failed          uint64        `json:"failed"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
	LastRun         *time.Time    `json:"lastRun,omitempty"`
}

func (m *JobMetrics) Snapshot() JobMetricsSnapshot {
	runs := m.runs.Load()
	total := m.durationTotal.Load()

	var avg time.Duration
	if runs > 0 {
		avg = time.Duration(total / int64(runs))
	}

	snap := JobMetricsSnapshot{
		Runs:            runs,
		Failed:          m.failed.Load(),
		AverageDuration: avg,
		MaxDuration:     time.Duration(m.durationMax.Load()),
	}
	if last := m.lastRunUnix.Load(); last > 0 {
		t := time.Unix(last, 0).UTC()
		snap.LastRun = &t
	}
	return snap
}
