package app

import (
	"sync/atomic"
	"time"

	"github.com/Hirshol/equill-core-apps-sub000/internal/document"
	"github.com/Hirshol/equill-core-apps-sub000/internal/power"
)

// Metrics tracks daemon counters. All methods are safe for concurrent use.
type Metrics struct {
	// Handler timing
	eventCount   atomic.Uint64
	eventFailed  atomic.Uint64
	eventTotalNs atomic.Int64
	eventMaxNs   atomic.Int64

	// Documents
	switches     atomic.Uint64
	switchBusy   atomic.Uint64
	switchFailed atomic.Uint64

	// Power
	suspends  atomic.Uint64
	completed atomic.Uint64
	aborted   atomic.Uint64
	resumes   atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordEvent records one handler invocation.
func (m *Metrics) RecordEvent(d time.Duration, err error) {
	ns := d.Nanoseconds()
	m.eventCount.Add(1)
	m.eventTotalNs.Add(ns)
	if err != nil {
		m.eventFailed.Add(1)
	}
	for {
		old := m.eventMaxNs.Load()
		if ns <= old || m.eventMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordSwitch records the result of a document open.
func (m *Metrics) RecordSwitch(r document.SwitchResult, err error) {
	switch {
	case err != nil:
		m.switchFailed.Add(1)
	case r == document.SwitchBusy:
		m.switchBusy.Add(1)
	default:
		m.switches.Add(1)
	}
}

// RecordSuspend records the outcome of a suspend sequence.
func (m *Metrics) RecordSuspend(o power.SuspendOutcome) {
	m.suspends.Add(1)
	if o == power.SuspendCompleted {
		m.completed.Add(1)
	} else {
		m.aborted.Add(1)
	}
}

// RecordResume records a resume from sleep.
func (m *Metrics) RecordResume() {
	m.resumes.Add(1)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	n := m.eventCount.Load()
	var avg time.Duration
	if n > 0 {
		avg = time.Duration(m.eventTotalNs.Load() / int64(n))
	}
	return MetricsSnapshot{
		Uptime:           time.Since(m.startTime),
		Events:           n,
		EventsFailed:     m.eventFailed.Load(),
		AvgHandler:       avg,
		MaxHandler:       time.Duration(m.eventMaxNs.Load()),
		Switches:         m.switches.Load(),
		SwitchesBusy:     m.switchBusy.Load(),
		SwitchesFailed:   m.switchFailed.Load(),
		Suspends:         m.suspends.Load(),
		SuspendsComplete: m.completed.Load(),
		SuspendsAborted:  m.aborted.Load(),
		Resumes:          m.resumes.Load(),
	}
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime           time.Duration
	Events           uint64
	EventsFailed     uint64
	AvgHandler       time.Duration
	MaxHandler       time.Duration
	Switches         uint64
	SwitchesBusy     uint64
	SwitchesFailed   uint64
	Suspends         uint64
	SuspendsComplete uint64
	SuspendsAborted  uint64
	Resumes          uint64
}
