// Package observability collects in-process saga metrics: per-step latency
// and saga outcome counters. All methods are nil-receiver safe so metrics
// stay optional throughout the orchestration layer.
package observability

import (
	"sync"
	"time"
)

// StepSnapshot is the exported view of one saga step's stats.
type StepSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// Snapshot is a point-in-time view of all collected metrics.
type Snapshot struct {
	UptimeSec           int64                   `json:"uptime_sec"`
	SagasStarted        int64                   `json:"sagas_started"`
	SagasCompleted      int64                   `json:"sagas_completed"`
	SagasFailed         int64                   `json:"sagas_failed"`
	Compensations       int64                   `json:"compensations"`
	CompensationErrors  int64                   `json:"compensation_errors"`
	RateLimitWaits      int64                   `json:"rate_limit_waits"`
	RateLimitWaitMs     int64                   `json:"rate_limit_wait_ms"`
	Steps               map[string]StepSnapshot `json:"steps"`
	CompensationActions map[string]int64        `json:"compensation_actions"`
}

type stepStats struct {
	count        int64
	errors       int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

// Metrics aggregates saga activity.
type Metrics struct {
	mu                  sync.Mutex
	start               time.Time
	steps               map[string]*stepStats
	sagasStarted        int64
	sagasCompleted      int64
	sagasFailed         int64
	compensations       int64
	compensationErrors  int64
	compensationActions map[string]int64
	rateLimitWaits      int64
	rateLimitWait       time.Duration
}

// StepSpan measures one in-flight saga step.
type StepSpan struct {
	metrics *Metrics
	step    string
	start   time.Time
}

// NewMetrics constructs an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		start:               time.Now(),
		steps:               make(map[string]*stepStats),
		compensationActions: make(map[string]int64),
	}
}

// StartStep opens a latency span for a saga step.
func (m *Metrics) StartStep(step string) *StepSpan {
	if m == nil {
		return &StepSpan{}
	}
	m.mu.Lock()
	stats := m.ensureStep(step)
	stats.inFlight++
	m.mu.Unlock()
	return &StepSpan{
		metrics: m,
		step:    step,
		start:   time.Now(),
	}
}

// End closes the span, recording the step's latency and outcome.
func (s *StepSpan) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	dur := time.Since(s.start)
	s.metrics.finish(s.step, dur, err != nil)
}

// SagaStarted counts a new saga.
func (m *Metrics) SagaStarted() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.sagasStarted++
	m.mu.Unlock()
}

// SagaCompleted counts a saga reaching the completed terminal state.
func (m *Metrics) SagaCompleted() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.sagasCompleted++
	m.mu.Unlock()
}

// SagaFailed counts a saga reaching the failed terminal state.
func (m *Metrics) SagaFailed() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.sagasFailed++
	m.mu.Unlock()
}

// CompensationRun counts one compensation pass.
func (m *Metrics) CompensationRun() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.compensations++
	m.mu.Unlock()
}

// CompensationAction counts one attempted undo action.
func (m *Metrics) CompensationAction(action string, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.compensationActions[action]++
	if failed {
		m.compensationErrors++
	}
	m.mu.Unlock()
}

// AddRateLimitWait records time spent waiting on the ingress limiter.
func (m *Metrics) AddRateLimitWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.rateLimitWaits++
	m.rateLimitWait += d
	m.mu.Unlock()
}

// Snapshot returns the current view of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSec:           int64(time.Since(m.start).Seconds()),
		SagasStarted:        m.sagasStarted,
		SagasCompleted:      m.sagasCompleted,
		SagasFailed:         m.sagasFailed,
		Compensations:       m.compensations,
		CompensationErrors:  m.compensationErrors,
		RateLimitWaits:      m.rateLimitWaits,
		RateLimitWaitMs:     int64(m.rateLimitWait / time.Millisecond),
		Steps:               make(map[string]StepSnapshot),
		CompensationActions: make(map[string]int64),
	}

	for step, stats := range m.steps {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Steps[step] = StepSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
	}
	for action, count := range m.compensationActions {
		snap.CompensationActions[action] = count
	}

	return snap
}

func (m *Metrics) ensureStep(step string) *stepStats {
	stats, ok := m.steps[step]
	if !ok {
		stats = &stepStats{}
		m.steps[step] = stats
	}
	return stats
}

func (m *Metrics) finish(step string, dur time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	stats := m.ensureStep(step)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}
