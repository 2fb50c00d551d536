// Package health samples live success/error/latency signals per migrated
// operation and judges rollout health against fixed thresholds.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Report is the outcome of one health check.
type Report struct {
	OperationID string    `json:"operationId"`
	Status      Status    `json:"status"`
	SampleCount int       `json:"sampleCount"`
	ErrorRate   float64   `json:"errorRate"`
	P50         float64   `json:"p50"`
	P95         float64   `json:"p95"`
	P99         float64   `json:"p99"`
	Issues      []Issue   `json:"issues,omitempty"`
	CheckedAt   time.Time `json:"checkedAt"`
}

const (
	latencyWindowSize  = 1000
	minSampleSize      = 100
	maxErrorRate       = 0.01
	maxP99LatencyMs    = 2000
	recentErrorHorizon = 60 * time.Second
)

// opMetrics is one operation's sliding sample window. Counters are atomic
// so hot-path recording never serializes on the tracker lock; the latency
// ring is guarded by its own mutex.
type opMetrics struct {
	successes atomic.Int64
	failures  atomic.Int64

	mu        sync.Mutex
	latencies []float64
	next      int
	lastError time.Time
	lastMsg   string
}

func (m *opMetrics) appendLatency(ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) < latencyWindowSize {
		m.latencies = append(m.latencies, ms)
		return
	}
	m.latencies[m.next] = ms
	m.next = (m.next + 1) % latencyWindowSize
}

// Tracker records samples for many operations concurrently.
type Tracker struct {
	mu  sync.RWMutex
	ops map[string]*opMetrics
	log abstractlogger.Logger
}

func NewTracker(logger abstractlogger.Logger) *Tracker {
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	return &Tracker{ops: make(map[string]*opMetrics), log: logger}
}

func (t *Tracker) metrics(operationID string) *opMetrics {
	t.mu.RLock()
	m, ok := t.ops[operationID]
	t.mu.RUnlock()
	if ok {
		return m
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok = t.ops[operationID]; ok {
		return m
	}
	m = &opMetrics{}
	t.ops[operationID] = m
	return m
}

// RecordSuccess appends one successful sample.
func (t *Tracker) RecordSuccess(operationID string, latencyMs float64) {
	m := t.metrics(operationID)
	m.successes.Inc()
	m.appendLatency(latencyMs)
}

// RecordError appends one failed sample. A non-positive latency means the
// caller had no timing for the failure.
func (t *Tracker) RecordError(operationID string, message string, latencyMs float64) {
	m := t.metrics(operationID)
	m.failures.Inc()
	m.mu.Lock()
	m.lastError = time.Now()
	m.lastMsg = message
	m.mu.Unlock()
	if latencyMs > 0 {
		m.appendLatency(latencyMs)
	}
}

// PerformHealthCheck judges one operation. Below the minimum sample size
// the status is healthy with a low-severity insufficient-data issue.
func (t *Tracker) PerformHealthCheck(operationID string) Report {
	m := t.metrics(operationID)
	succ := m.successes.Load()
	fail := m.failures.Load()
	total := succ + fail

	report := Report{
		OperationID: operationID,
		SampleCount: int(total),
		CheckedAt:   time.Now(),
	}

	m.mu.Lock()
	window := append([]float64(nil), m.latencies...)
	lastError := m.lastError
	lastMsg := m.lastMsg
	m.mu.Unlock()

	if total > 0 {
		report.ErrorRate = float64(fail) / float64(total)
	}
	if len(window) > 0 {
		sort.Float64s(window)
		report.P50 = percentile(window, 50)
		report.P95 = percentile(window, 95)
		report.P99 = percentile(window, 99)
	}

	if total < minSampleSize {
		report.Status = StatusHealthy
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityLow,
			Message:  "insufficient data for health judgment",
		})
		return report
	}

	if report.ErrorRate > maxErrorRate {
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityCritical,
			Message:  "error rate above 1%",
		})
	}
	if report.P99 > maxP99LatencyMs {
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityHigh,
			Message:  "p99 latency above 2000ms",
		})
	}
	if !lastError.IsZero() && time.Since(lastError) < recentErrorHorizon {
		msg := "error observed within the last 60s"
		if lastMsg != "" {
			msg += ": " + lastMsg
		}
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityMedium,
			Message:  msg,
		})
	}

	report.Status = aggregate(report.Issues)
	return report
}

func aggregate(issues []Issue) Status {
	status := StatusHealthy
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			return StatusUnhealthy
		case SeverityHigh:
			status = StatusDegraded
		}
	}
	return status
}

// percentile is nearest-rank over an ascending window.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100 // ceil(p/100 * n)
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
