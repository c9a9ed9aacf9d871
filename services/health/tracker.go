package health

import (
	"sync"
	"time"
)

const (
	// healthyThreshold is the minimum score for a provider to be reported
	// healthy
	healthyThreshold = 0.5

	// streakPenalty is the score deduction per consecutive recent failure
	streakPenalty = 0.2
)

// Snapshot is a point-in-time view of a provider's health
type Snapshot struct {
	TotalRequests       int64         `json:"total_requests"`
	SuccessfulRequests  int64         `json:"successful_requests"`
	FailedRequests      int64         `json:"failed_requests"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	AvgResponseTime     time.Duration `json:"avg_response_time"`
	HealthScore         float64       `json:"health_score"`
	IsHealthy           bool          `json:"is_healthy"`
}

// Tracker accumulates rolling success/failure/latency statistics for one
// provider and derives a health score from them.
//
// The score is success_rate * max(0, 1 - 0.2*consecutive_failures), where
// success_rate is 1.0 before any call has been recorded. It is monotonic in
// the success rate; the streak term penalises providers that are failing
// right now even when their lifetime rate still looks good.
//
// The score never gates admission on its own. The orchestrator uses it only
// to break ties among equal-priority providers and for observability.
type Tracker struct {
	mu sync.Mutex

	total      int64
	successful int64
	failed     int64
	streak     int

	totalLatency time.Duration
}

// NewTracker creates an empty health tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordSuccess records a successful call and its latency
func (t *Tracker) RecordSuccess(latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	t.successful++
	t.streak = 0
	t.totalLatency += latency
}

// RecordFailure records a failed call and its latency
func (t *Tracker) RecordFailure(latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	t.failed++
	t.streak++
	t.totalLatency += latency
}

// Score returns the current health score in [0, 1]
func (t *Tracker) Score() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scoreLocked()
}

// Healthy reports whether the score is at or above the healthy threshold
func (t *Tracker) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scoreLocked() >= healthyThreshold
}

// Status returns a snapshot of all tracked statistics
func (t *Tracker) Status() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	var avg time.Duration
	if t.total > 0 {
		avg = t.totalLatency / time.Duration(t.total)
	}

	score := t.scoreLocked()
	return Snapshot{
		TotalRequests:       t.total,
		SuccessfulRequests:  t.successful,
		FailedRequests:      t.failed,
		ConsecutiveFailures: t.streak,
		AvgResponseTime:     avg,
		HealthScore:         score,
		IsHealthy:           score >= healthyThreshold,
	}
}

func (t *Tracker) scoreLocked() float64 {
	successRate := 1.0
	if t.total > 0 {
		successRate = float64(t.successful) / float64(t.total)
	}

	penalty := 1.0 - streakPenalty*float64(t.streak)
	if penalty < 0 {
		penalty = 0
	}

	return successRate * penalty
}
