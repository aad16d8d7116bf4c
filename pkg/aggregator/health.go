package aggregator

import (
	"sync"
	"time"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
)

// HealthTracker counts consecutive failures per source and shortens the
// effective fetch deadline for sources that keep failing. This bounds the
// time budget wasted on consistently slow or broken feeds without changing
// the aggregation contract: the source still gets fetched and still shows up
// in the outcome summary.
type HealthTracker struct {
	mu        sync.Mutex
	failures  map[string]int
	threshold int
	floor     time.Duration
}

// NewHealthTracker creates a tracker; zero values get sane defaults
func NewHealthTracker(threshold int, floor time.Duration) *HealthTracker {
	if threshold <= 0 {
		threshold = 3
	}
	if floor <= 0 {
		floor = time.Second
	}
	return &HealthTracker{
		failures:  make(map[string]int),
		threshold: threshold,
		floor:     floor,
	}
}

// Deadline returns the effective deadline for a source: the base deadline,
// halved once the source crossed the consecutive-failure threshold
func (h *HealthTracker) Deadline(sourceURL string, base time.Duration) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.failures[sourceURL] < h.threshold {
		return base
	}
	half := base / 2
	if half < h.floor {
		half = h.floor
	}
	return half
}

// Record updates the consecutive-failure count from a fetch outcome. A
// success resets the count; disabled sources are not tracked.
func (h *HealthTracker) Record(sourceURL string, status domain.FetchStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch status {
	case domain.StatusSuccess:
		delete(h.failures, sourceURL)
	case domain.StatusDisabled:
		// not fetched, nothing to record
	default:
		h.failures[sourceURL]++
	}
}
