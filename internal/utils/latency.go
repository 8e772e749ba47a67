package utils

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded ring of recent duration samples and reports
// nearest-rank percentiles over them. The scoring pool records one sample
// per model invocation and logs the p95 when it drains.
type LatencyTracker struct {
	mu     sync.Mutex
	ring   []time.Duration
	next   int
	filled bool
}

// NewLatencyTracker creates a tracker holding the last size samples.
func NewLatencyTracker(size int) *LatencyTracker {
	if size <= 0 {
		size = 512
	}
	return &LatencyTracker{ring: make([]time.Duration, size)}
}

// Observe records a sample, evicting the oldest once the ring is full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	l.ring[l.next] = d
	l.next++
	if l.next == len(l.ring) {
		l.next = 0
		l.filled = true
	}
	l.mu.Unlock()
}

// Count returns the number of samples currently held.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.filled {
		return len(l.ring)
	}
	return l.next
}

// Percentile returns the nearest-rank percentile (0-100) over the held
// samples, or zero when none have been observed.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.Lock()
	var sorted []time.Duration
	if l.filled {
		sorted = append(sorted, l.ring...)
	} else {
		sorted = append(sorted, l.ring[:l.next]...)
	}
	l.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := int(math.Ceil(p / 100.0 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
