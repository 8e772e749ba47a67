package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	for _, d := range []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
	} {
		tracker.Observe(d)
	}

	if tracker.Count() != 5 {
		t.Fatalf("count = %d, want 5", tracker.Count())
	}
	if p95 := tracker.Percentile(95); p95 != 50*time.Millisecond {
		t.Fatalf("p95 = %v, want 50ms", p95)
	}
	if p50 := tracker.Percentile(50); p50 != 30*time.Millisecond {
		t.Fatalf("p50 = %v, want 30ms", p50)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(4)
	if tracker.Count() != 0 {
		t.Fatalf("count = %d, want 0", tracker.Count())
	}
	if p := tracker.Percentile(95); p != 0 {
		t.Fatalf("percentile on empty tracker = %v, want 0", p)
	}
}

func TestLatencyTrackerEvictsOldest(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}

	if tracker.Count() != 3 {
		t.Fatalf("count = %d, want 3", tracker.Count())
	}
	// Only the last three samples (8, 9, 10ms) survive.
	if max := tracker.Percentile(100); max != 10*time.Millisecond {
		t.Fatalf("max = %v, want 10ms", max)
	}
	if min := tracker.Percentile(0); min != 8*time.Millisecond {
		t.Fatalf("min = %v, want 8ms", min)
	}
}
