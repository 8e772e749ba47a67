package aggregators

import (
	"testing"

	"github.com/signalfleet/intelligence-engine/internal/models"
)

func spansFromDurations(durations ...float64) []models.SpanRecord {
	spans := make([]models.SpanRecord, 0, len(durations))
	for _, d := range durations {
		spans = append(spans, models.SpanRecord{Service: "svc", Operation: "op", DurationMS: d})
	}
	return spans
}

func TestTraceAggregatorScenario(t *testing.T) {
	agg := NewTraceAggregator(1000)

	summary := agg.Aggregate(spansFromDurations(100, 200, 300, 400, 5000))

	if got := summary.Count(models.CountSlow); got != 1 {
		t.Fatalf("slow count = %d, want 1", got)
	}
	if got := summary.Distribution(models.DistMaxMS); got != 5000 {
		t.Fatalf("max = %f, want 5000", got)
	}
	if got := summary.Distribution(models.DistMinMS); got != 100 {
		t.Fatalf("min = %f, want 100", got)
	}
	if got := summary.Distribution(models.DistAvgMS); got != 1200.0 {
		t.Fatalf("avg = %f, want 1200.0", got)
	}
	// nearest rank over 5 samples: ceil(0.95*5)-1 = 4 -> 5000
	if got := summary.Distribution(models.DistP95MS); got != 5000 {
		t.Fatalf("p95 = %f, want 5000", got)
	}
}

func TestTraceAggregatorOrderingConsistency(t *testing.T) {
	agg := NewTraceAggregator(0)

	batches := [][]models.SpanRecord{
		spansFromDurations(10),
		spansFromDurations(5, 10, 15, 20),
		spansFromDurations(900, 100, 400, 250, 3000, 120, 80),
	}

	for _, spans := range batches {
		summary := agg.Aggregate(spans)
		min := summary.Distribution(models.DistMinMS)
		avg := summary.Distribution(models.DistAvgMS)
		max := summary.Distribution(models.DistMaxMS)
		p95 := summary.Distribution(models.DistP95MS)
		median := nearestRankPercentile(durationsOf(spans), 0.5)

		if min > avg || avg > max {
			t.Fatalf("expected min <= avg <= max, got %f / %f / %f", min, avg, max)
		}
		if p95 < median {
			t.Fatalf("expected p95 >= median, got %f < %f", p95, median)
		}
	}
}

func TestTraceAggregatorEmptyBatch(t *testing.T) {
	summary := NewTraceAggregator(1000).Aggregate(nil)

	if got := summary.Count(models.CountTotal); got != 0 {
		t.Fatalf("total = %d, want 0", got)
	}
	for _, key := range []string{models.DistAvgMS, models.DistMinMS, models.DistMaxMS, models.DistP95MS} {
		if got := summary.Distribution(key); got != 0 {
			t.Fatalf("%s = %f, want 0 for empty batch", key, got)
		}
	}
	if len(summary.Services) != 0 {
		t.Fatalf("services = %v, want empty", summary.Services)
	}
}

func TestTraceAggregatorThresholdBoundary(t *testing.T) {
	agg := NewTraceAggregator(1000)

	// Exactly at the threshold is not slow; only spans exceeding it count.
	summary := agg.Aggregate(spansFromDurations(1000, 1000.5))
	if got := summary.Count(models.CountSlow); got != 1 {
		t.Fatalf("slow count = %d, want 1", got)
	}
}

func TestNearestRankPercentileClamps(t *testing.T) {
	if got := nearestRankPercentile(nil, 0.95); got != 0 {
		t.Fatalf("empty percentile = %f, want 0", got)
	}
	if got := nearestRankPercentile([]float64{42}, 0.95); got != 42 {
		t.Fatalf("single-sample p95 = %f, want 42", got)
	}
}

func durationsOf(spans []models.SpanRecord) []float64 {
	out := make([]float64, len(spans))
	for i, s := range spans {
		out[i] = s.DurationMS
	}
	return out
}
