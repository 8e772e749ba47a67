package aggregators

import (
	"reflect"
	"testing"

	"github.com/signalfleet/intelligence-engine/internal/models"
)

func TestLogAggregatorCounts(t *testing.T) {
	agg := NewLogAggregator()

	entries := make([]models.LogRecord, 0, 10)
	for i := 0; i < 3; i++ {
		entries = append(entries, models.LogRecord{Level: "ERROR", Service: "checkout"})
	}
	for i := 0; i < 2; i++ {
		entries = append(entries, models.LogRecord{Level: "warn", Service: "payments"})
	}
	for i := 0; i < 5; i++ {
		entries = append(entries, models.LogRecord{Level: "info", Service: "checkout"})
	}

	summary := agg.Aggregate(entries)
	if got := summary.Count(models.CountErrors); got != 3 {
		t.Fatalf("error count = %d, want 3", got)
	}
	if got := summary.Count(models.CountWarnings); got != 2 {
		t.Fatalf("warning count = %d, want 2", got)
	}
	if got := summary.Count(models.CountInfo); got != 5 {
		t.Fatalf("info count = %d, want 5", got)
	}
	if got := summary.Rate(models.RateError); got != 0.3 {
		t.Fatalf("error rate = %f, want 0.3", got)
	}
	if summary.DominantLevel != "error" {
		t.Fatalf("dominant level = %q, want error", summary.DominantLevel)
	}
	if want := []string{"checkout", "payments"}; !reflect.DeepEqual(summary.Services, want) {
		t.Fatalf("services = %v, want %v", summary.Services, want)
	}
}

func TestLogAggregatorDominantTieBreak(t *testing.T) {
	agg := NewLogAggregator()

	entries := []models.LogRecord{
		{Level: "error", Service: "a"},
		{Level: "warning", Service: "a"},
		{Level: "info", Service: "a"},
	}

	summary := agg.Aggregate(entries)
	if summary.DominantLevel != "error" {
		t.Fatalf("tie-break dominant level = %q, want error", summary.DominantLevel)
	}

	noErrors := agg.Aggregate([]models.LogRecord{
		{Level: "warn", Service: "a"},
		{Level: "info", Service: "a"},
	})
	if noErrors.DominantLevel != "warning" {
		t.Fatalf("dominant level without errors = %q, want warning", noErrors.DominantLevel)
	}
}

func TestLogAggregatorEmptyBatch(t *testing.T) {
	summary := NewLogAggregator().Aggregate(nil)

	if got := summary.Count(models.CountTotal); got != 0 {
		t.Fatalf("total = %d, want 0", got)
	}
	if got := summary.Rate(models.RateError); got != 0 {
		t.Fatalf("error rate = %f, want 0", got)
	}
	if len(summary.Services) != 0 {
		t.Fatalf("services = %v, want empty", summary.Services)
	}
}

func TestLogAggregatorDefaultsForMalformedRecords(t *testing.T) {
	summary := NewLogAggregator().Aggregate([]models.LogRecord{{}, {Level: "garbage"}})

	if got := summary.Count(models.CountInfo); got != 2 {
		t.Fatalf("info count = %d, want 2 (malformed records default to info)", got)
	}
	if want := []string{"unknown"}; !reflect.DeepEqual(summary.Services, want) {
		t.Fatalf("services = %v, want %v", summary.Services, want)
	}
}

func TestLogAggregatorErrorRateBounds(t *testing.T) {
	agg := NewLogAggregator()
	batches := [][]models.LogRecord{
		nil,
		{{Level: "error"}},
		{{Level: "info"}, {Level: "error"}, {Level: "warn"}},
	}
	for _, batch := range batches {
		rate := agg.Aggregate(batch).Rate(models.RateError)
		if rate < 0 || rate > 1 {
			t.Fatalf("error rate %f out of [0,1] for batch %v", rate, batch)
		}
	}
}

func TestLogAggregatorDeterministic(t *testing.T) {
	agg := NewLogAggregator()
	entries := []models.LogRecord{
		{Level: "error", Service: "b", Message: "boom"},
		{Level: "info", Service: "a"},
	}

	first := agg.Aggregate(entries)
	second := agg.Aggregate(entries)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregation not deterministic: %+v vs %+v", first, second)
	}
}
