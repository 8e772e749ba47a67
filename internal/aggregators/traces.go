package aggregators

import (
	"math"
	"sort"

	"github.com/signalfleet/intelligence-engine/internal/models"
)

// TraceAggregator turns a batch of spans into an AnalysisSummary.
type TraceAggregator struct {
	slowThresholdMS float64
}

// NewTraceAggregator constructs a trace aggregator. Spans longer than
// slowThresholdMS count as slow; non-positive thresholds fall back to 1000ms.
func NewTraceAggregator(slowThresholdMS float64) *TraceAggregator {
	if slowThresholdMS <= 0 {
		slowThresholdMS = 1000
	}
	return &TraceAggregator{slowThresholdMS: slowThresholdMS}
}

// Aggregate computes span counts, duration distribution (avg/min/max/p95) and
// the distinct service set. Spans with a missing duration contribute 0ms.
func (a *TraceAggregator) Aggregate(spans []models.SpanRecord) models.AnalysisSummary {
	summary := models.AnalysisSummary{
		Kind:          models.KindTrace,
		Counts:        map[string]int64{},
		Rates:         map[string]float64{},
		Distributions: map[string]float64{},
	}

	total := int64(len(spans))
	summary.Counts[models.CountTotal] = total
	if total == 0 {
		summary.Counts[models.CountSlow] = 0
		summary.Distributions[models.DistAvgMS] = 0
		summary.Distributions[models.DistMinMS] = 0
		summary.Distributions[models.DistMaxMS] = 0
		summary.Distributions[models.DistP95MS] = 0
		return summary
	}

	durations := make([]float64, 0, len(spans))
	services := make(map[string]struct{})
	var slow int64
	sum := 0.0
	min := math.MaxFloat64
	max := 0.0

	for _, span := range spans {
		d := span.DurationMS
		if d < 0 {
			d = 0
		}
		durations = append(durations, d)
		sum += d
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
		if d > a.slowThresholdMS {
			slow++
		}

		service := span.Service
		if service == "" {
			service = "unknown"
		}
		services[service] = struct{}{}
	}

	summary.Counts[models.CountSlow] = slow
	summary.Distributions[models.DistAvgMS] = sum / float64(total)
	summary.Distributions[models.DistMinMS] = min
	summary.Distributions[models.DistMaxMS] = max
	summary.Distributions[models.DistP95MS] = nearestRankPercentile(durations, 0.95)
	summary.Services = sortedSet(services)

	return summary
}

// nearestRankPercentile sorts ascending and picks index ceil(p*n)-1, clamped
// to [0, n-1].
func nearestRankPercentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
