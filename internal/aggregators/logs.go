package aggregators

import (
	"sort"
	"strings"

	"github.com/signalfleet/intelligence-engine/internal/models"
)

// LogAggregator turns a batch of log records into an AnalysisSummary.
type LogAggregator struct{}

// NewLogAggregator constructs a log aggregator.
func NewLogAggregator() *LogAggregator {
	return &LogAggregator{}
}

// Aggregate computes per-level counts, the error rate, the dominant level and
// the distinct service set. Records with a missing level count as info;
// records with a missing service count under "unknown".
func (a *LogAggregator) Aggregate(entries []models.LogRecord) models.AnalysisSummary {
	summary := models.AnalysisSummary{
		Kind:          models.KindLog,
		Counts:        map[string]int64{},
		Rates:         map[string]float64{},
		Distributions: map[string]float64{},
	}

	total := int64(len(entries))
	summary.Counts[models.CountTotal] = total
	if total == 0 {
		summary.Counts[models.CountErrors] = 0
		summary.Counts[models.CountWarnings] = 0
		summary.Counts[models.CountInfo] = 0
		summary.Rates[models.RateError] = 0
		return summary
	}

	var errorCount, warningCount, infoCount int64
	services := make(map[string]struct{})
	for _, entry := range entries {
		switch normaliseLevel(entry.Level) {
		case "error":
			errorCount++
		case "warning":
			warningCount++
		default:
			infoCount++
		}

		service := entry.Service
		if service == "" {
			service = "unknown"
		}
		services[service] = struct{}{}
	}

	summary.Counts[models.CountErrors] = errorCount
	summary.Counts[models.CountWarnings] = warningCount
	summary.Counts[models.CountInfo] = infoCount
	summary.Rates[models.RateError] = float64(errorCount) / float64(total)
	summary.DominantLevel = dominantLevel(errorCount, warningCount, infoCount)
	summary.Services = sortedSet(services)

	return summary
}

// normaliseLevel folds the level variants seen in the wild (ERROR, warn, ...)
// into error/warning/info. Unknown and empty levels default to info.
func normaliseLevel(level string) string {
	switch strings.ToLower(level) {
	case "error", "err", "fatal", "critical":
		return "error"
	case "warning", "warn":
		return "warning"
	default:
		return "info"
	}
}

// dominantLevel reports the most severe level present in the batch, in
// fixed priority order error > warning > info. A handful of errors in a
// mostly-info batch still dominates it.
func dominantLevel(errors, warnings, info int64) string {
	switch {
	case errors > 0:
		return "error"
	case warnings > 0:
		return "warning"
	default:
		return "info"
	}
}

func sortedSet(set map[string]struct{}) []string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
