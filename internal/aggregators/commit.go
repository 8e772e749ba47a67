package aggregators

import (
	"sort"
	"strings"

	"github.com/signalfleet/intelligence-engine/internal/models"
)

// CommitAggregator turns a commit batch into an AnalysisSummary. It is a
// pure function of its input: identical batches yield identical summaries.
type CommitAggregator struct {
	riskyPatterns []string
}

// NewCommitAggregator constructs a commit aggregator. Patterns are matched
// case-insensitively as substrings of changed file paths; an empty list
// falls back to the built-in defaults.
func NewCommitAggregator(riskyPatterns []string) *CommitAggregator {
	if len(riskyPatterns) == 0 {
		riskyPatterns = []string{"auth", "migration", "dependency", "security", "crypto", "payment"}
	}
	lowered := make([]string, len(riskyPatterns))
	for i, p := range riskyPatterns {
		lowered[i] = strings.ToLower(p)
	}
	return &CommitAggregator{riskyPatterns: lowered}
}

// Aggregate computes changed-file counts, churn, risky pattern tags and the
// complexity delta for one commit batch. It never fails: malformed file
// records contribute zeroes and are still counted.
func (a *CommitAggregator) Aggregate(batch models.CommitBatch) models.AnalysisSummary {
	summary := models.AnalysisSummary{
		Kind:          models.KindCommit,
		Counts:        map[string]int64{},
		Rates:         map[string]float64{},
		Distributions: map[string]float64{},
	}

	if len(batch.Files) == 0 {
		summary.Counts[models.CountChangedFiles] = 0
		summary.Counts[models.CountLinesAdded] = 0
		summary.Counts[models.CountLinesDeleted] = 0
		summary.Distributions[models.DistComplexityDelta] = 0
		return summary
	}

	var added, deleted int64
	tags := make(map[string]struct{})
	for _, file := range batch.Files {
		if file.LinesAdded > 0 {
			added += file.LinesAdded
		}
		if file.LinesDeleted > 0 {
			deleted += file.LinesDeleted
		}
		path := strings.ToLower(file.Path)
		for _, pattern := range a.riskyPatterns {
			if strings.Contains(path, pattern) {
				tags[pattern] = struct{}{}
			}
		}
	}

	summary.Counts[models.CountChangedFiles] = int64(len(batch.Files))
	summary.Counts[models.CountLinesAdded] = added
	summary.Counts[models.CountLinesDeleted] = deleted
	summary.Distributions[models.DistComplexityDelta] = complexityDelta(added, deleted)

	if len(tags) > 0 {
		summary.RiskyPatterns = make([]string, 0, len(tags))
		for tag := range tags {
			summary.RiskyPatterns = append(summary.RiskyPatterns, tag)
		}
		sort.Strings(summary.RiskyPatterns)
	}

	repo := batch.Repository
	if repo == "" {
		repo = "unknown"
	}
	summary.Repositories = []string{repo}

	return summary
}

// complexityDelta is the signed churn balance in [-1, 1]: positive when a
// commit mostly adds code, negative when it mostly removes.
func complexityDelta(added, deleted int64) float64 {
	total := added + deleted
	if total == 0 {
		return 0
	}
	return float64(added-deleted) / float64(total)
}
