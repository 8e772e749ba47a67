package models

import "time"

// SummaryKind enumerates telemetry domains.
type SummaryKind string

const (
	KindCommit SummaryKind = "commit"
	KindLog    SummaryKind = "log"
	KindTrace  SummaryKind = "trace"
)

// Well-known count keys shared by aggregators and status views.
const (
	CountTotal        = "total"
	CountErrors       = "errors"
	CountWarnings     = "warnings"
	CountInfo         = "info"
	CountChangedFiles = "changed_files"
	CountLinesAdded   = "lines_added"
	CountLinesDeleted = "lines_deleted"
	CountSlow         = "slow"
)

// Well-known rate and distribution keys.
const (
	RateError = "error_rate"

	DistAvgMS           = "avg_duration_ms"
	DistMinMS           = "min_duration_ms"
	DistMaxMS           = "max_duration_ms"
	DistP95MS           = "p95_duration_ms"
	DistComplexityDelta = "complexity_delta"
)

// AnalysisSummary is the immutable output of one aggregator run. It is
// created once per ingestion call and never mutated; CreatedAt is stamped by
// the store, not the aggregator.
type AnalysisSummary struct {
	ID            string             `json:"id"`
	Kind          SummaryKind        `json:"kind"`
	Counts        map[string]int64   `json:"counts"`
	Rates         map[string]float64 `json:"rates"`
	Distributions map[string]float64 `json:"distributions"`
	Services      []string           `json:"services,omitempty"`
	Repositories  []string           `json:"repositories,omitempty"`
	RiskyPatterns []string           `json:"risky_patterns,omitempty"`
	DominantLevel string             `json:"dominant_level,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Count returns the named count or zero when absent.
func (s AnalysisSummary) Count(key string) int64 {
	if s.Counts == nil {
		return 0
	}
	return s.Counts[key]
}

// Rate returns the named ratio or zero when absent.
func (s AnalysisSummary) Rate(key string) float64 {
	if s.Rates == nil {
		return 0
	}
	return s.Rates[key]
}

// Distribution returns the named percentile value or zero when absent.
func (s AnalysisSummary) Distribution(key string) float64 {
	if s.Distributions == nil {
		return 0
	}
	return s.Distributions[key]
}
