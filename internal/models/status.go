package models

import "time"

// HealthLevel classifies a domain against its fixed threshold bands.
type HealthLevel string

const (
	HealthHealthy  HealthLevel = "healthy"
	HealthWarning  HealthLevel = "warning"
	HealthCritical HealthLevel = "critical"
	// HealthNoData marks views computed from an empty store so callers can
	// tell "no data yet" apart from "healthy".
	HealthNoData HealthLevel = "no_data"
)

// CommitStatus is the read projection over recent commit summaries.
type CommitStatus struct {
	HasData         bool        `json:"has_data"`
	Health          HealthLevel `json:"health"`
	AnalysesCount   int         `json:"analyses_count"`
	ChangedFiles    int64       `json:"changed_files"`
	LinesAdded      int64       `json:"lines_added"`
	LinesDeleted    int64       `json:"lines_deleted"`
	RiskyPatterns   []string    `json:"risky_patterns,omitempty"`
	Repositories    []string    `json:"repositories,omitempty"`
	LatestCreatedAt time.Time   `json:"latest_created_at,omitempty"`
}

// LogStatus is the read projection over recent log summaries.
type LogStatus struct {
	HasData         bool        `json:"has_data"`
	Health          HealthLevel `json:"health"`
	AnalysesCount   int         `json:"analyses_count"`
	TotalLogs       int64       `json:"total_logs"`
	ErrorCount      int64       `json:"error_count"`
	WarningCount    int64       `json:"warning_count"`
	ErrorRate       float64     `json:"error_rate"`
	DominantLevel   string      `json:"dominant_level,omitempty"`
	Services        []string    `json:"services,omitempty"`
	LatestCreatedAt time.Time   `json:"latest_created_at,omitempty"`
}

// TraceStatus is the read projection over recent trace summaries.
type TraceStatus struct {
	HasData         bool        `json:"has_data"`
	Health          HealthLevel `json:"health"`
	AnalysesCount   int         `json:"analyses_count"`
	TotalSpans      int64       `json:"total_spans"`
	SlowSpans       int64       `json:"slow_spans"`
	AvgDurationMS   float64     `json:"avg_duration_ms"`
	P95DurationMS   float64     `json:"p95_duration_ms"`
	Services        []string    `json:"services,omitempty"`
	LatestCreatedAt time.Time   `json:"latest_created_at,omitempty"`
}

// HealingStatus rolls up recent healing actions.
type HealingStatus struct {
	HasData        bool            `json:"has_data"`
	TotalActions   int64           `json:"total_actions"`
	CompletedCount int             `json:"completed_count"`
	FailedCount    int             `json:"failed_count"`
	PendingCount   int             `json:"pending_count"`
	ByIssueType    map[string]int  `json:"by_issue_type,omitempty"`
	RecentActions  []HealingAction `json:"recent_actions,omitempty"`
}

// PlatformOverview composes the per-domain views into one health verdict.
type PlatformOverview struct {
	Health      HealthLevel   `json:"health"`
	Commits     CommitStatus  `json:"commits"`
	Logs        LogStatus     `json:"logs"`
	Traces      TraceStatus   `json:"traces"`
	Healing     HealingStatus `json:"healing"`
	GeneratedAt time.Time     `json:"generated_at"`
}
