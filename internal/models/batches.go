package models

// FileDelta describes one changed file in a commit batch.
type FileDelta struct {
	Path         string `json:"path"`
	LinesAdded   int64  `json:"lines_added"`
	LinesDeleted int64  `json:"lines_deleted"`
}

// CommitBatch is the raw input for commit analysis.
type CommitBatch struct {
	Repository string      `json:"repository"`
	CommitHash string      `json:"commit_hash"`
	Files      []FileDelta `json:"files"`
}

// LogRecord is one raw log entry. Missing fields are substituted with
// defaults by the aggregator rather than rejected.
type LogRecord struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Service   string `json:"service"`
}

// SpanRecord is one raw trace span.
type SpanRecord struct {
	TraceID    string  `json:"trace_id"`
	SpanID     string  `json:"span_id"`
	Service    string  `json:"service"`
	Operation  string  `json:"operation"`
	DurationMS float64 `json:"duration_ms"`
	Timestamp  string  `json:"timestamp"`
}
