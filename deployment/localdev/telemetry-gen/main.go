// telemetry-gen posts synthetic commit, log and trace batches to a locally
// running intelligence-engine so the full analyze -> score -> heal path can
// be exercised without real telemetry sources.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

type fileDelta struct {
	Path         string `json:"path"`
	LinesAdded   int64  `json:"lines_added"`
	LinesDeleted int64  `json:"lines_deleted"`
}

type commitBatch struct {
	Repository string      `json:"repository"`
	CommitHash string      `json:"commit_hash"`
	Files      []fileDelta `json:"files"`
}

type logRecord struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Service   string `json:"service"`
}

type spanRecord struct {
	TraceID    string  `json:"trace_id"`
	SpanID     string  `json:"span_id"`
	Service    string  `json:"service"`
	Operation  string  `json:"operation"`
	DurationMS float64 `json:"duration_ms"`
	Timestamp  string  `json:"timestamp"`
}

var services = []string{"checkout", "search", "payments", "inventory"}

var paths = []string{
	"internal/auth/token.go",
	"internal/api/handlers.go",
	"db/migration/0042.sql",
	"pkg/client/retry.go",
	"cmd/server/main.go",
}

func main() {
	var (
		base     string
		interval time.Duration
		errorish bool
	)
	flag.StringVar(&base, "addr", "http://localhost:8000", "Engine base URL")
	flag.DurationVar(&interval, "interval", 5*time.Second, "Delay between batches")
	flag.BoolVar(&errorish, "degraded", false, "Generate error-heavy and slow batches")
	flag.Parse()

	log.Printf("posting synthetic telemetry to %s every %s (degraded=%v)", base, interval, errorish)

	for i := 0; ; i++ {
		switch i % 3 {
		case 0:
			post(base+"/api/v1/analyze/logs", map[string]any{"entries": makeLogs(errorish)})
		case 1:
			post(base+"/api/v1/analyze/traces", map[string]any{"spans": makeSpans(errorish)})
		case 2:
			post(base+"/api/v1/analyze/commit", makeCommit())
		}
		time.Sleep(interval)
	}
}

func makeLogs(degraded bool) []logRecord {
	errorShare := 0.05
	if degraded {
		errorShare = 0.5
	}
	now := time.Now().UTC().Format(time.RFC3339)
	service := services[rand.Intn(len(services))]

	entries := make([]logRecord, 0, 20)
	for i := 0; i < 20; i++ {
		level := "info"
		message := "request handled"
		if rand.Float64() < errorShare {
			level = "error"
			message = "upstream call failed"
		} else if rand.Float64() < 0.1 {
			level = "warning"
			message = "retrying request"
		}
		entries = append(entries, logRecord{
			Timestamp: now,
			Level:     level,
			Message:   message,
			Service:   service,
		})
	}
	return entries
}

func makeSpans(degraded bool) []spanRecord {
	now := time.Now().UTC().Format(time.RFC3339)
	service := services[rand.Intn(len(services))]

	spans := make([]spanRecord, 0, 10)
	for i := 0; i < 10; i++ {
		duration := 50 + rand.Float64()*400
		if degraded && rand.Float64() < 0.6 {
			duration = 1200 + rand.Float64()*3000
		}
		spans = append(spans, spanRecord{
			TraceID:    fmt.Sprintf("trace-%d", rand.Intn(1000)),
			SpanID:     fmt.Sprintf("span-%d", i),
			Service:    service,
			Operation:  "handle",
			DurationMS: duration,
			Timestamp:  now,
		})
	}
	return spans
}

func makeCommit() commitBatch {
	count := 1 + rand.Intn(4)
	files := make([]fileDelta, 0, count)
	for i := 0; i < count; i++ {
		files = append(files, fileDelta{
			Path:         paths[rand.Intn(len(paths))],
			LinesAdded:   int64(rand.Intn(200)),
			LinesDeleted: int64(rand.Intn(80)),
		})
	}
	return commitBatch{
		Repository: "signalfleet/core",
		CommitHash: fmt.Sprintf("%08x", rand.Uint32()),
		Files:      files,
	}
}

func post(url string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("encode payload: %v", err)
		return
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("POST %s: %v", url, err)
		return
	}
	defer resp.Body.Close()
	log.Printf("POST %s -> %s", url, resp.Status)
}
