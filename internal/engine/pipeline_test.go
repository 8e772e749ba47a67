package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalfleet/intelligence-engine/internal/config"
	"github.com/signalfleet/intelligence-engine/internal/detect"
	"github.com/signalfleet/intelligence-engine/internal/healing"
	"github.com/signalfleet/intelligence-engine/internal/models"
	"github.com/signalfleet/intelligence-engine/internal/store"
)

type healCall struct {
	issueType string
	target    map[string]string
}

type recordingHealer struct {
	calls chan healCall
}

func newRecordingHealer() *recordingHealer {
	return &recordingHealer{calls: make(chan healCall, 8)}
}

func (h *recordingHealer) Heal(_ context.Context, issueType string, target map[string]string) (models.HealResult, error) {
	h.calls <- healCall{issueType: issueType, target: target}
	return models.HealResult{Outcome: models.OutcomeExecuted}, nil
}

type failingStore struct {
	store.Store
}

func (failingStore) InsertSummary(context.Context, *models.AnalysisSummary) error {
	return errors.New("db unavailable")
}

func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			SlowTraceThresholdMS: 1000,
			RiskyPatterns:        []string{"auth", "migration", "security"},
		},
		Models: config.ModelsConfig{
			BreakingChangeThreshold: 0.7,
			AnomalyThreshold:        0.8,
			PerformanceThreshold:    0.15,
			ScoringWorkers:          2,
			ScoringQueueSize:        16,
		},
	}
}

func defaultScorers(cfg *config.Config) []detect.Model {
	return []detect.Model{
		detect.NewBreakingChangeModel(cfg.Models.BreakingChangeThreshold),
		detect.NewAnomalyModel(cfg.Models.AnomalyThreshold),
		detect.NewPerformanceModel(cfg.Models.PerformanceThreshold),
	}
}

func waitForHeal(t *testing.T, healer *recordingHealer) healCall {
	t.Helper()
	select {
	case call := <-healer.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for healing call")
		return healCall{}
	}
}

func TestAnalyzeLogsPersistsBeforeReturning(t *testing.T) {
	cfg := testConfig()
	st := store.NewMemoryStore()
	p := NewPipeline(nil, cfg, st, defaultScorers(cfg), nil)
	defer p.Close(context.Background())

	summary, err := p.AnalyzeLogs(context.Background(), []models.LogRecord{
		{Level: "info", Message: "started", Service: "api"},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if summary.ID == "" {
		t.Fatalf("expected stamped summary id")
	}

	stored, err := st.ListSummaries(context.Background(), models.KindLog, 10)
	if err != nil || len(stored) != 1 {
		t.Fatalf("stored = %d (err %v), want 1", len(stored), err)
	}
	if stored[0].ID != summary.ID {
		t.Fatalf("stored id %s != returned id %s", stored[0].ID, summary.ID)
	}
}

func TestPersistFailureSkipsScoring(t *testing.T) {
	cfg := testConfig()
	healer := newRecordingHealer()
	p := NewPipeline(nil, cfg, failingStore{store.NewMemoryStore()}, defaultScorers(cfg), healer)

	_, err := p.AnalyzeLogs(context.Background(), []models.LogRecord{
		{Level: "error", Message: "boom"},
		{Level: "error", Message: "boom"},
	})
	if err == nil {
		t.Fatalf("expected persist error")
	}

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case call := <-healer.calls:
		t.Fatalf("unpersisted summary was scored and healed: %+v", call)
	default:
	}
}

func TestAnomalyVerdictRoutesToErrorSpike(t *testing.T) {
	cfg := testConfig()
	healer := newRecordingHealer()
	p := NewPipeline(nil, cfg, store.NewMemoryStore(), defaultScorers(cfg), healer)
	defer p.Close(context.Background())

	// Half the batch errors and errors dominate: score 1.0 over the 0.8 bar.
	entries := []models.LogRecord{
		{Level: "error", Message: "a", Service: "checkout"},
		{Level: "error", Message: "b", Service: "checkout"},
		{Level: "error", Message: "c", Service: "checkout"},
		{Level: "warning", Message: "d", Service: "checkout"},
		{Level: "info", Message: "e", Service: "checkout"},
		{Level: "info", Message: "f", Service: "checkout"},
	}
	summary, err := p.AnalyzeLogs(context.Background(), entries)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	call := waitForHeal(t, healer)
	if call.issueType != healing.IssueErrorSpike {
		t.Fatalf("issue type = %s, want %s", call.issueType, healing.IssueErrorSpike)
	}
	if call.target["service"] != "checkout" {
		t.Fatalf("target service = %q", call.target["service"])
	}
	if call.target["summary_id"] != summary.ID {
		t.Fatalf("target summary_id = %q, want %q", call.target["summary_id"], summary.ID)
	}
	if call.target["model"] != detect.ModelAnomaly {
		t.Fatalf("target model = %q", call.target["model"])
	}
}

func TestPerformanceVerdictRoutesToSlowResponse(t *testing.T) {
	cfg := testConfig()
	healer := newRecordingHealer()
	p := NewPipeline(nil, cfg, store.NewMemoryStore(), defaultScorers(cfg), healer)
	defer p.Close(context.Background())

	spans := []models.SpanRecord{
		{TraceID: "t1", SpanID: "s1", Service: "search", Operation: "query", DurationMS: 2500},
		{TraceID: "t1", SpanID: "s2", Service: "search", Operation: "rank", DurationMS: 1800},
	}
	if _, err := p.AnalyzeTraces(context.Background(), spans); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	call := waitForHeal(t, healer)
	if call.issueType != healing.IssueSlowResponse {
		t.Fatalf("issue type = %s, want %s", call.issueType, healing.IssueSlowResponse)
	}
}

func TestBreakingChangeVerdictIsNotHealed(t *testing.T) {
	cfg := testConfig()
	healer := newRecordingHealer()
	p := NewPipeline(nil, cfg, store.NewMemoryStore(), defaultScorers(cfg), healer)

	// Three risky patterns and heavy churn push the score past 0.7.
	batch := models.CommitBatch{
		Repository: "core",
		CommitHash: "abc123",
		Files: []models.FileDelta{
			{Path: "internal/auth/token.go", LinesAdded: 120, LinesDeleted: 40},
			{Path: "db/migration/0042.sql", LinesAdded: 200},
			{Path: "pkg/security/tls.go", LinesAdded: 90, LinesDeleted: 30},
		},
	}
	if _, err := p.AnalyzeCommit(context.Background(), batch); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case call := <-healer.calls:
		t.Fatalf("breaking-change verdict triggered healing: %+v", call)
	default:
	}
}

func TestHealthyBatchTriggersNoHealing(t *testing.T) {
	cfg := testConfig()
	healer := newRecordingHealer()
	p := NewPipeline(nil, cfg, store.NewMemoryStore(), defaultScorers(cfg), healer)

	if _, err := p.AnalyzeLogs(context.Background(), []models.LogRecord{
		{Level: "info", Message: "ok", Service: "api"},
		{Level: "info", Message: "ok", Service: "api"},
	}); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case call := <-healer.calls:
		t.Fatalf("healthy batch triggered healing: %+v", call)
	default:
	}
}

func TestInvalidateHookRunsAfterPersist(t *testing.T) {
	cfg := testConfig()
	p := NewPipeline(nil, cfg, store.NewMemoryStore(), nil, nil)
	defer p.Close(context.Background())

	var mu sync.Mutex
	invalidations := 0
	p.SetInvalidate(func(context.Context) {
		mu.Lock()
		invalidations++
		mu.Unlock()
	})

	if _, err := p.AnalyzeLogs(context.Background(), nil); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if invalidations != 1 {
		t.Fatalf("invalidations = %d, want 1", invalidations)
	}
}

func TestPoolShutdownDrainsQueuedTasks(t *testing.T) {
	pool := NewScoringPool(nil, 1, 8)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		ok := pool.Submit(func(context.Context) {
			mu.Lock()
			ran++
			mu.Unlock()
		})
		if !ok {
			t.Fatalf("submit %d rejected", i)
		}
	}

	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if ran != 5 {
		t.Fatalf("ran = %d, want 5", ran)
	}

	if pool.Submit(func(context.Context) {}) {
		t.Fatalf("submit accepted after shutdown")
	}
}

func TestPoolContainsPanics(t *testing.T) {
	pool := NewScoringPool(nil, 1, 4)
	if !pool.Submit(func(context.Context) { panic("task blew up") }) {
		t.Fatalf("submit rejected")
	}
	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown after panic: %v", err)
	}
}
