package status

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/signalfleet/intelligence-engine/internal/cache"
	"github.com/signalfleet/intelligence-engine/internal/models"
	"github.com/signalfleet/intelligence-engine/internal/store"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return data, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func (c *mapCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *mapCache) Close() error { return nil }

func seedLogSummary(t *testing.T, st store.Store, total, errors, warnings int64) {
	t.Helper()
	summary := &models.AnalysisSummary{
		Kind: models.KindLog,
		Counts: map[string]int64{
			models.CountTotal:    total,
			models.CountErrors:   errors,
			models.CountWarnings: warnings,
		},
		Services: []string{"checkout"},
	}
	if err := st.InsertSummary(context.Background(), summary); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
}

func seedTraceSummary(t *testing.T, st store.Store, total, slow int64, avgMS float64) {
	t.Helper()
	summary := &models.AnalysisSummary{
		Kind: models.KindTrace,
		Counts: map[string]int64{
			models.CountTotal: total,
			models.CountSlow:  slow,
		},
		Distributions: map[string]float64{
			models.DistAvgMS: avgMS,
			models.DistP95MS: avgMS * 2,
		},
	}
	if err := st.InsertSummary(context.Background(), summary); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
}

func TestEmptyStoreReportsNoData(t *testing.T) {
	r := NewReporter(nil, store.NewMemoryStore(), nil, time.Minute)
	ctx := context.Background()

	logs, err := r.Logs(ctx)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if logs.HasData || logs.Health != models.HealthNoData {
		t.Fatalf("empty log view = %+v", logs)
	}

	overview, err := r.Overview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.Health != models.HealthNoData {
		t.Fatalf("overview health = %s, want no_data", overview.Health)
	}
	if overview.Healing.HasData {
		t.Fatalf("expected empty healing view")
	}
}

func TestLogHealthBands(t *testing.T) {
	cases := []struct {
		name   string
		errors int64
		want   models.HealthLevel
	}{
		{"healthy", 2, models.HealthHealthy},
		{"warning", 8, models.HealthWarning},
		{"critical", 30, models.HealthCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			seedLogSummary(t, st, 100, tc.errors, 1)
			r := NewReporter(nil, st, nil, time.Minute)

			view, err := r.Logs(context.Background())
			if err != nil {
				t.Fatalf("logs: %v", err)
			}
			if view.Health != tc.want {
				t.Fatalf("health = %s, want %s (rate %.2f)", view.Health, tc.want, view.ErrorRate)
			}
		})
	}
}

func TestLogErrorRatePoolsAcrossSummaries(t *testing.T) {
	st := store.NewMemoryStore()
	seedLogSummary(t, st, 50, 0, 0)
	seedLogSummary(t, st, 50, 10, 0)
	r := NewReporter(nil, st, nil, time.Minute)

	view, err := r.Logs(context.Background())
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if view.ErrorRate != 0.1 {
		t.Fatalf("pooled error rate = %v, want 0.1", view.ErrorRate)
	}
	if view.AnalysesCount != 2 || view.TotalLogs != 100 {
		t.Fatalf("view = %+v", view)
	}
}

func TestTraceHealthBands(t *testing.T) {
	cases := []struct {
		name  string
		avgMS float64
		want  models.HealthLevel
	}{
		{"healthy", 200, models.HealthHealthy},
		{"warning", 750, models.HealthWarning},
		{"critical", 1500, models.HealthCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			seedTraceSummary(t, st, 10, 1, tc.avgMS)
			r := NewReporter(nil, st, nil, time.Minute)

			view, err := r.Traces(context.Background())
			if err != nil {
				t.Fatalf("traces: %v", err)
			}
			if view.Health != tc.want {
				t.Fatalf("health = %s, want %s", view.Health, tc.want)
			}
			if view.AvgDurationMS != tc.avgMS {
				t.Fatalf("avg = %v, want %v", view.AvgDurationMS, tc.avgMS)
			}
		})
	}
}

func TestOverviewTakesWorstDomain(t *testing.T) {
	st := store.NewMemoryStore()
	seedLogSummary(t, st, 100, 1, 0)
	seedTraceSummary(t, st, 10, 5, 2000)
	r := NewReporter(nil, st, nil, time.Minute)

	overview, err := r.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.Health != models.HealthCritical {
		t.Fatalf("overview health = %s, want critical", overview.Health)
	}
	if overview.GeneratedAt.IsZero() {
		t.Fatalf("expected generated_at to be stamped")
	}
}

func TestHealingViewCounts(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	ok, bad := true, false
	actions := []*models.HealingAction{
		{IssueType: "high_cpu", Service: "a", Status: models.ActionCompleted, Success: &ok},
		{IssueType: "high_cpu", Service: "b", Status: models.ActionFailed, Success: &bad},
		{IssueType: "error_spike", Service: "c", Status: models.ActionInProgress},
	}
	for _, action := range actions {
		if err := st.InsertAction(ctx, action); err != nil {
			t.Fatalf("insert action: %v", err)
		}
	}

	r := NewReporter(nil, st, nil, time.Minute)
	view, err := r.Healing(ctx)
	if err != nil {
		t.Fatalf("healing: %v", err)
	}
	if !view.HasData || view.TotalActions != 3 {
		t.Fatalf("view = %+v", view)
	}
	if view.CompletedCount != 1 || view.FailedCount != 1 || view.PendingCount != 1 {
		t.Fatalf("status counts = %d/%d/%d", view.CompletedCount, view.FailedCount, view.PendingCount)
	}
	if view.ByIssueType["high_cpu"] != 2 {
		t.Fatalf("by_issue_type = %v", view.ByIssueType)
	}
	if len(view.RecentActions) != 3 {
		t.Fatalf("recent actions = %d, want 3", len(view.RecentActions))
	}
}

func TestViewsAreCachedUntilInvalidated(t *testing.T) {
	st := store.NewMemoryStore()
	seedLogSummary(t, st, 10, 0, 0)
	cacheFake := newMapCache()
	r := NewReporter(nil, st, cacheFake, time.Minute)
	ctx := context.Background()

	first, err := r.Logs(ctx)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if cacheFake.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cacheFake.sets)
	}

	// New data is invisible until the cache entry is dropped.
	seedLogSummary(t, st, 10, 5, 0)
	second, err := r.Logs(ctx)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if second.AnalysesCount != first.AnalysesCount {
		t.Fatalf("expected cached view, got %+v", second)
	}

	r.Invalidate(ctx)
	third, err := r.Logs(ctx)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if third.AnalysesCount != 2 {
		t.Fatalf("expected fresh view after invalidation, got %+v", third)
	}
}
