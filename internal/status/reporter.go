package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/signalfleet/intelligence-engine/internal/cache"
	"github.com/signalfleet/intelligence-engine/internal/models"
	"github.com/signalfleet/intelligence-engine/internal/store"
)

// Cache keys for the status views.
const (
	keyCommits  = "status:commits"
	keyLogs     = "status:logs"
	keyTraces   = "status:traces"
	keyHealing  = "status:healing"
	keyOverview = "status:overview"
)

// Health bands. Log health is the pooled error rate over the window; trace
// health is the average span duration of the newest summary.
const (
	logErrorRateWarning  = 0.05
	logErrorRateCritical = 0.10
	traceAvgMSWarning    = 500
	traceAvgMSCritical   = 1000
)

// defaultWindow bounds how many recent summaries and actions feed a view.
const defaultWindow = 20

// Reporter computes read-only status projections from the analysis store.
// Views are cached under status:* keys; a cache failure degrades to a direct
// store read, never to an error.
type Reporter struct {
	logger *slog.Logger
	store  store.Store
	cache  cache.Provider
	ttl    time.Duration
	window int
}

// NewReporter wires a reporter. A nil cache provider disables caching.
func NewReporter(logger *slog.Logger, st store.Store, provider cache.Provider, ttl time.Duration) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &Reporter{
		logger: logger,
		store:  st,
		cache:  provider,
		ttl:    ttl,
		window: defaultWindow,
	}
}

// Commits reports the commit-analysis view.
func (r *Reporter) Commits(ctx context.Context) (models.CommitStatus, error) {
	var view models.CommitStatus
	err := r.cached(ctx, keyCommits, &view, func() (any, error) {
		return r.buildCommits(ctx)
	})
	return view, err
}

// Logs reports the log-analysis view.
func (r *Reporter) Logs(ctx context.Context) (models.LogStatus, error) {
	var view models.LogStatus
	err := r.cached(ctx, keyLogs, &view, func() (any, error) {
		return r.buildLogs(ctx)
	})
	return view, err
}

// Traces reports the trace-analysis view.
func (r *Reporter) Traces(ctx context.Context) (models.TraceStatus, error) {
	var view models.TraceStatus
	err := r.cached(ctx, keyTraces, &view, func() (any, error) {
		return r.buildTraces(ctx)
	})
	return view, err
}

// Healing reports the healing-action view.
func (r *Reporter) Healing(ctx context.Context) (models.HealingStatus, error) {
	var view models.HealingStatus
	err := r.cached(ctx, keyHealing, &view, func() (any, error) {
		return r.buildHealing(ctx)
	})
	return view, err
}

// Overview composes the per-domain views into one platform verdict.
func (r *Reporter) Overview(ctx context.Context) (models.PlatformOverview, error) {
	var view models.PlatformOverview
	err := r.cached(ctx, keyOverview, &view, func() (any, error) {
		return r.buildOverview(ctx)
	})
	return view, err
}

// Invalidate drops the cached views so the next read reflects new data.
// Called after ingestion and after terminal healing actions.
func (r *Reporter) Invalidate(ctx context.Context) {
	for _, key := range []string{keyCommits, keyLogs, keyTraces, keyHealing, keyOverview} {
		if err := r.cache.Del(ctx, key); err != nil {
			r.logger.Debug("status cache invalidation failed",
				slog.String("key", key), slog.Any("error", err))
		}
	}
}

func (r *Reporter) cached(ctx context.Context, key string, dest any, build func() (any, error)) error {
	if data, err := r.cache.Get(ctx, key); err == nil {
		if err := json.Unmarshal(data, dest); err == nil {
			return nil
		}
		r.logger.Debug("stale status cache entry dropped", slog.String("key", key))
	}

	view, err := build()
	if err != nil {
		return err
	}

	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return err
	}
	if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
		r.logger.Debug("status cache write failed",
			slog.String("key", key), slog.Any("error", err))
	}
	return nil
}

func (r *Reporter) buildCommits(ctx context.Context) (models.CommitStatus, error) {
	summaries, err := r.store.ListSummaries(ctx, models.KindCommit, r.window)
	if err != nil {
		return models.CommitStatus{}, err
	}
	if len(summaries) == 0 {
		return models.CommitStatus{Health: models.HealthNoData}, nil
	}

	view := models.CommitStatus{
		HasData:         true,
		Health:          models.HealthHealthy,
		AnalysesCount:   len(summaries),
		LatestCreatedAt: summaries[0].CreatedAt,
	}
	patterns := map[string]struct{}{}
	repos := map[string]struct{}{}
	for _, s := range summaries {
		view.ChangedFiles += s.Count(models.CountChangedFiles)
		view.LinesAdded += s.Count(models.CountLinesAdded)
		view.LinesDeleted += s.Count(models.CountLinesDeleted)
		for _, p := range s.RiskyPatterns {
			patterns[p] = struct{}{}
		}
		for _, repo := range s.Repositories {
			repos[repo] = struct{}{}
		}
	}
	view.RiskyPatterns = sortedKeys(patterns)
	view.Repositories = sortedKeys(repos)
	if len(summaries[0].RiskyPatterns) > 0 {
		view.Health = models.HealthWarning
	}
	return view, nil
}

func (r *Reporter) buildLogs(ctx context.Context) (models.LogStatus, error) {
	summaries, err := r.store.ListSummaries(ctx, models.KindLog, r.window)
	if err != nil {
		return models.LogStatus{}, err
	}
	if len(summaries) == 0 {
		return models.LogStatus{Health: models.HealthNoData}, nil
	}

	view := models.LogStatus{
		HasData:         true,
		AnalysesCount:   len(summaries),
		DominantLevel:   summaries[0].DominantLevel,
		LatestCreatedAt: summaries[0].CreatedAt,
	}
	services := map[string]struct{}{}
	for _, s := range summaries {
		view.TotalLogs += s.Count(models.CountTotal)
		view.ErrorCount += s.Count(models.CountErrors)
		view.WarningCount += s.Count(models.CountWarnings)
		for _, svc := range s.Services {
			services[svc] = struct{}{}
		}
	}
	view.Services = sortedKeys(services)
	if view.TotalLogs > 0 {
		view.ErrorRate = float64(view.ErrorCount) / float64(view.TotalLogs)
	}

	switch {
	case view.ErrorRate > logErrorRateCritical:
		view.Health = models.HealthCritical
	case view.ErrorRate > logErrorRateWarning:
		view.Health = models.HealthWarning
	default:
		view.Health = models.HealthHealthy
	}
	return view, nil
}

func (r *Reporter) buildTraces(ctx context.Context) (models.TraceStatus, error) {
	summaries, err := r.store.ListSummaries(ctx, models.KindTrace, r.window)
	if err != nil {
		return models.TraceStatus{}, err
	}
	if len(summaries) == 0 {
		return models.TraceStatus{Health: models.HealthNoData}, nil
	}

	latest := summaries[0]
	view := models.TraceStatus{
		HasData:         true,
		AnalysesCount:   len(summaries),
		AvgDurationMS:   latest.Distribution(models.DistAvgMS),
		P95DurationMS:   latest.Distribution(models.DistP95MS),
		LatestCreatedAt: latest.CreatedAt,
	}
	services := map[string]struct{}{}
	for _, s := range summaries {
		view.TotalSpans += s.Count(models.CountTotal)
		view.SlowSpans += s.Count(models.CountSlow)
		for _, svc := range s.Services {
			services[svc] = struct{}{}
		}
	}
	view.Services = sortedKeys(services)

	switch {
	case view.AvgDurationMS > traceAvgMSCritical:
		view.Health = models.HealthCritical
	case view.AvgDurationMS > traceAvgMSWarning:
		view.Health = models.HealthWarning
	default:
		view.Health = models.HealthHealthy
	}
	return view, nil
}

func (r *Reporter) buildHealing(ctx context.Context) (models.HealingStatus, error) {
	total, err := r.store.CountActions(ctx)
	if err != nil {
		return models.HealingStatus{}, err
	}
	recent, err := r.store.ListActions(ctx, r.window)
	if err != nil {
		return models.HealingStatus{}, err
	}

	view := models.HealingStatus{
		HasData:       total > 0,
		TotalActions:  total,
		RecentActions: recent,
	}
	if len(recent) > 0 {
		view.ByIssueType = map[string]int{}
	}
	for _, action := range recent {
		view.ByIssueType[action.IssueType]++
		switch action.Status {
		case models.ActionCompleted:
			view.CompletedCount++
		case models.ActionFailed:
			view.FailedCount++
		default:
			view.PendingCount++
		}
	}
	return view, nil
}

func (r *Reporter) buildOverview(ctx context.Context) (models.PlatformOverview, error) {
	commits, err := r.buildCommits(ctx)
	if err != nil {
		return models.PlatformOverview{}, err
	}
	logs, err := r.buildLogs(ctx)
	if err != nil {
		return models.PlatformOverview{}, err
	}
	traces, err := r.buildTraces(ctx)
	if err != nil {
		return models.PlatformOverview{}, err
	}
	healing, err := r.buildHealing(ctx)
	if err != nil {
		return models.PlatformOverview{}, err
	}

	return models.PlatformOverview{
		Health:      worstOf(commits.Health, logs.Health, traces.Health),
		Commits:     commits,
		Logs:        logs,
		Traces:      traces,
		Healing:     healing,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// worstOf ranks critical > warning > healthy. Domains without data do not
// drag the platform down; all-empty reports no_data.
func worstOf(levels ...models.HealthLevel) models.HealthLevel {
	worst := models.HealthNoData
	for _, level := range levels {
		switch level {
		case models.HealthCritical:
			return models.HealthCritical
		case models.HealthWarning:
			worst = models.HealthWarning
		case models.HealthHealthy:
			if worst == models.HealthNoData {
				worst = models.HealthHealthy
			}
		}
	}
	return worst
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
