package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/signalfleet/intelligence-engine/internal/aggregators"
	"github.com/signalfleet/intelligence-engine/internal/config"
	"github.com/signalfleet/intelligence-engine/internal/detect"
	"github.com/signalfleet/intelligence-engine/internal/healing"
	"github.com/signalfleet/intelligence-engine/internal/metrics"
	"github.com/signalfleet/intelligence-engine/internal/models"
	"github.com/signalfleet/intelligence-engine/internal/store"
	"github.com/signalfleet/intelligence-engine/internal/utils"
)

// Healer is the slice of the dispatcher the pipeline needs to route
// detection verdicts into remediation.
type Healer interface {
	Heal(ctx context.Context, issueType string, target map[string]string) (models.HealResult, error)
}

// Pipeline is the ingestion path: aggregate a telemetry batch, persist the
// summary, then hand it to the background scoring pool. Persistence happens
// before scoring is enqueued; a summary that fails to persist is never
// scored. Scoring and healing failures stay on the background path and are
// never surfaced to the ingestion caller.
type Pipeline struct {
	logger *slog.Logger
	store  store.Store
	pool   *ScoringPool

	commits *aggregators.CommitAggregator
	logs    *aggregators.LogAggregator
	traces  *aggregators.TraceAggregator

	scorers map[models.SummaryKind][]detect.Model
	healer  Healer
	latency *utils.LatencyTracker

	invalidate func(context.Context)
}

// NewPipeline wires the aggregators, scoring pool and verdict routing. A nil
// healer disables remediation routing but not scoring.
func NewPipeline(logger *slog.Logger, cfg *config.Config, st store.Store, scorers []detect.Model, healer Healer) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	byKind := make(map[models.SummaryKind][]detect.Model, 3)
	for _, m := range scorers {
		byKind[m.Kind()] = append(byKind[m.Kind()], m)
	}

	return &Pipeline{
		logger:  logger,
		store:   st,
		pool:    NewScoringPool(logger, cfg.Models.ScoringWorkers, cfg.Models.ScoringQueueSize),
		commits: aggregators.NewCommitAggregator(cfg.Analysis.RiskyPatterns),
		logs:    aggregators.NewLogAggregator(),
		traces:  aggregators.NewTraceAggregator(cfg.Analysis.SlowTraceThresholdMS),
		scorers: byKind,
		healer:  healer,
		latency: utils.NewLatencyTracker(1024),
	}
}

// SetInvalidate registers a hook run after each successful persist, used to
// drop cached status views.
func (p *Pipeline) SetInvalidate(fn func(context.Context)) {
	p.invalidate = fn
}

// AnalyzeCommit aggregates and persists one commit batch.
func (p *Pipeline) AnalyzeCommit(ctx context.Context, batch models.CommitBatch) (models.AnalysisSummary, error) {
	return p.ingest(ctx, p.commits.Aggregate(batch))
}

// AnalyzeLogs aggregates and persists one log batch.
func (p *Pipeline) AnalyzeLogs(ctx context.Context, entries []models.LogRecord) (models.AnalysisSummary, error) {
	return p.ingest(ctx, p.logs.Aggregate(entries))
}

// AnalyzeTraces aggregates and persists one span batch.
func (p *Pipeline) AnalyzeTraces(ctx context.Context, spans []models.SpanRecord) (models.AnalysisSummary, error) {
	return p.ingest(ctx, p.traces.Aggregate(spans))
}

// Close drains the scoring pool.
func (p *Pipeline) Close(ctx context.Context) error {
	err := p.pool.Shutdown(ctx)
	if p.latency.Count() > 0 {
		p.logger.Info("scoring pool drained",
			slog.Int("scored", p.latency.Count()),
			slog.Duration("p95", p.latency.Percentile(95)))
	}
	return err
}

func (p *Pipeline) ingest(ctx context.Context, summary models.AnalysisSummary) (models.AnalysisSummary, error) {
	err := p.store.InsertSummary(ctx, &summary)
	metrics.ObserveAnalysis(string(summary.Kind), err)
	if err != nil {
		return models.AnalysisSummary{}, fmt.Errorf("persist %s summary: %w", summary.Kind, err)
	}

	if p.invalidate != nil {
		p.invalidate(ctx)
	}

	if !p.pool.Submit(func(taskCtx context.Context) { p.score(taskCtx, summary) }) {
		p.logger.Warn("scoring queue full, summary not scored",
			slog.String("summary_id", summary.ID),
			slog.String("kind", string(summary.Kind)))
	}
	return summary, nil
}

// score runs every model registered for the summary's kind and routes
// positive verdicts to the healer.
func (p *Pipeline) score(ctx context.Context, summary models.AnalysisSummary) {
	for _, model := range p.scorers[summary.Kind] {
		start := time.Now()
		result := model.Score(summary)
		elapsed := time.Since(start)
		p.latency.Observe(elapsed)
		metrics.ObserveScoring(elapsed)
		metrics.ObservePrediction(result.ModelName, result.Verdict)

		if !result.Verdict {
			continue
		}
		p.logger.Info("detection threshold breached",
			slog.String("model", result.ModelName),
			slog.String("summary_id", summary.ID),
			slog.Float64("score", result.Score),
			slog.Float64("threshold", result.Threshold))

		p.route(ctx, summary, result)
	}
}

func (p *Pipeline) route(ctx context.Context, summary models.AnalysisSummary, result models.DetectionResult) {
	issueType, ok := issueForModel(result.ModelName)
	if !ok || p.healer == nil {
		// Breaking-change verdicts are advisory; there is no safe automated
		// remediation for a risky commit.
		return
	}

	target := map[string]string{
		"service":    firstOrUnknown(summary.Services),
		"summary_id": summary.ID,
		"model":      result.ModelName,
		"score":      fmt.Sprintf("%.3f", result.Score),
	}
	if _, err := p.healer.Heal(ctx, issueType, target); err != nil {
		p.logger.Error("verdict-triggered healing failed",
			slog.String("issue_type", issueType),
			slog.String("summary_id", summary.ID),
			slog.Any("error", err))
	}
}

// issueForModel maps detection models to healing issue types. Models without
// a mapping are logged and counted only.
func issueForModel(name string) (string, bool) {
	switch name {
	case detect.ModelAnomaly:
		return healing.IssueErrorSpike, true
	case detect.ModelPerformance:
		return healing.IssueSlowResponse, true
	default:
		return "", false
	}
}

func firstOrUnknown(services []string) string {
	if len(services) == 0 {
		return "unknown"
	}
	return services[0]
}
