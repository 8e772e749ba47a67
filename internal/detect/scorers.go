package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/signalfleet/intelligence-engine/internal/models"
)

// Model names reported in DetectionResult and training status.
const (
	ModelBreakingChange = "breaking_change_detector"
	ModelAnomaly        = "anomaly_detector"
	ModelPerformance    = "performance_predictor"
)

// BreakingChangeModel scores commit summaries for breaking-change risk from
// risky-pattern density, churn and the complexity delta.
type BreakingChangeModel struct {
	baseModel
}

// NewBreakingChangeModel constructs the commit-risk model.
func NewBreakingChangeModel(threshold float64) *BreakingChangeModel {
	return &BreakingChangeModel{baseModel: newBaseModel(ModelBreakingChange, threshold)}
}

func (m *BreakingChangeModel) Kind() models.SummaryKind { return models.KindCommit }

// Score blends risky-pattern density (half weight), churn per changed file
// and the absolute complexity delta into [0,1].
func (m *BreakingChangeModel) Score(summary models.AnalysisSummary) models.DetectionResult {
	risky := clamp01(float64(len(summary.RiskyPatterns)) / 3.0)

	files := summary.Count(models.CountChangedFiles)
	if files < 1 {
		files = 1
	}
	churn := float64(summary.Count(models.CountLinesAdded) + summary.Count(models.CountLinesDeleted))
	churnScore := clamp01(churn / (50.0 * float64(files)))

	complexity := summary.Distribution(models.DistComplexityDelta)
	if complexity < 0 {
		complexity = -complexity
	}

	return m.result(0.5*risky+0.3*churnScore+0.2*clamp01(complexity), summary.ID)
}

// Train derives the historical mean churn score as the new baseline.
func (m *BreakingChangeModel) Train(ctx context.Context, history []models.AnalysisSummary) error {
	baseline, err := trainBaseline(ctx, history, func(s models.AnalysisSummary) float64 {
		return float64(s.Count(models.CountLinesAdded) + s.Count(models.CountLinesDeleted))
	})
	if err != nil {
		return err
	}
	m.swapCalibration(nextCalibration(m.Calibration(), baseline))
	return nil
}

// AnomalyModel scores log summaries for anomalous error behaviour.
type AnomalyModel struct {
	baseModel
}

// NewAnomalyModel constructs the log-anomaly model.
func NewAnomalyModel(threshold float64) *AnomalyModel {
	return &AnomalyModel{baseModel: newBaseModel(ModelAnomaly, threshold)}
}

func (m *AnomalyModel) Kind() models.SummaryKind { return models.KindLog }

// Score doubles the error rate and escalates when errors dominate the batch,
// so a 30% error-rate batch with an error-dominant level lands at 0.8.
func (m *AnomalyModel) Score(summary models.AnalysisSummary) models.DetectionResult {
	score := 2 * summary.Rate(models.RateError)
	if summary.DominantLevel == "error" {
		score += 0.2
	}
	return m.result(score, summary.ID)
}

// Train derives the historical mean error rate as the new baseline.
func (m *AnomalyModel) Train(ctx context.Context, history []models.AnalysisSummary) error {
	baseline, err := trainBaseline(ctx, history, func(s models.AnalysisSummary) float64 {
		return s.Rate(models.RateError)
	})
	if err != nil {
		return err
	}
	m.swapCalibration(nextCalibration(m.Calibration(), baseline))
	return nil
}

// PerformanceModel scores trace summaries for degradation risk.
type PerformanceModel struct {
	baseModel
}

// NewPerformanceModel constructs the trace-degradation model.
func NewPerformanceModel(threshold float64) *PerformanceModel {
	return &PerformanceModel{baseModel: newBaseModel(ModelPerformance, threshold)}
}

func (m *PerformanceModel) Kind() models.SummaryKind { return models.KindTrace }

// Score blends the slow-span share with average latency relative to one
// second.
func (m *PerformanceModel) Score(summary models.AnalysisSummary) models.DetectionResult {
	total := summary.Count(models.CountTotal)
	slowShare := 0.0
	if total > 0 {
		slowShare = float64(summary.Count(models.CountSlow)) / float64(total)
	}
	latency := clamp01(summary.Distribution(models.DistAvgMS) / 1000.0)

	return m.result(0.6*slowShare+0.4*latency, summary.ID)
}

// Train derives the historical mean average-duration as the new baseline.
func (m *PerformanceModel) Train(ctx context.Context, history []models.AnalysisSummary) error {
	baseline, err := trainBaseline(ctx, history, func(s models.AnalysisSummary) float64 {
		return s.Distribution(models.DistAvgMS)
	})
	if err != nil {
		return err
	}
	m.swapCalibration(nextCalibration(m.Calibration(), baseline))
	return nil
}

// trainBaseline computes the mean of a feature over history, checking for
// cancellation between samples so an abandoned run never half-writes state.
func trainBaseline(ctx context.Context, history []models.AnalysisSummary, feature func(models.AnalysisSummary) float64) (float64, error) {
	sum := 0.0
	for _, s := range history {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		sum += feature(s)
	}
	if len(history) == 0 {
		return 0, nil
	}
	return sum / float64(len(history)), nil
}

func nextCalibration(prev Calibration, baseline float64) Calibration {
	now := time.Now().UTC()
	return Calibration{
		Version:   fmt.Sprintf("0.1.%d", now.Unix()),
		TrainedAt: now,
		Baseline:  baseline,
	}
}
