package detect

import (
	"context"
	"sync"
	"time"

	"github.com/signalfleet/intelligence-engine/internal/models"
)

// Model is the pluggable detection contract: a scorer plus a trainable
// calibration seam. Implementations must be safe for concurrent Score calls;
// Train swaps calibration atomically and leaves prior state untouched on
// failure or cancellation.
type Model interface {
	Name() string
	Threshold() float64
	// Kind is the summary domain this model consumes.
	Kind() models.SummaryKind
	Score(summary models.AnalysisSummary) models.DetectionResult
	Train(ctx context.Context, history []models.AnalysisSummary) error
	Calibration() Calibration
}

// Calibration is the slowly-changing model state swapped in by training.
type Calibration struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
	// Baseline is a model-specific reference value derived from history
	// (e.g. mean error rate); zero until first training.
	Baseline float64 `json:"baseline"`
}

// baseModel carries the shared name/threshold/calibration plumbing.
type baseModel struct {
	name      string
	threshold float64

	mu    sync.RWMutex
	calib Calibration
}

func newBaseModel(name string, threshold float64) baseModel {
	return baseModel{
		name:      name,
		threshold: threshold,
		calib:     Calibration{Version: "0.1.0"},
	}
}

func (m *baseModel) Name() string { return m.name }

func (m *baseModel) Threshold() float64 { return m.threshold }

func (m *baseModel) Calibration() Calibration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calib
}

func (m *baseModel) swapCalibration(c Calibration) {
	m.mu.Lock()
	m.calib = c
	m.mu.Unlock()
}

func (m *baseModel) result(score float64, subjectID string) models.DetectionResult {
	score = clamp01(score)
	return models.DetectionResult{
		ModelName:  m.name,
		Score:      score,
		Threshold:  m.threshold,
		Verdict:    score >= m.threshold,
		SubjectID:  subjectID,
		ProducedAt: time.Now().UTC(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
