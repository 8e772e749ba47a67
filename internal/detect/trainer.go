package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/signalfleet/intelligence-engine/internal/models"
)

// TrainingState is the observable lifecycle of one training run.
type TrainingState string

const (
	TrainingIdle      TrainingState = "idle"
	TrainingRunning   TrainingState = "running"
	TrainingCompleted TrainingState = "completed"
	TrainingFailed    TrainingState = "failed"
	TrainingCancelled TrainingState = "cancelled"
)

// TrainingStatus reports the latest training run for one model.
type TrainingStatus struct {
	Model      string        `json:"model"`
	State      TrainingState `json:"state"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Error      string        `json:"error,omitempty"`
	Version    string        `json:"version,omitempty"`
}

// HistorySource supplies the summaries a training run calibrates against.
type HistorySource interface {
	ListSummaries(ctx context.Context, kind models.SummaryKind, limit int) ([]models.AnalysisSummary, error)
}

// ErrTrainingInProgress rejects a second concurrent run for the same model.
var ErrTrainingInProgress = fmt.Errorf("training already in progress")

// Trainer runs model training as fire-and-forget background jobs with a
// terminal status observable per model. At most one run per model at a time.
type Trainer struct {
	logger    *slog.Logger
	source    HistorySource
	batchSize int

	mu       sync.Mutex
	statuses map[string]TrainingStatus
	cancels  map[string]context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
}

// NewTrainer constructs a trainer reading history from source.
func NewTrainer(logger *slog.Logger, source HistorySource, batchSize int) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Trainer{
		logger:    logger,
		source:    source,
		batchSize: batchSize,
		statuses:  make(map[string]TrainingStatus),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Start launches a background training run for the model and returns
// immediately. The caller observes completion through Status.
func (t *Trainer) Start(model Model) (TrainingStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return TrainingStatus{}, fmt.Errorf("trainer shut down")
	}
	if current, ok := t.statuses[model.Name()]; ok && current.State == TrainingRunning {
		return current, ErrTrainingInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	status := TrainingStatus{
		Model:     model.Name(),
		State:     TrainingRunning,
		StartedAt: time.Now().UTC(),
	}
	t.statuses[model.Name()] = status
	t.cancels[model.Name()] = cancel

	t.wg.Add(1)
	go t.run(ctx, model)

	return status, nil
}

// Status returns the latest training status for a model name. The second
// return value is false when the model has never been trained.
func (t *Trainer) Status(modelName string) (TrainingStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status, ok := t.statuses[modelName]
	return status, ok
}

// Shutdown cancels in-flight runs and waits for them to exit. A run
// interrupted here reports cancelled and keeps the prior calibration.
func (t *Trainer) Shutdown() {
	t.mu.Lock()
	t.closed = true
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Trainer) run(ctx context.Context, model Model) {
	defer t.wg.Done()

	history, err := t.fetchHistory(ctx, model.Kind())
	if err == nil {
		err = model.Train(ctx, history)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	status := t.statuses[model.Name()]
	status.FinishedAt = time.Now().UTC()
	switch {
	case err == nil:
		status.State = TrainingCompleted
		status.Version = model.Calibration().Version
		t.logger.Info("model trained",
			slog.String("model", model.Name()),
			slog.String("version", status.Version),
			slog.Int("samples", len(history)))
	case ctx.Err() != nil:
		status.State = TrainingCancelled
		status.Error = ctx.Err().Error()
		t.logger.Warn("training cancelled", slog.String("model", model.Name()))
	default:
		status.State = TrainingFailed
		status.Error = err.Error()
		t.logger.Error("training failed", slog.String("model", model.Name()), slog.Any("error", err))
	}
	t.statuses[model.Name()] = status
	delete(t.cancels, model.Name())
}

func (t *Trainer) fetchHistory(ctx context.Context, kind models.SummaryKind) ([]models.AnalysisSummary, error) {
	if t.source == nil {
		return nil, nil
	}
	history, err := t.source.ListSummaries(ctx, kind, t.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch training history: %w", err)
	}
	return history, nil
}
