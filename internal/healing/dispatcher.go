package healing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/signalfleet/intelligence-engine/internal/config"
	"github.com/signalfleet/intelligence-engine/internal/metrics"
	"github.com/signalfleet/intelligence-engine/internal/models"
	"github.com/signalfleet/intelligence-engine/internal/store"
)

// Executor applies remediation steps against real infrastructure. The
// default executor only acknowledges the request; production deployments
// inject one that talks to the orchestration layer.
type Executor interface {
	Apply(ctx context.Context, issueType, service string, steps []string) error
}

// NoopExecutor accepts every request without side effects.
type NoopExecutor struct{}

// Apply is a no-op.
func (NoopExecutor) Apply(context.Context, string, string, []string) error { return nil }

// Listener observes terminal healing actions (used by the websocket feed).
type Listener func(action models.HealingAction)

// Dispatcher maps issue types to strategies and tracks each attempt as a
// lifecycle-managed HealingAction: pending -> in_progress -> completed|failed.
// Terminal states are final; a retry is always a new action.
type Dispatcher struct {
	logger     *slog.Logger
	cfg        config.HealingConfig
	store      store.Store
	executor   Executor
	strategies map[string]Strategy
	listener   Listener
}

// NewDispatcher constructs a dispatcher. A nil strategies map gets the
// default registry; a nil executor gets the no-op executor.
func NewDispatcher(logger *slog.Logger, cfg config.HealingConfig, st store.Store, executor Executor, strategies map[string]Strategy) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = NoopExecutor{}
	}
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	return &Dispatcher{
		logger:     logger,
		cfg:        cfg,
		store:      st,
		executor:   executor,
		strategies: strategies,
	}
}

// SetListener registers an observer for terminal actions.
func (d *Dispatcher) SetListener(listener Listener) {
	d.listener = listener
}

// Strategies returns the registered issue types, for status reporting.
func (d *Dispatcher) Strategies() []string {
	names := make([]string, 0, len(d.strategies))
	for name := range d.strategies {
		names = append(names, name)
	}
	return names
}

// Heal attempts remediation for one issue. The returned result always
// carries a structured outcome; a strategy failure becomes a failed action,
// never an error. The error return is reserved for persistence failures so
// the caller knows the audit trail is incomplete.
func (d *Dispatcher) Heal(ctx context.Context, issueType string, target map[string]string) (models.HealResult, error) {
	if !d.cfg.Enabled {
		metrics.ObserveHealing(issueType, string(models.OutcomeDisabled))
		return models.HealResult{
			Outcome: models.OutcomeDisabled,
			Message: "self-healing is disabled",
		}, nil
	}

	strategy, ok := d.strategies[issueType]
	if !ok {
		metrics.ObserveHealing(issueType, string(models.OutcomeUnknownIssue))
		return models.HealResult{
			Outcome: models.OutcomeUnknownIssue,
			Message: fmt.Sprintf("no healing strategy for issue type: %s", issueType),
		}, nil
	}

	if d.cfg.DryRun {
		metrics.ObserveHealing(issueType, string(models.OutcomeDryRun))
		return models.HealResult{
			Outcome: models.OutcomeDryRun,
			Message: d.describeDryRun(issueType, strategy, target),
		}, nil
	}

	service := target["service"]
	if service == "" {
		service = "unknown"
	}

	action := &models.HealingAction{
		IssueType: issueType,
		Service:   service,
		Status:    models.ActionPending,
		Context:   target,
	}
	if err := d.store.InsertAction(ctx, action); err != nil {
		return models.HealResult{}, fmt.Errorf("persist healing action: %w", err)
	}

	action.Status = models.ActionInProgress
	if err := d.store.UpdateAction(ctx, action); err != nil {
		return models.HealResult{Outcome: models.OutcomeExecuted, Action: action},
			fmt.Errorf("mark action in progress: %w", err)
	}

	steps, execErr := d.execute(ctx, strategy, issueType, service, target)

	success := execErr == nil
	action.Success = &success
	if execErr != nil {
		action.Status = models.ActionFailed
		action.ErrorMessage = execErr.Error()
		d.logger.Warn("healing strategy failed",
			slog.String("issue_type", issueType),
			slog.String("service", service),
			slog.Any("error", execErr))
	} else {
		action.Status = models.ActionCompleted
		action.ActionTaken = strings.Join(steps, "; ")
	}

	if err := d.store.UpdateAction(ctx, action); err != nil {
		return models.HealResult{Outcome: models.OutcomeExecuted, Action: action},
			fmt.Errorf("finalise healing action: %w", err)
	}

	metrics.ObserveHealing(issueType, string(action.Status))
	d.notify(*action)

	message := fmt.Sprintf("healed %s on %s", issueType, service)
	if execErr != nil {
		message = fmt.Sprintf("healing %s on %s failed", issueType, service)
	}
	return models.HealResult{
		Outcome: models.OutcomeExecuted,
		Message: message,
		Action:  action,
	}, nil
}

// execute runs the strategy and executor, converting panics into errors so
// no failure escapes the dispatcher boundary.
func (d *Dispatcher) execute(ctx context.Context, strategy Strategy, issueType, service string, target map[string]string) (steps []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()

	steps, err = strategy(target)
	if err != nil {
		return nil, err
	}
	if err = d.executor.Apply(ctx, issueType, service, steps); err != nil {
		return nil, fmt.Errorf("apply remediation: %w", err)
	}
	return steps, nil
}

func (d *Dispatcher) describeDryRun(issueType string, strategy Strategy, target map[string]string) string {
	steps, err := strategy(target)
	if err != nil || len(steps) == 0 {
		return fmt.Sprintf("would heal %s (dry run)", issueType)
	}
	return fmt.Sprintf("would heal %s (dry run): %s", issueType, strings.Join(steps, "; "))
}

func (d *Dispatcher) notify(action models.HealingAction) {
	if d.listener != nil {
		d.listener(action)
	}
}
