package store

import (
	"context"
	"errors"

	"github.com/signalfleet/intelligence-engine/internal/models"
)

// ErrNotFound signals that no row matched.
var ErrNotFound = errors.New("not found")

// Store is the analysis store: an append-only history of aggregator outputs
// and healing actions. Summaries are immutable once inserted; actions only
// move forward through status updates and are never deleted.
//
// Implementations stamp ID and CreatedAt on insert when the caller left them
// unset, and scope every write to a single transaction (unit of work).
type Store interface {
	InsertSummary(ctx context.Context, summary *models.AnalysisSummary) error
	// ListSummaries returns up to limit summaries of one kind, newest first.
	ListSummaries(ctx context.Context, kind models.SummaryKind, limit int) ([]models.AnalysisSummary, error)

	InsertAction(ctx context.Context, action *models.HealingAction) error
	// UpdateAction persists a status transition for an existing action.
	UpdateAction(ctx context.Context, action *models.HealingAction) error
	// ListActions returns up to limit actions, newest first.
	ListActions(ctx context.Context, limit int) ([]models.HealingAction, error)
	CountActions(ctx context.Context) (int64, error)

	Close()
}
