package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalfleet/intelligence-engine/internal/models"
)

// MemoryStore is a mutex-guarded in-memory Store used by tests and for
// DSN-less development boots.
type MemoryStore struct {
	mu        sync.RWMutex
	summaries []models.AnalysisSummary
	actions   []models.HealingAction
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// InsertSummary appends a summary, stamping ID and CreatedAt when unset.
func (m *MemoryStore) InsertSummary(_ context.Context, summary *models.AnalysisSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stampSummary(summary)
	m.summaries = append(m.summaries, *summary)
	return nil
}

// ListSummaries returns up to limit summaries of one kind, newest first.
func (m *MemoryStore) ListSummaries(_ context.Context, kind models.SummaryKind, limit int) ([]models.AnalysisSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.AnalysisSummary, 0, limit)
	for i := len(m.summaries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.summaries[i].Kind == kind {
			out = append(out, m.summaries[i])
		}
	}
	return out, nil
}

// InsertAction appends a healing action, stamping ID and timestamps when
// unset.
func (m *MemoryStore) InsertAction(_ context.Context, action *models.HealingAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stampAction(action)
	m.actions = append(m.actions, *action)
	return nil
}

// UpdateAction replaces the stored copy of an existing action.
func (m *MemoryStore) UpdateAction(_ context.Context, action *models.HealingAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	action.UpdatedAt = time.Now().UTC()
	for i := range m.actions {
		if m.actions[i].ActionID == action.ActionID {
			m.actions[i] = *action
			return nil
		}
	}
	return ErrNotFound
}

// ListActions returns up to limit actions, newest first.
func (m *MemoryStore) ListActions(_ context.Context, limit int) ([]models.HealingAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.HealingAction, 0, limit)
	for i := len(m.actions) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.actions[i])
	}
	return out, nil
}

// CountActions returns the total number of persisted actions.
func (m *MemoryStore) CountActions(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.actions)), nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() {}

func stampSummary(summary *models.AnalysisSummary) {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
}

func stampAction(action *models.HealingAction) {
	if action.ActionID == "" {
		action.ActionID = uuid.NewString()
	}
	now := time.Now().UTC()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = now
	}
	if action.UpdatedAt.IsZero() {
		action.UpdatedAt = now
	}
}
