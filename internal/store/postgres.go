package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signalfleet/intelligence-engine/internal/metrics"
	"github.com/signalfleet/intelligence-engine/internal/models"
	"github.com/signalfleet/intelligence-engine/internal/utils"
)

// PostgresStore is the production Store backed by a pgx connection pool.
// Every write runs in its own transaction: insert or update, then commit,
// with rollback on any error.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and pings it so startup fails
// fast on bad credentials or connectivity.
func NewPostgresStore(ctx context.Context, dsn string, connectTimeout time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the analysis tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_summaries (
			id             UUID PRIMARY KEY,
			kind           TEXT NOT NULL,
			counts         JSONB NOT NULL DEFAULT '{}',
			rates          JSONB NOT NULL DEFAULT '{}',
			distributions  JSONB NOT NULL DEFAULT '{}',
			services       JSONB NOT NULL DEFAULT '[]',
			repositories   JSONB NOT NULL DEFAULT '[]',
			risky_patterns JSONB NOT NULL DEFAULT '[]',
			dominant_level TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_summaries_kind_created
			ON analysis_summaries (kind, created_at DESC);

		CREATE TABLE IF NOT EXISTS healing_actions (
			action_id     UUID PRIMARY KEY,
			issue_type    TEXT NOT NULL,
			service       TEXT NOT NULL,
			status        TEXT NOT NULL,
			action_taken  TEXT NOT NULL DEFAULT '',
			success       BOOLEAN,
			error_message TEXT NOT NULL DEFAULT '',
			context       JSONB NOT NULL DEFAULT '{}',
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_actions_created
			ON healing_actions (created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertSummary persists one summary in its own transaction.
func (s *PostgresStore) InsertSummary(ctx context.Context, summary *models.AnalysisSummary) error {
	stampSummary(summary)

	counts, rates, dists, err := marshalMetricMaps(summary)
	if err != nil {
		return err
	}
	services, _ := json.Marshal(emptyIfNil(summary.Services))
	repositories, _ := json.Marshal(emptyIfNil(summary.Repositories))
	risky, _ := json.Marshal(emptyIfNil(summary.RiskyPatterns))

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, `
			INSERT INTO analysis_summaries
				(id, kind, counts, rates, distributions, services, repositories, risky_patterns, dominant_level, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			summary.ID, string(summary.Kind), counts, rates, dists,
			services, repositories, risky, summary.DominantLevel, summary.CreatedAt,
		)
		return execErr
	})
	metrics.ObserveDBOperation("insert_summary", err)
	if err != nil {
		return utils.NewAppError("store.InsertSummary", "persist summary", err)
	}
	return nil
}

// ListSummaries returns up to limit summaries of one kind, newest first.
func (s *PostgresStore) ListSummaries(ctx context.Context, kind models.SummaryKind, limit int) ([]models.AnalysisSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, counts, rates, distributions, services, repositories, risky_patterns, dominant_level, created_at
		FROM analysis_summaries
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT $2`, string(kind), limit)
	metrics.ObserveDBOperation("list_summaries", err)
	if err != nil {
		return nil, utils.NewAppError("store.ListSummaries", "query summaries", err)
	}
	defer rows.Close()

	summaries := make([]models.AnalysisSummary, 0, limit)
	for rows.Next() {
		var (
			summary                              models.AnalysisSummary
			kindRaw                              string
			counts, rates, dists                 []byte
			services, repositories, riskyPattern []byte
		)
		if err := rows.Scan(&summary.ID, &kindRaw, &counts, &rates, &dists,
			&services, &repositories, &riskyPattern, &summary.DominantLevel, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary.Kind = models.SummaryKind(kindRaw)
		if err := unmarshalSummaryFields(&summary, counts, rates, dists, services, repositories, riskyPattern); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// InsertAction persists a new healing action in its own transaction.
func (s *PostgresStore) InsertAction(ctx context.Context, action *models.HealingAction) error {
	stampAction(action)

	contextJSON, _ := json.Marshal(emptyMapIfNil(action.Context))
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, `
			INSERT INTO healing_actions
				(action_id, issue_type, service, status, action_taken, success, error_message, context, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			action.ActionID, action.IssueType, action.Service, string(action.Status),
			action.ActionTaken, action.Success, action.ErrorMessage, contextJSON,
			action.CreatedAt, action.UpdatedAt,
		)
		return execErr
	})
	metrics.ObserveDBOperation("insert_action", err)
	if err != nil {
		return utils.NewAppError("store.InsertAction", "persist healing action", err)
	}
	return nil
}

// UpdateAction persists a status transition for an existing action.
func (s *PostgresStore) UpdateAction(ctx context.Context, action *models.HealingAction) error {
	action.UpdatedAt = time.Now().UTC()

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctx, `
			UPDATE healing_actions
			SET status = $2, action_taken = $3, success = $4, error_message = $5, updated_at = $6
			WHERE action_id = $1`,
			action.ActionID, string(action.Status), action.ActionTaken,
			action.Success, action.ErrorMessage, action.UpdatedAt,
		)
		if execErr != nil {
			return execErr
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	metrics.ObserveDBOperation("update_action", err)
	if err != nil {
		return utils.NewAppError("store.UpdateAction", "transition action "+action.ActionID, err)
	}
	return nil
}

// ListActions returns up to limit actions, newest first.
func (s *PostgresStore) ListActions(ctx context.Context, limit int) ([]models.HealingAction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT action_id, issue_type, service, status, action_taken, success, error_message, context, created_at, updated_at
		FROM healing_actions
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	metrics.ObserveDBOperation("list_actions", err)
	if err != nil {
		return nil, utils.NewAppError("store.ListActions", "query healing actions", err)
	}
	defer rows.Close()

	actions := make([]models.HealingAction, 0, limit)
	for rows.Next() {
		var (
			action      models.HealingAction
			statusRaw   string
			contextJSON []byte
		)
		if err := rows.Scan(&action.ActionID, &action.IssueType, &action.Service, &statusRaw,
			&action.ActionTaken, &action.Success, &action.ErrorMessage, &contextJSON,
			&action.CreatedAt, &action.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		action.Status = models.ActionStatus(statusRaw)
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &action.Context); err != nil {
				return nil, fmt.Errorf("decode action context: %w", err)
			}
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

// CountActions returns the total number of persisted actions.
func (s *PostgresStore) CountActions(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM healing_actions`).Scan(&count)
	metrics.ObserveDBOperation("count_actions", err)
	if err != nil {
		return 0, utils.NewAppError("store.CountActions", "count healing actions", err)
	}
	return count, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func marshalMetricMaps(summary *models.AnalysisSummary) (counts, rates, dists []byte, err error) {
	if counts, err = json.Marshal(emptyCountsIfNil(summary.Counts)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode counts: %w", err)
	}
	if rates, err = json.Marshal(emptyFloatsIfNil(summary.Rates)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode rates: %w", err)
	}
	if dists, err = json.Marshal(emptyFloatsIfNil(summary.Distributions)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode distributions: %w", err)
	}
	return counts, rates, dists, nil
}

func unmarshalSummaryFields(summary *models.AnalysisSummary, counts, rates, dists, services, repositories, risky []byte) error {
	for _, pair := range []struct {
		raw []byte
		dst interface{}
	}{
		{counts, &summary.Counts},
		{rates, &summary.Rates},
		{dists, &summary.Distributions},
		{services, &summary.Services},
		{repositories, &summary.Repositories},
		{risky, &summary.RiskyPatterns},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return fmt.Errorf("decode summary field: %w", err)
		}
	}
	return nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func emptyMapIfNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func emptyCountsIfNil(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}

func emptyFloatsIfNil(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
