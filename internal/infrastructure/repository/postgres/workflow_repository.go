package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

const schemaLockID int64 = 2026101901

const workflowColumns = `id, state, cycle_id, document, result, failure, expanded, started_at, created_at, updated_at`

type WorkflowRepository struct {
	db *sql.DB
}

func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (r *WorkflowRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS workflows (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	cycle_id TEXT NOT NULL DEFAULT '',
	document JSONB,
	result JSONB,
	failure JSONB,
	expanded JSONB NOT NULL DEFAULT '[]'::jsonb,
	started_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflows_updated_at ON workflows(updated_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) Create(ctx context.Context, w *domain.Workflow) error {
	args, err := workflowArgs(w.Record())
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO workflows (`+workflowColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, args...)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) Get(ctx context.Context, id string) (*domain.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)
	return scanWorkflow(row, id)
}

// Update locks the row with SELECT ... FOR UPDATE, applies mutate and writes
// the result back in the same transaction.
func (r *WorkflowRepository) Update(ctx context.Context, id string, mutate func(*domain.Workflow) error) (*domain.Workflow, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1 FOR UPDATE`, id)
	w, err := scanWorkflow(row, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(w); err != nil {
		return nil, err
	}

	args, err := workflowArgs(w.Record())
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `
UPDATE workflows
SET state = $2, cycle_id = $3, document = $4, result = $5, failure = $6, expanded = $7, started_at = $8, updated_at = $10
WHERE id = $1 AND created_at = $9
`, args...)
	if err != nil {
		return nil, fmt.Errorf("update workflow: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, domain.WrapError(domain.ErrWorkflowNotFound, "update workflow", fmt.Errorf("id %s", id))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update tx: %w", err)
	}
	return w, nil
}

// PurgeIdleSince deletes workflows not updated since cutoff and returns them
// with the storage keys they still referenced.
func (r *WorkflowRepository) PurgeIdleSince(ctx context.Context, cutoff time.Time) ([]domain.ExpiredWorkflow, error) {
	rows, err := r.db.QueryContext(ctx, `
DELETE FROM workflows
WHERE updated_at < $1
RETURNING id, COALESCE(document->>'storage_key', '')
`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge workflows: %w", err)
	}
	defer rows.Close()

	var purged []domain.ExpiredWorkflow
	for rows.Next() {
		var w domain.ExpiredWorkflow
		if err := rows.Scan(&w.ID, &w.StorageKey); err != nil {
			return nil, fmt.Errorf("scan purged workflow: %w", err)
		}
		purged = append(purged, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purged workflows: %w", err)
	}
	return purged, nil
}
