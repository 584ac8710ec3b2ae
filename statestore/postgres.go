package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/corework/dagflow/wftypes"
)

// Postgres is a Store backed by github.com/jmoiron/sqlx and
// github.com/lib/pq, persisting each WorkflowState as a JSON column in a
// workflow_states table.
type Postgres struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgres opens a connection pool against databaseURL and ensures the
// backing table exists.
func NewPostgres(databaseURL string, logger *zap.Logger) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &Postgres{db: db, logger: logger}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (p *Postgres) ensureSchema() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS workflow_states (
			workflow_id TEXT PRIMARY KEY,
			status      TEXT NOT NULL,
			body        JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	_, err := p.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to ensure workflow_states schema: %w", err)
	}
	return nil
}

type workflowStateRow struct {
	WorkflowID string `db:"workflow_id"`
	Status     string `db:"status"`
	Body       []byte `db:"body"`
}

func (p *Postgres) SaveState(_ context.Context, state *wftypes.WorkflowState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow state: %w", err)
	}

	const query = `
		INSERT INTO workflow_states (workflow_id, status, body, updated_at)
		VALUES (:workflow_id, :status, :body, now())
		ON CONFLICT (workflow_id) DO UPDATE
		SET status = EXCLUDED.status, body = EXCLUDED.body, updated_at = now()
	`
	_, err = p.db.NamedExec(query, workflowStateRow{
		WorkflowID: state.WorkflowID,
		Status:     string(state.Status),
		Body:       body,
	})
	if err != nil {
		return fmt.Errorf("failed to save state for %s: %w", state.WorkflowID, err)
	}
	p.logger.Debug("workflow state saved", zap.String("workflow_id", state.WorkflowID))
	return nil
}

func (p *Postgres) LoadState(_ context.Context, workflowID string) (*wftypes.WorkflowState, bool, error) {
	var row workflowStateRow
	err := p.db.Get(&row, `SELECT workflow_id, status, body FROM workflow_states WHERE workflow_id = $1`, workflowID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to load state for %s: %w", workflowID, err)
	}

	var state wftypes.WorkflowState
	if err := json.Unmarshal(row.Body, &state); err != nil {
		return nil, false, fmt.Errorf("failed to decode state for %s: %w", workflowID, err)
	}
	return &state, true, nil
}

func (p *Postgres) DeleteState(_ context.Context, workflowID string) error {
	_, err := p.db.Exec(`DELETE FROM workflow_states WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete state for %s: %w", workflowID, err)
	}
	return nil
}

func (p *Postgres) ListWorkflows(_ context.Context) ([]string, error) {
	var ids []string
	err := p.db.Select(&ids, `SELECT workflow_id FROM workflow_states ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return ids, nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
