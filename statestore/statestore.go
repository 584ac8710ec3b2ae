// Package statestore defines the pluggable persistence contract for
// workflow state and the default in-memory implementation. Redis- and
// Postgres-backed adapters live in redis.go and postgres.go.
package statestore

import (
	"context"

	"github.com/corework/dagflow/wftypes"
)

// Store is the pluggable persistence layer a resumable workflow needs.
// Implementations overwrite prior records for the same workflow_id on
// Save, and every operation other than Save is idempotent.
type Store interface {
	SaveState(ctx context.Context, state *wftypes.WorkflowState) error
	LoadState(ctx context.Context, workflowID string) (*wftypes.WorkflowState, bool, error)
	DeleteState(ctx context.Context, workflowID string) error
	ListWorkflows(ctx context.Context) ([]string, error)
}
