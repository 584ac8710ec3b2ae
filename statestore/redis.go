package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/corework/dagflow/wftypes"
)

const redisKeyPrefix = "workflow:"

// Redis is a Store backed by github.com/go-redis/redis/v8, persisting each
// WorkflowState as a JSON blob keyed by "workflow:{id}".
type Redis struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRedis connects to addr and returns a ready Redis store. ttl of zero
// means records never expire.
func NewRedis(addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client, logger: logger, ttl: ttl}, nil
}

func (r *Redis) key(workflowID string) string {
	return redisKeyPrefix + workflowID
}

func (r *Redis) SaveState(ctx context.Context, state *wftypes.WorkflowState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow state: %w", err)
	}
	if err := r.client.Set(ctx, r.key(state.WorkflowID), body, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state for %s: %w", state.WorkflowID, err)
	}
	r.logger.Debug("workflow state saved", zap.String("workflow_id", state.WorkflowID))
	return nil
}

func (r *Redis) LoadState(ctx context.Context, workflowID string) (*wftypes.WorkflowState, bool, error) {
	val, err := r.client.Get(ctx, r.key(workflowID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to load state for %s: %w", workflowID, err)
	}

	var state wftypes.WorkflowState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, false, fmt.Errorf("failed to decode state for %s: %w", workflowID, err)
	}
	return &state, true, nil
}

func (r *Redis) DeleteState(ctx context.Context, workflowID string) error {
	if err := r.client.Del(ctx, r.key(workflowID)).Err(); err != nil {
		return fmt.Errorf("failed to delete state for %s: %w", workflowID, err)
	}
	return nil
}

func (r *Redis) ListWorkflows(ctx context.Context) ([]string, error) {
	var ids []string
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return ids, nil
}

// Close releases the underlying Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
