package statestore

import (
	"context"
	"sync"

	"github.com/corework/dagflow/wftypes"
)

// InMemory is the default state store: a map keyed by workflow_id with
// full-overwrite semantics on Save.
type InMemory struct {
	mu     sync.RWMutex
	states map[string]*wftypes.WorkflowState
}

// NewInMemory creates an empty in-memory state store.
func NewInMemory() *InMemory {
	return &InMemory{states: make(map[string]*wftypes.WorkflowState)}
}

func (s *InMemory) SaveState(_ context.Context, state *wftypes.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *state
	clone.StepResults = make(map[string]wftypes.StepResult, len(state.StepResults))
	for k, v := range state.StepResults {
		clone.StepResults[k] = v
	}
	s.states[state.WorkflowID] = &clone
	return nil
}

func (s *InMemory) LoadState(_ context.Context, workflowID string) (*wftypes.WorkflowState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[workflowID]
	if !ok {
		return nil, false, nil
	}
	clone := *state
	clone.StepResults = make(map[string]wftypes.StepResult, len(state.StepResults))
	for k, v := range state.StepResults {
		clone.StepResults[k] = v
	}
	return &clone, true, nil
}

func (s *InMemory) DeleteState(_ context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, workflowID)
	return nil
}

func (s *InMemory) ListWorkflows(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return ids, nil
}

// Clear removes every stored state; used by tests.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[string]*wftypes.WorkflowState)
}
