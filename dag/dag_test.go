package dag

import (
	"context"
	"testing"

	"github.com/corework/dagflow/step"
	"github.com/corework/dagflow/wftypes"
)

func noop(context.Context, wftypes.ExecutionContext) (wftypes.Output, error) {
	return wftypes.Output{}, nil
}

func TestBuildValidGraph(t *testing.T) {
	steps := []step.Step{
		step.New("a", noop),
		step.New("b", noop, step.DependsOn("a")),
		step.New("c", noop, step.DependsOn("a", "b")),
	}
	graph, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := graph["c"]["a"]; !ok {
		t.Fatal("expected c to depend on a")
	}
	if _, ok := graph["c"]["b"]; !ok {
		t.Fatal("expected c to depend on b")
	}
}

func TestBuildPartialAcceptsSatisfiedDependencies(t *testing.T) {
	steps := []step.Step{
		step.New("b", noop, step.DependsOn("a")),
		step.New("c", noop, step.DependsOn("b")),
	}
	satisfied := map[string]struct{}{"a": {}}
	graph, err := BuildPartial(steps, satisfied)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := graph["b"]["a"]; !ok {
		t.Fatal("expected b to keep its edge to the satisfied step a")
	}
}

func TestBuildPartialStillRejectsTrulyUnknownDependency(t *testing.T) {
	steps := []step.Step{
		step.New("b", noop, step.DependsOn("ghost")),
	}
	_, err := BuildPartial(steps, map[string]struct{}{"a": {}})
	if !wftypes.IsKind(err, wftypes.ErrUnknownDependency) {
		t.Fatalf("expected UNKNOWN_DEPENDENCY, got %v", err)
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	steps := []step.Step{
		step.New("a", noop, step.DependsOn("ghost")),
	}
	_, err := Build(steps)
	if !wftypes.IsKind(err, wftypes.ErrUnknownDependency) {
		t.Fatalf("expected UNKNOWN_DEPENDENCY, got %v", err)
	}
}

func TestBuildDetectsDirectCycle(t *testing.T) {
	steps := []step.Step{
		step.New("a", noop, step.DependsOn("b")),
		step.New("b", noop, step.DependsOn("a")),
	}
	_, err := Build(steps)
	if !wftypes.IsKind(err, wftypes.ErrCycle) {
		t.Fatalf("expected CYCLE, got %v", err)
	}
}

func TestBuildDetectsIndirectCycle(t *testing.T) {
	steps := []step.Step{
		step.New("a", noop, step.DependsOn("c")),
		step.New("b", noop, step.DependsOn("a")),
		step.New("c", noop, step.DependsOn("b")),
	}
	_, err := Build(steps)
	if !wftypes.IsKind(err, wftypes.ErrCycle) {
		t.Fatalf("expected CYCLE, got %v", err)
	}
}

func TestBuildSelfLoopIsACycle(t *testing.T) {
	steps := []step.Step{
		step.New("a", noop, step.DependsOn("a")),
	}
	_, err := Build(steps)
	if !wftypes.IsKind(err, wftypes.ErrCycle) {
		t.Fatalf("expected CYCLE for a self-dependency, got %v", err)
	}
}

func TestBuildDisjointComponents(t *testing.T) {
	steps := []step.Step{
		step.New("a", noop),
		step.New("b", noop),
	}
	graph, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph) != 2 {
		t.Fatalf("len(graph) = %d, want 2", len(graph))
	}
}
