// Package dag builds and validates the dependency graph for a workflow's
// step list before any step is dispatched.
package dag

import (
	"fmt"

	"github.com/corework/dagflow/step"
	"github.com/corework/dagflow/wftypes"
)

// Graph maps each step name to the set of names it depends on.
type Graph map[string]map[string]struct{}

// Build validates steps and returns the dependency graph.
//
// It fails with UNKNOWN_DEPENDENCY if any step names a dependency absent
// from the step list, and with CYCLE if the dependency graph contains a
// back-edge.
func Build(steps []step.Step) (Graph, error) {
	return BuildPartial(steps, nil)
}

// BuildPartial is Build for a step list resumed mid-run: names in
// satisfied were already settled by an earlier run, so dependencies on
// them are valid references even though they contribute no nodes to the
// graph.
func BuildPartial(steps []step.Step, satisfied map[string]struct{}) (Graph, error) {
	names := make(map[string]struct{}, len(steps)+len(satisfied))
	for name := range satisfied {
		names[name] = struct{}{}
	}
	for _, s := range steps {
		names[s.Name()] = struct{}{}
	}

	graph := make(Graph, len(steps))
	for _, s := range steps {
		deps := make(map[string]struct{}, len(s.DependsOn()))
		for _, dep := range s.DependsOn() {
			if _, ok := names[dep]; !ok {
				return nil, wftypes.NewError(wftypes.ErrUnknownDependency,
					fmt.Sprintf("step %q depends on unknown step %q", s.Name(), dep))
			}
			deps[dep] = struct{}{}
		}
		graph[s.Name()] = deps
	}

	if offender, ok := findCycle(graph); ok {
		return nil, wftypes.NewError(wftypes.ErrCycle,
			fmt.Sprintf("circular dependency detected involving step %q", offender))
	}

	return graph, nil
}

// findCycle runs a depth-first traversal with a recursion marker over the
// reverse-edge graph, returning the first step name found on a back-edge.
func findCycle(graph Graph) (string, bool) {
	visited := make(map[string]bool, len(graph))
	onStack := make(map[string]bool, len(graph))

	var visit func(name string) (string, bool)
	visit = func(name string) (string, bool) {
		visited[name] = true
		onStack[name] = true

		for dep := range graph[name] {
			if !visited[dep] {
				if offender, found := visit(dep); found {
					return offender, true
				}
			} else if onStack[dep] {
				return dep, true
			}
		}

		onStack[name] = false
		return "", false
	}

	for name := range graph {
		if !visited[name] {
			if offender, found := visit(name); found {
				return offender, true
			}
		}
	}
	return "", false
}
