// Package executor implements the scheduling core: the ready-set loop,
// bounded-parallel wave dispatch, the per-step timeout+retry lifecycle,
// conditional skipping, execution context propagation, and resume.
// Dispatch is wave-synchronous: the whole wave settles before the next
// ready set is computed, so every step dispatched in the same wave
// observes an identical step_outputs snapshot.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/corework/dagflow/dag"
	"github.com/corework/dagflow/progress"
	"github.com/corework/dagflow/statestore"
	"github.com/corework/dagflow/step"
	"github.com/corework/dagflow/wftypes"
)

// Executor runs workflows to completion against a pluggable state store and
// an optional progress sink.
type Executor struct {
	Store            statestore.Store
	Sink             progress.Sink
	MaxParallelSteps int
	Logger           *zap.Logger
	Metrics          *Metrics
	Tracer           Tracer
}

// Tracer is the minimal span-creation surface the executor needs; it lets
// callers plug in OpenTelemetry (see the observability package) without the
// executor importing it directly.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, func())
}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}

// New builds an Executor with sane defaults: an in-memory store, no
// progress sink, 5-way parallelism, a no-op logger and tracer.
func New(opts ...Option) *Executor {
	e := &Executor{
		Store:            statestore.NewInMemory(),
		MaxParallelSteps: 5,
		Logger:           zap.NewNop(),
		Metrics:          NewMetrics(),
		Tracer:           noopTracer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option configures an Executor built via New.
type Option func(*Executor)

func WithStore(s statestore.Store) Option { return func(e *Executor) { e.Store = s } }
func WithSink(s progress.Sink) Option     { return func(e *Executor) { e.Sink = s } }
func WithMaxParallelSteps(n int) Option   { return func(e *Executor) { e.MaxParallelSteps = n } }
func WithLogger(l *zap.Logger) Option     { return func(e *Executor) { e.Logger = l } }
func WithMetrics(m *Metrics) Option       { return func(e *Executor) { e.Metrics = m } }
func WithTracer(t Tracer) Option          { return func(e *Executor) { e.Tracer = t } }

// ExecuteWorkflow validates the DAG formed by steps, then runs it to
// completion: repeatedly dispatching the ready set in waves bounded by
// MaxParallelSteps, until every step has settled or no further progress is
// possible. The final state is persisted before return, success or
// failure.
func (e *Executor) ExecuteWorkflow(ctx context.Context, workflowID string, steps []step.Step, input map[string]interface{}) (*wftypes.WorkflowState, error) {
	state := wftypes.NewWorkflowState(workflowID, input)
	state.StartTime = time.Now()
	state.Status = wftypes.WorkflowRunning

	graph, err := dag.Build(steps)
	if err != nil {
		return e.finalizeWithValidationError(ctx, state, err)
	}

	if err := e.run(ctx, state, steps, graph); err != nil {
		return state, err
	}
	return state, nil
}

// ResumeWorkflow loads the prior state for workflowID, fails with
// NOT_FOUND/ALREADY_COMPLETE as appropriate, and otherwise re-runs the
// steps that never reached COMPLETED under the same semantics as
// ExecuteWorkflow. Only steps COMPLETED in the prior run are left out:
// a step in steps that previously FAILED or was SKIPPED is dispatched
// again. A SKIPPED step that the caller leaves out of steps still
// satisfies its dependents.
func (e *Executor) ResumeWorkflow(ctx context.Context, workflowID string, steps []step.Step) (*wftypes.WorkflowState, error) {
	prior, ok, err := e.Store.LoadState(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wftypes.NewError(wftypes.ErrNotFound, fmt.Sprintf("workflow %q not found", workflowID))
	}
	if prior.Status == wftypes.WorkflowCompleted {
		return nil, wftypes.NewError(wftypes.ErrAlreadyComplete, fmt.Sprintf("workflow %q already completed", workflowID))
	}

	completed := make(map[string]struct{})
	settled := make(map[string]struct{})
	for name, r := range prior.StepResults {
		switch r.Status {
		case wftypes.StepCompleted:
			completed[name] = struct{}{}
			settled[name] = struct{}{}
		case wftypes.StepSkipped:
			settled[name] = struct{}{}
		}
	}

	remaining := make([]step.Step, 0, len(steps))
	for _, s := range steps {
		if _, done := completed[s.Name()]; !done {
			remaining = append(remaining, s)
		}
	}

	prior.Status = wftypes.WorkflowRunning
	prior.EndTime = nil

	if len(remaining) == 0 {
		prior.Status = wftypes.WorkflowCompleted
		now := time.Now()
		prior.EndTime = &now
		if err := e.Store.SaveState(ctx, prior); err != nil {
			return nil, err
		}
		return prior, nil
	}

	graph, err := dag.BuildPartial(remaining, settled)
	if err != nil {
		return e.finalizeWithValidationError(ctx, prior, err)
	}

	if err := e.run(ctx, prior, remaining, graph); err != nil {
		return prior, err
	}
	return prior, nil
}

func (e *Executor) finalizeWithValidationError(ctx context.Context, state *wftypes.WorkflowState, err error) (*wftypes.WorkflowState, error) {
	state.Status = wftypes.WorkflowFailed
	state.Metadata["error"] = err.Error()
	now := time.Now()
	state.EndTime = &now
	_ = e.Store.SaveState(ctx, state)
	return state, err
}

// run drives the ready-set loop over steps/graph, mutating state in place,
// and persists the final state before returning.
func (e *Executor) run(ctx context.Context, state *wftypes.WorkflowState, steps []step.Step, graph dag.Graph) error {
	byName := make(map[string]step.Step, len(steps))
	var order []string
	for _, s := range steps {
		byName[s.Name()] = s
		order = append(order, s.Name())
	}

	deps := make(map[string][]string, len(steps))
	for _, s := range steps {
		deps[s.Name()] = s.DependsOn()
	}

	pending := make(map[string]struct{}, len(order))
	for _, name := range order {
		pending[name] = struct{}{}
	}
	completed := make(map[string]struct{})
	skipped := make(map[string]struct{})
	failed := make(map[string]struct{})

	// On resume, steps settled in the prior run still gate and feed
	// their dependents even though they are not re-dispatched.
	for name, r := range state.StepResults {
		if _, isCurrent := pending[name]; isCurrent {
			continue
		}
		switch r.Status {
		case wftypes.StepCompleted:
			completed[name] = struct{}{}
		case wftypes.StepSkipped:
			skipped[name] = struct{}{}
		}
	}

	var runErr error

	for len(pending) > 0 {
		if ctx.Err() != nil {
			runErr = wftypes.WrapError(wftypes.ErrCancelled, "workflow cancelled before every step was dispatched", ctx.Err())
			break
		}

		ready := readySet(order, pending, completed, skipped, deps)
		if len(ready) == 0 {
			remaining := make([]string, 0, len(pending))
			for name := range pending {
				remaining = append(remaining, name)
			}
			sort.Strings(remaining)
			runErr = wftypes.NewError(wftypes.ErrUnmetDependencies,
				fmt.Sprintf("cannot make progress, unmet dependencies for: %v", remaining))
			state.Metadata["unreachable_steps"] = remaining
			break
		}

		batch := ready
		if len(batch) > e.MaxParallelSteps {
			batch = batch[:e.MaxParallelSteps]
		}

		snapshot := snapshotOutputs(state, completed)
		results := e.dispatchWave(ctx, state.WorkflowID, batch, byName, state.InputData, snapshot)

		for _, name := range batch {
			res := results[name]
			state.StepResults[name] = res
			delete(pending, name)
			switch res.Status {
			case wftypes.StepCompleted:
				completed[name] = struct{}{}
			case wftypes.StepSkipped:
				skipped[name] = struct{}{}
			case wftypes.StepFailed:
				failed[name] = struct{}{}
			}
		}
	}

	now := time.Now()
	state.EndTime = &now

	if runErr == nil && len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		runErr = wftypes.NewError(wftypes.ErrStepExecution,
			fmt.Sprintf("workflow failed, failed steps: %v", names))
	}

	if runErr != nil {
		state.Status = wftypes.WorkflowFailed
		state.Metadata["error"] = runErr.Error()
		e.emit(wftypes.ProgressEvent{WorkflowID: state.WorkflowID, EventType: wftypes.EventWorkflowFailed, Message: runErr.Error(), Timestamp: now})
	} else {
		state.Status = wftypes.WorkflowCompleted
		e.emit(wftypes.ProgressEvent{WorkflowID: state.WorkflowID, EventType: wftypes.EventWorkflowComplete, Timestamp: now})
	}

	if err := e.Store.SaveState(ctx, state); err != nil {
		e.Logger.Error("failed to persist final workflow state", zap.String("workflow_id", state.WorkflowID), zap.Error(err))
		if runErr == nil {
			return err
		}
	}

	return runErr
}

// readySet returns the subset of pending steps, in insertion order so
// wave selection is deterministic, whose dependencies have all settled
// as COMPLETED or SKIPPED. A dependency on a FAILED (or still pending)
// step makes the step not-ready.
func readySet(order []string, pending map[string]struct{}, completed, skipped map[string]struct{}, deps map[string][]string) []string {
	var ready []string
	for _, name := range order {
		if _, isPending := pending[name]; !isPending {
			continue
		}
		if stepReady(deps[name], completed, skipped) {
			ready = append(ready, name)
		}
	}
	return ready
}

func stepReady(deps []string, completed, skipped map[string]struct{}) bool {
	for _, dep := range deps {
		_, isCompleted := completed[dep]
		_, isSkipped := skipped[dep]
		if !isCompleted && !isSkipped {
			return false
		}
	}
	return true
}

func snapshotOutputs(state *wftypes.WorkflowState, completed map[string]struct{}) map[string]wftypes.Output {
	snap := make(map[string]wftypes.Output, len(completed))
	for name := range completed {
		snap[name] = state.StepResults[name].Output
	}
	return snap
}

// dispatchWave runs the named steps concurrently, bounded by a semaphore
// sized to MaxParallelSteps, and waits for every one of them to settle
// before returning.
func (e *Executor) dispatchWave(ctx context.Context, workflowID string, names []string, byName map[string]step.Step, input map[string]interface{}, snapshot map[string]wftypes.Output) map[string]wftypes.StepResult {
	sem := semaphore.NewWeighted(int64(e.MaxParallelSteps))
	results := make(map[string]wftypes.StepResult, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup

	ec := wftypes.ExecutionContext{InputData: input, StepOutputs: snapshot}

	for _, name := range names {
		name := name
		s := byName[name]

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			results[name] = wftypes.StepResult{Status: wftypes.StepFailed, Err: wftypes.WrapError(wftypes.ErrCancelled, "wave dispatch cancelled", err)}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			res := e.runStep(ctx, workflowID, s, ec)

			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

// runStep executes the full lifecycle of one step: the condition gate,
// then the attempt loop with per-attempt timeout and retry+backoff.
func (e *Executor) runStep(ctx context.Context, workflowID string, s step.Step, ec wftypes.ExecutionContext) wftypes.StepResult {
	if cond := s.Condition(); cond != nil && !cond(ec) {
		e.emit(wftypes.ProgressEvent{WorkflowID: workflowID, EventType: wftypes.EventStepComplete, StepName: s.Name(), StepStatus: wftypes.StepSkipped, Timestamp: time.Now()})
		return wftypes.StepResult{Status: wftypes.StepSkipped, Attempts: 0, DurationMs: 0}
	}

	e.emit(wftypes.ProgressEvent{WorkflowID: workflowID, EventType: wftypes.EventStepStart, StepName: s.Name(), StepStatus: wftypes.StepRunning, Timestamp: time.Now()})

	spanCtx, endSpan := e.Tracer.StartSpan(ctx, "step."+s.Name())
	defer endSpan()

	started := time.Now()
	attempts := 0
	var lastErr *wftypes.Error
	var out wftypes.Output

loop:
	for {
		attempts++

		result, execErr, runaway := e.attempt(spanCtx, s, ec)
		if execErr == nil {
			out = result
			lastErr = nil
			break
		}

		var kind wftypes.ErrorKind
		switch {
		case ctx.Err() != nil:
			kind = wftypes.ErrCancelled
		case errors.Is(execErr, context.DeadlineExceeded):
			kind = wftypes.ErrTimeout
		default:
			// A step that failed with an already classified *wftypes.Error
			// (e.g. MISSING_DEPENDENCY) keeps that kind.
			kind = wftypes.ErrStepExecution
			var stepErr *wftypes.Error
			if errors.As(execErr, &stepErr) {
				kind = stepErr.Kind
			}
		}

		msg := execErr.Error()
		if kind == wftypes.ErrTimeout {
			msg = fmt.Sprintf("step %q timed out after %.1fs", s.Name(), s.Timeout().Seconds())
		}
		lastErr = wftypes.WrapError(kind, msg, execErr)

		if attempts >= s.MaxAttempts() || kind == wftypes.ErrCancelled {
			break
		}

		if kind != wftypes.ErrTimeout && !s.IsRetryable(execErr) {
			break
		}

		// A timed-out attempt may still be executing in the background; the
		// next attempt must not begin until it has released.
		if runaway != nil {
			select {
			case <-ctx.Done():
				lastErr = wftypes.WrapError(wftypes.ErrCancelled, "workflow cancelled while a timed-out attempt was releasing", ctx.Err())
				break loop
			case <-runaway:
			}
		}

		delay := backoffDelay(attempts)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = wftypes.WrapError(wftypes.ErrCancelled, "workflow cancelled during backoff", ctx.Err())
			break loop
		case <-timer.C:
		}
	}

	completedAt := time.Now()
	durationMs := float64(completedAt.Sub(started).Milliseconds())

	var result wftypes.StepResult
	if lastErr == nil {
		result = wftypes.StepResult{
			Status:      wftypes.StepCompleted,
			Output:      out,
			Attempts:    attempts,
			DurationMs:  durationMs,
			StartedAt:   &started,
			CompletedAt: &completedAt,
		}
	} else {
		result = wftypes.StepResult{
			Status:      wftypes.StepFailed,
			Err:         lastErr,
			Attempts:    attempts,
			DurationMs:  durationMs,
			StartedAt:   &started,
			CompletedAt: &completedAt,
		}
	}

	e.emit(wftypes.ProgressEvent{WorkflowID: workflowID, EventType: wftypes.EventStepComplete, StepName: s.Name(), StepStatus: result.Status, Timestamp: completedAt})
	e.Metrics.RecordStep(s.Name(), string(result.Status), durationMs)

	return result
}

type attemptOutcome struct {
	out wftypes.Output
	err error
}

// attempt invokes one Execute call under the step's per-attempt deadline.
// The attempt runs on its own goroutine so the deadline fires even against
// a step that never observes cancellation; in that case the returned
// release channel is non-nil and closes when the runaway call finally
// returns.
func (e *Executor) attempt(ctx context.Context, s step.Step, ec wftypes.ExecutionContext) (wftypes.Output, error, <-chan struct{}) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.Timeout())
	defer cancel()

	done := make(chan attemptOutcome, 1)
	released := make(chan struct{})

	e.Metrics.StepStarted()
	go func() {
		defer close(released)
		defer e.Metrics.StepFinished()
		out, err := s.Execute(attemptCtx, ec)
		done <- attemptOutcome{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err, nil
	case <-attemptCtx.Done():
		return wftypes.Output{}, attemptCtx.Err(), released
	}
}

// backoffDelay computes the delay before the retry following the k-th
// attempt: min(100ms * 2^k, 5s), jittered uniformly within ±25%.
func backoffDelay(k int) time.Duration {
	const base = 100 * time.Millisecond
	const max = 5 * time.Second

	d := base * time.Duration(1<<uint(k))
	if d > max {
		d = max
	}

	jitterRange := float64(d) * 0.25
	jitter := (rand.Float64()*2 - 1) * jitterRange
	d += time.Duration(jitter)
	if d < 0 {
		d = 0
	}
	return d
}

func (e *Executor) emit(event wftypes.ProgressEvent) {
	if e.Sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.Sink.Emit(event)
}
