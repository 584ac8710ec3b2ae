package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/corework/dagflow/step"
	"github.com/corework/dagflow/wftypes"
)

// textStep always succeeds with a fixed string output.
func textStep(value string) func(context.Context, wftypes.ExecutionContext) (wftypes.Output, error) {
	return func(_ context.Context, _ wftypes.ExecutionContext) (wftypes.Output, error) {
		return wftypes.NewStringOutput(value), nil
	}
}

// upperStep reads dep's output and upper-cases it.
func upperStep(dep string) func(context.Context, wftypes.ExecutionContext) (wftypes.Output, error) {
	return func(_ context.Context, ec wftypes.ExecutionContext) (wftypes.Output, error) {
		out, err := step.GetDependencyOutput(ec, dep)
		if err != nil {
			return wftypes.Output{}, err
		}
		return wftypes.NewStringOutput(strings.ToUpper(out.String())), nil
	}
}

// reportStep summarizes dep's output as a structured document.
func reportStep(dep string) func(context.Context, wftypes.ExecutionContext) (wftypes.Output, error) {
	return func(_ context.Context, ec wftypes.ExecutionContext) (wftypes.Output, error) {
		out, err := step.GetDependencyOutput(ec, dep)
		if err != nil {
			return wftypes.NewStringOutput(fmt.Sprintf("%s was skipped", dep)), nil
		}
		text := out.String()
		return wftypes.NewOutputBuilder().
			Set("source", dep).
			Set("text", text).
			Set("words", len(strings.Fields(text))).
			Output()
	}
}

// sleepyStep reads dep's output, sleeps for d to simulate work, and
// returns it unchanged, so fan-out branches visibly overlap.
func sleepyStep(dep string, d time.Duration) func(context.Context, wftypes.ExecutionContext) (wftypes.Output, error) {
	return func(ctx context.Context, ec wftypes.ExecutionContext) (wftypes.Output, error) {
		out, err := step.GetDependencyOutput(ec, dep)
		if err != nil {
			return wftypes.Output{}, err
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return wftypes.Output{}, ctx.Err()
		}
		return out, nil
	}
}

// flakyStep fails with a retryable error on its first n invocations, then
// succeeds, to exercise the retry+backoff lifecycle.
func flakyStep(failuresBeforeSuccess int32) func(context.Context, wftypes.ExecutionContext) (wftypes.Output, error) {
	var calls int32
	return func(_ context.Context, _ wftypes.ExecutionContext) (wftypes.Output, error) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failuresBeforeSuccess {
			return wftypes.Output{}, fmt.Errorf("temporary failure on attempt %d", n)
		}
		return wftypes.NewStringOutput("recovered"), nil
	}
}
