package step

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corework/dagflow/wftypes"
)

func TestNewDefaults(t *testing.T) {
	s := New("noop", func(context.Context, wftypes.ExecutionContext) (wftypes.Output, error) {
		return wftypes.Output{}, nil
	})
	if s.Timeout() != 30*time.Second {
		t.Fatalf("default Timeout() = %s, want 30s", s.Timeout())
	}
	if s.MaxAttempts() != 1 {
		t.Fatalf("default MaxAttempts() = %d, want 1", s.MaxAttempts())
	}
	if s.Condition() != nil {
		t.Fatal("default Condition() should be nil")
	}
}

func TestMaxAttemptsFloorsAtOne(t *testing.T) {
	s := New("x", nil, MaxAttempts(0))
	if s.MaxAttempts() != 1 {
		t.Fatalf("MaxAttempts() = %d, want floor of 1", s.MaxAttempts())
	}
	s2 := New("y", nil, MaxAttempts(-5))
	if s2.MaxAttempts() != 1 {
		t.Fatalf("MaxAttempts() = %d, want floor of 1", s2.MaxAttempts())
	}
}

func TestDefaultRetryClassifier(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("connection timeout"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("HTTP 503 service unavailable"), true},
		{errors.New("authentication failed"), false},
		{errors.New("resource not found"), false},
		{errors.New("invalid input"), false},
		{errors.New("totally unrelated message"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := DefaultRetryClassifier(c.err); got != c.want {
			t.Errorf("DefaultRetryClassifier(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestNonRetryableCheckedBeforeRetryable(t *testing.T) {
	// "not found" (non-retryable) should win even though the message also
	// mentions "timeout" (retryable).
	err := errors.New("connection timeout: resource not found")
	if DefaultRetryClassifier(err) {
		t.Fatal("non-retryable pattern should take priority over a retryable one")
	}
}

func TestGetDependencyOutputMissing(t *testing.T) {
	ec := wftypes.ExecutionContext{StepOutputs: map[string]wftypes.Output{}}
	_, err := GetDependencyOutput(ec, "missing")
	if !wftypes.IsKind(err, wftypes.ErrMissingDependency) {
		t.Fatalf("expected MISSING_DEPENDENCY, got %v", err)
	}
}

func TestGetDependencyOutputPresent(t *testing.T) {
	ec := wftypes.ExecutionContext{StepOutputs: map[string]wftypes.Output{
		"a": wftypes.NewStringOutput("value"),
	}}
	out, err := GetDependencyOutput(ec, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "value" {
		t.Fatalf("GetDependencyOutput = %q, want value", out.String())
	}
}

func TestValidateDependencies(t *testing.T) {
	s := New("s", nil, DependsOn("a", "b"))
	ec := wftypes.ExecutionContext{StepOutputs: map[string]wftypes.Output{
		"a": wftypes.NewStringOutput("x"),
	}}
	err := ValidateDependencies(s, ec)
	if !wftypes.IsKind(err, wftypes.ErrMissingDependency) {
		t.Fatalf("expected MISSING_DEPENDENCY for absent 'b', got %v", err)
	}
}

func TestMinOutputWords(t *testing.T) {
	cond := MinOutputWords("text", 3)

	ec := wftypes.ExecutionContext{StepOutputs: map[string]wftypes.Output{
		"text": wftypes.NewStringOutput("one two three four"),
	}}
	if !cond(ec) {
		t.Fatal("expected condition to hold for a 4-word output with threshold 3")
	}

	ec2 := wftypes.ExecutionContext{StepOutputs: map[string]wftypes.Output{
		"text": wftypes.NewStringOutput("one two"),
	}}
	if cond(ec2) {
		t.Fatal("expected condition to fail for a 2-word output with threshold 3")
	}

	ec3 := wftypes.ExecutionContext{StepOutputs: map[string]wftypes.Output{}}
	if cond(ec3) {
		t.Fatal("expected condition to fail when the referenced step output is absent")
	}
}

func TestAllComposesConditions(t *testing.T) {
	alwaysTrue := func(wftypes.ExecutionContext) bool { return true }
	alwaysFalse := func(wftypes.ExecutionContext) bool { return false }

	if !All(alwaysTrue, alwaysTrue)(wftypes.ExecutionContext{}) {
		t.Fatal("All of two true conditions should be true")
	}
	if All(alwaysTrue, alwaysFalse)(wftypes.ExecutionContext{}) {
		t.Fatal("All should be false if any condition is false")
	}
	if !All()(wftypes.ExecutionContext{}) {
		t.Fatal("All with no conditions should be vacuously true")
	}
}

func TestOutputPresent(t *testing.T) {
	cond := OutputPresent("a")
	ec := wftypes.ExecutionContext{StepOutputs: map[string]wftypes.Output{"a": wftypes.NewStringOutput("x")}}
	if !cond(ec) {
		t.Fatal("expected OutputPresent to hold when the step output exists")
	}
	if cond(wftypes.ExecutionContext{StepOutputs: map[string]wftypes.Output{}}) {
		t.Fatal("expected OutputPresent to fail when the step output is absent")
	}
}

func TestRetryableWithOverridesDefault(t *testing.T) {
	s := New("s", nil, RetryableWith(func(err error) bool { return true }))
	if !s.IsRetryable(errors.New("anything at all")) {
		t.Fatal("custom RetryClassifier should override the default")
	}
}
