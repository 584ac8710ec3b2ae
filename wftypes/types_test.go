package wftypes

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestOutputAccessors(t *testing.T) {
	out := NewStringOutput("hello world")
	if out.String() != "hello world" {
		t.Fatalf("String() = %q, want %q", out.String(), "hello world")
	}
	if out.IsZero() {
		t.Fatal("non-empty output reported as zero")
	}
	if string(out.Raw()) != `"hello world"` {
		t.Fatalf("Raw() = %s, want quoted json string", out.Raw())
	}

	var zero Output
	if !zero.IsZero() {
		t.Fatal("zero-value Output not reported as zero")
	}
}

func TestOutputValuePreservesType(t *testing.T) {
	out := NewOutput(map[string]int{"a": 1})
	v, ok := out.Value().(map[string]int)
	if !ok {
		t.Fatalf("Value() did not round-trip underlying type: %#v", out.Value())
	}
	if v["a"] != 1 {
		t.Fatalf("Value()[\"a\"] = %d, want 1", v["a"])
	}
}

func TestOutputNarrowingAccessors(t *testing.T) {
	n := NewOutput(42)
	if v, ok := n.Int(); !ok || v != 42 {
		t.Fatalf("Int() = %d, %v; want 42, true", v, ok)
	}
	b := NewOutput(true)
	if v, ok := b.Bool(); !ok || !v {
		t.Fatalf("Bool() = %v, %v; want true, true", v, ok)
	}
	if _, ok := NewStringOutput("nope").Int(); ok {
		t.Fatal("Int() should not narrow a string output")
	}
}

func TestOutputJSONPathLookup(t *testing.T) {
	out := NewOutput(map[string]interface{}{
		"tokens": map[string]interface{}{"used": 128},
		"model":  "small",
	})
	r, ok := out.JSON("tokens.used")
	if !ok || r.Int() != 128 {
		t.Fatalf("JSON(tokens.used) = %v, %v; want 128, true", r, ok)
	}
	if _, ok := out.JSON("tokens.missing"); ok {
		t.Fatal("JSON should report absence for a missing path")
	}
	if _, ok := (Output{}).JSON("anything"); ok {
		t.Fatal("JSON on the zero Output should report absence")
	}
}

func TestOutputBuilderAssemblesDocument(t *testing.T) {
	out, err := NewOutputBuilder().
		Set("title", "summary").
		Set("tokens.used", 64).
		Output()
	if err != nil {
		t.Fatalf("Output(): %v", err)
	}
	if r, ok := out.JSON("tokens.used"); !ok || r.Int() != 64 {
		t.Fatalf("built document missing tokens.used: %s", out.Raw())
	}
	if r, ok := out.JSON("title"); !ok || r.String() != "summary" {
		t.Fatalf("built document missing title: %s", out.Raw())
	}
}

func TestErrorWrapAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(ErrStepExecution, "step failed", cause)

	if !IsKind(err, ErrStepExecution) {
		t.Fatal("IsKind did not recognize the wrapped error's kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is failed to see through Error.Unwrap")
	}
}

func TestNewErrorHasNoCause(t *testing.T) {
	err := NewError(ErrCycle, "cycle detected")
	if err.Unwrap() != nil {
		t.Fatal("NewError should not set a cause")
	}
	if err.Error() != "cycle detected" {
		t.Fatalf("Error() = %q, want the message verbatim", err.Error())
	}
}

func TestWorkflowStateDerivedViews(t *testing.T) {
	state := NewWorkflowState("wf-1", map[string]interface{}{"k": "v"})
	state.StepResults["a"] = StepResult{Status: StepCompleted, Output: NewStringOutput("A")}
	state.StepResults["b"] = StepResult{Status: StepFailed, Err: NewError(ErrStepExecution, "nope")}
	state.StepResults["c"] = StepResult{Status: StepSkipped}

	completed := state.CompletedSteps()
	if len(completed) != 1 || completed[0] != "a" {
		t.Fatalf("CompletedSteps() = %v, want [a]", completed)
	}
	failed := state.FailedSteps()
	if len(failed) != 1 || failed[0] != "b" {
		t.Fatalf("FailedSteps() = %v, want [b]", failed)
	}
	if state.StepOutput("a").String() != "A" {
		t.Fatalf("StepOutput(a) = %q, want A", state.StepOutput("a").String())
	}
	if !state.StepOutput("c").IsZero() {
		t.Fatal("StepOutput of a skipped step should be the zero Output")
	}
}

func TestStepResultMarshalJSONFreezesErrorAndOutput(t *testing.T) {
	r := StepResult{
		Status: StepFailed,
		Err:    NewError(ErrTimeout, "step \"x\" timed out after 1s"),
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["error_kind"] != string(ErrTimeout) {
		t.Fatalf("error_kind = %v, want %s", decoded["error_kind"], ErrTimeout)
	}
}

func TestStepResultRoundTripRehydratesOutputAndError(t *testing.T) {
	r := StepResult{Status: StepCompleted, Output: NewStringOutput("abc"), Attempts: 1}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back StepResult
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Output.String() != "abc" {
		t.Fatalf("rehydrated Output = %q, want abc", back.Output.String())
	}

	f := StepResult{Status: StepFailed, Err: NewError(ErrTimeout, "too slow"), Attempts: 2}
	b, _ = json.Marshal(f)
	var backF StepResult
	if err := json.Unmarshal(b, &backF); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !IsKind(backF.Err, ErrTimeout) {
		t.Fatalf("rehydrated Err = %v, want TIMEOUT", backF.Err)
	}
}
