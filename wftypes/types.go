// Package wftypes holds the data model shared by every other package in
// this module: status enums, per-step results, the authoritative workflow
// state record, progress events, and the opaque output value steps hand to
// each other through the execution context.
package wftypes

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// StepStatus is the lifecycle status of a single step attempt cycle.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// WorkflowStatus is the lifecycle status of an entire run.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowCancelled WorkflowStatus = "cancelled"
)

// ErrorKind classifies a failure the core can raise, per the error taxonomy.
type ErrorKind string

const (
	ErrCycle              ErrorKind = "CYCLE"
	ErrUnknownDependency  ErrorKind = "UNKNOWN_DEPENDENCY"
	ErrUnmetDependencies  ErrorKind = "UNMET_DEPENDENCIES"
	ErrMissingDependency  ErrorKind = "MISSING_DEPENDENCY"
	ErrTimeout            ErrorKind = "TIMEOUT"
	ErrStepExecution      ErrorKind = "STEP_EXECUTION"
	ErrCancelled          ErrorKind = "CANCELLED"
	ErrNotFound           ErrorKind = "NOT_FOUND"
	ErrAlreadyComplete    ErrorKind = "ALREADY_COMPLETE"
)

// Error is the single error type the core raises. It carries a Kind so
// callers can branch on failure category without parsing messages, and
// wraps the underlying cause so errors.Is/errors.As keep working.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an *Error of the given kind with a formatted message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds an *Error of the given kind wrapping cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// IsKind reports whether err is, or wraps, a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Output is the opaque value a step's Execute operation yields on success.
// Outputs vary in shape between steps, so it wraps the raw value and also
// keeps a JSON-encoded form around for the runtime-checked accessors used
// by downstream steps that only know the shape by convention.
type Output struct {
	value interface{}
	raw   []byte
}

// NewOutput wraps an arbitrary Go value as a step output. If the value is
// JSON-marshalable, the encoded form is retained for JSON-path access.
func NewOutput(value interface{}) Output {
	out := Output{value: value}
	if b, err := json.Marshal(value); err == nil {
		out.raw = b
	}
	return out
}

// NewStringOutput wraps a bare string, the common case for text-producing
// steps.
func NewStringOutput(s string) Output {
	return Output{value: s, raw: []byte(jsonQuote(s))}
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Value returns the underlying Go value as-is. Callers narrow the type
// themselves; this is the "downstream steps are responsible for narrowing"
// contract from the design notes.
func (o Output) Value() interface{} { return o.value }

// Raw returns the JSON-encoded form of the output, or nil if it could not
// be encoded.
func (o Output) Raw() []byte { return o.raw }

// String stringifies the output. Non-string values fall back to their
// JSON encoding.
func (o Output) String() string {
	if s, ok := o.value.(string); ok {
		return s
	}
	return string(o.raw)
}

// Int returns the output narrowed to an integer, reporting whether the
// narrowing succeeded.
func (o Output) Int() (int64, bool) {
	switch v := o.value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	if o.raw != nil {
		if r := gjson.ParseBytes(o.raw); r.Type == gjson.Number {
			return r.Int(), true
		}
	}
	return 0, false
}

// Bool returns the output narrowed to a boolean, reporting whether the
// narrowing succeeded.
func (o Output) Bool() (bool, bool) {
	if v, ok := o.value.(bool); ok {
		return v, true
	}
	if o.raw != nil {
		r := gjson.ParseBytes(o.raw)
		if r.Type == gjson.True || r.Type == gjson.False {
			return r.Bool(), true
		}
	}
	return false, false
}

// JSON looks up path inside the output's JSON form, for downstream steps
// that consume a structured output by convention without sharing the
// producer's Go type. The boolean reports whether the path exists.
func (o Output) JSON(path string) (gjson.Result, bool) {
	if o.raw == nil {
		return gjson.Result{}, false
	}
	r := gjson.GetBytes(o.raw, path)
	return r, r.Exists()
}

// IsZero reports whether this Output was never set (the absent case for
// failed/skipped steps).
func (o Output) IsZero() bool { return o.value == nil && o.raw == nil }

// OutputBuilder assembles a structured JSON output field by field, for
// steps whose result is a document rather than a bare value. The first
// failed Set sticks and is reported by Output.
type OutputBuilder struct {
	raw []byte
	err error
}

// NewOutputBuilder starts from an empty JSON object.
func NewOutputBuilder() *OutputBuilder {
	return &OutputBuilder{raw: []byte(`{}`)}
}

// Set writes value at path (sjson path syntax, e.g. "tokens.used").
func (b *OutputBuilder) Set(path string, value interface{}) *OutputBuilder {
	if b.err != nil {
		return b
	}
	raw, err := sjson.SetBytes(b.raw, path, value)
	if err != nil {
		b.err = err
		return b
	}
	b.raw = raw
	return b
}

// Output finalizes the document into an Output whose JSON accessors work
// against the built structure.
func (b *OutputBuilder) Output() (Output, error) {
	if b.err != nil {
		return Output{}, b.err
	}
	var value interface{}
	if err := json.Unmarshal(b.raw, &value); err != nil {
		return Output{}, err
	}
	return Output{value: value, raw: b.raw}, nil
}

// StepResult is the outcome of one step's full attempt cycle.
type StepResult struct {
	Status      StepStatus `json:"status"`
	Output      Output     `json:"-"`
	OutputJSON  []byte     `json:"output,omitempty"`
	Err         *Error     `json:"-"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	ErrorMsg    string     `json:"error_message,omitempty"`
	DurationMs  float64    `json:"duration_ms"`
	Attempts    int        `json:"attempts"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// freeze copies the live Output/Err fields into their serializable
// counterparts, called just before a StepResult is persisted.
func (r *StepResult) freeze() {
	r.OutputJSON = r.Output.Raw()
	if r.Err != nil {
		r.ErrorKind = r.Err.Kind
		r.ErrorMsg = r.Err.Error()
	}
}

// MarshalJSON freezes derived fields before delegating to the default
// struct encoding.
func (r StepResult) MarshalJSON() ([]byte, error) {
	r.freeze()
	type alias StepResult
	return json.Marshal(alias(r))
}

// UnmarshalJSON rebuilds the live Output and Err fields from their
// serialized forms, so a state loaded from a durable store still feeds
// completed outputs into resumed dispatches.
func (r *StepResult) UnmarshalJSON(b []byte) error {
	type alias StepResult
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*r = StepResult(a)
	if len(r.OutputJSON) > 0 {
		var value interface{}
		if err := json.Unmarshal(r.OutputJSON, &value); err == nil {
			r.Output = Output{value: value, raw: r.OutputJSON}
		}
	}
	if r.ErrorKind != "" && r.Err == nil {
		r.Err = NewError(r.ErrorKind, r.ErrorMsg)
	}
	return nil
}

// WorkflowState is the authoritative record for one workflow run.
type WorkflowState struct {
	WorkflowID  string                `json:"workflow_id"`
	Status      WorkflowStatus        `json:"status"`
	StepResults map[string]StepResult `json:"step_results"`
	StartTime   time.Time             `json:"start_time"`
	EndTime     *time.Time            `json:"end_time,omitempty"`
	InputData   map[string]interface{} `json:"input_data"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// NewWorkflowState creates a fresh, PENDING state ready to be handed to the
// executor.
func NewWorkflowState(workflowID string, input map[string]interface{}) *WorkflowState {
	return &WorkflowState{
		WorkflowID:  workflowID,
		Status:      WorkflowPending,
		StepResults: make(map[string]StepResult),
		InputData:   input,
		Metadata:    make(map[string]interface{}),
	}
}

// DurationMs is the derived total run duration, zero until EndTime is set.
func (s *WorkflowState) DurationMs() float64 {
	if s.EndTime == nil {
		return 0
	}
	return float64(s.EndTime.Sub(s.StartTime).Milliseconds())
}

// CompletedSteps returns the names of steps that reached StepCompleted.
func (s *WorkflowState) CompletedSteps() []string {
	var names []string
	for name, r := range s.StepResults {
		if r.Status == StepCompleted {
			names = append(names, name)
		}
	}
	return names
}

// FailedSteps returns the names of steps that reached StepFailed.
func (s *WorkflowState) FailedSteps() []string {
	var names []string
	for name, r := range s.StepResults {
		if r.Status == StepFailed {
			names = append(names, name)
		}
	}
	return names
}

// StepOutput returns the recorded output for a step, or the zero Output if
// the step never completed successfully.
func (s *WorkflowState) StepOutput(name string) Output {
	r, ok := s.StepResults[name]
	if !ok || r.Status != StepCompleted {
		return Output{}
	}
	return r.Output
}

// ExecutionContext is the read-only view delivered to a step at dispatch
// time: the immutable workflow input plus the outputs of steps that had
// already reached StepCompleted before this wave was assembled.
type ExecutionContext struct {
	InputData   map[string]interface{}
	StepOutputs map[string]Output
}

// ProgressEvent is one lifecycle record the executor emits when a progress
// sink is attached.
type ProgressEvent struct {
	WorkflowID string                 `json:"workflow_id"`
	EventType  string                 `json:"event_type"`
	StepName   string                 `json:"step_name,omitempty"`
	StepStatus StepStatus             `json:"step_status,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

const (
	EventStepStart        = "step_start"
	EventStepComplete     = "step_complete"
	EventWorkflowComplete = "workflow_complete"
	EventWorkflowFailed   = "workflow_failed"
)
