// Package step defines the contract a unit of work must satisfy to be
// scheduled by the executor, plus the default retryable-error classifier
// and the built-in condition constructors.
package step

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/corework/dagflow/wftypes"
)

// Condition is a predicate evaluated against the execution context just
// before a step would be dispatched. A false result settles the step as
// SKIPPED without invoking Execute.
type Condition func(wftypes.ExecutionContext) bool

// RetryClassifier decides whether another attempt is warranted for a given
// error. It is consulted only when the step's max attempts have not yet
// been exhausted and the failure was not a TIMEOUT (TIMEOUT always retries
// per the lifecycle rules in the executor).
type RetryClassifier func(error) bool

// Step is the abstract unit of work the executor schedules. Implementations
// are typically built with New (a struct-of-fields helper) rather than a
// hand-rolled type, though any type satisfying this interface works.
type Step interface {
	Name() string
	DependsOn() []string
	Timeout() time.Duration
	MaxAttempts() int
	Condition() Condition
	Execute(ctx context.Context, ec wftypes.ExecutionContext) (wftypes.Output, error)
	IsRetryable(err error) bool
}

// FuncStep is a record-of-function-values implementation of Step: the
// lightest-weight way to describe a step without defining a named type.
type FuncStep struct {
	StepName     string
	Dependencies []string
	StepTimeout  time.Duration
	Attempts     int
	When         Condition
	Run          func(ctx context.Context, ec wftypes.ExecutionContext) (wftypes.Output, error)
	Retryable    RetryClassifier
}

// New builds a FuncStep with defaults for fields left unset: MaxAttempts
// of 1, a 30s timeout, and the default retry classifier.
func New(name string, run func(context.Context, wftypes.ExecutionContext) (wftypes.Output, error), opts ...Option) *FuncStep {
	s := &FuncStep{
		StepName:    name,
		StepTimeout: 30 * time.Second,
		Attempts:    1,
		Run:         run,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a FuncStep built via New.
type Option func(*FuncStep)

func DependsOn(names ...string) Option {
	return func(s *FuncStep) { s.Dependencies = append(s.Dependencies, names...) }
}

func Timeout(d time.Duration) Option {
	return func(s *FuncStep) { s.StepTimeout = d }
}

func MaxAttempts(n int) Option {
	return func(s *FuncStep) { s.Attempts = n }
}

func When(c Condition) Option {
	return func(s *FuncStep) { s.When = c }
}

func RetryableWith(c RetryClassifier) Option {
	return func(s *FuncStep) { s.Retryable = c }
}

func (s *FuncStep) Name() string           { return s.StepName }
func (s *FuncStep) DependsOn() []string    { return s.Dependencies }
func (s *FuncStep) Timeout() time.Duration { return s.StepTimeout }
func (s *FuncStep) MaxAttempts() int {
	if s.Attempts <= 0 {
		return 1
	}
	return s.Attempts
}
func (s *FuncStep) Condition() Condition { return s.When }

func (s *FuncStep) Execute(ctx context.Context, ec wftypes.ExecutionContext) (wftypes.Output, error) {
	return s.Run(ctx, ec)
}

func (s *FuncStep) IsRetryable(err error) bool {
	if s.Retryable != nil {
		return s.Retryable(err)
	}
	return DefaultRetryClassifier(err)
}

// nonRetryablePatterns is checked before retryablePatterns; anything
// matching neither list is treated as non-retryable.
var nonRetryablePatterns = []string{
	"authentication", "permission", "not found", "invalid",
	"400", "401", "403", "404",
}

var retryablePatterns = []string{
	"timeout", "connection", "rate limit",
	"429", "500", "502", "503", "504",
	"temporary", "transient",
}

// DefaultRetryClassifier decides retryability by case-insensitive
// substring match on the error message, non-retryable patterns checked
// first.
func DefaultRetryClassifier(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range nonRetryablePatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ValidateDependencies fails with MISSING_DEPENDENCY if any declared
// dependency of s is absent from the execution context's step outputs.
func ValidateDependencies(s Step, ec wftypes.ExecutionContext) error {
	for _, dep := range s.DependsOn() {
		if _, ok := ec.StepOutputs[dep]; !ok {
			return wftypes.NewError(wftypes.ErrMissingDependency,
				"step '"+s.Name()+"' depends on '"+dep+"' which is not available")
		}
	}
	return nil
}

// GetDependencyOutput returns the output of a dependency, or fails with
// MISSING_DEPENDENCY (e.g. the dependency was SKIPPED and contributed
// nothing).
func GetDependencyOutput(ec wftypes.ExecutionContext, name string) (wftypes.Output, error) {
	out, ok := ec.StepOutputs[name]
	if !ok {
		return wftypes.Output{}, wftypes.NewError(wftypes.ErrMissingDependency,
			"step '"+name+"' output not found in context")
	}
	return out, nil
}

// MinOutputWords returns a Condition that is true iff the named step's
// output exists, stringifies non-empty, and contains at least n
// whitespace-separated tokens.
func MinOutputWords(stepName string, n int) Condition {
	return func(ec wftypes.ExecutionContext) bool {
		out, ok := ec.StepOutputs[stepName]
		if !ok {
			return false
		}
		s := strings.TrimSpace(out.String())
		if s == "" {
			return false
		}
		return len(strings.Fields(s)) >= n
	}
}

// OutputPresent is a trivial presence-check condition constructor, a
// composition primitive invited by the design notes.
func OutputPresent(stepName string) Condition {
	return func(ec wftypes.ExecutionContext) bool {
		_, ok := ec.StepOutputs[stepName]
		return ok
	}
}

// All composes conditions with logical AND; an empty condition list is
// vacuously true.
func All(conditions ...Condition) Condition {
	return func(ec wftypes.ExecutionContext) bool {
		for _, c := range conditions {
			if c != nil && !c(ec) {
				return false
			}
		}
		return true
	}
}

// HTTPStatusFromMessage is a small helper used by example step
// implementations to fold an HTTP status code into the message matched by
// DefaultRetryClassifier, e.g. HTTPStatusFromMessage(503) -> "503".
func HTTPStatusFromMessage(code int) string {
	return strconv.Itoa(code)
}
