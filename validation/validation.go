// Package validation checks a workflow submission before it reaches the
// executor, the way the rest of the pack validates inbound requests with
// github.com/go-playground/validator/v10 rather than hand-rolled field
// checks.
package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var v = validator.New()

// Submission is the shape a caller hands to a CLI or service front end
// before steps are built: just enough to validate before any step's
// Execute is ever invoked.
type Submission struct {
	WorkflowID string                 `validate:"required,min=1,max=128"`
	Input      map[string]interface{} `validate:"required"`
	MaxRetries int                    `validate:"gte=1,lte=10"`
	TimeoutSec int                    `validate:"gte=1,lte=3600"`
}

// ValidateSubmission runs struct-tag validation over s and returns a
// single formatted error naming every failing field.
func ValidateSubmission(s Submission) error {
	if err := v.Struct(s); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		msg := "invalid submission:"
		for _, fe := range verrs {
			msg += fmt.Sprintf(" %s failed on '%s'", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}
