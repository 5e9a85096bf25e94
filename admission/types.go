// Package admission guards the predictor with CEL rules evaluated against the
// raw car description. An input is admitted only when every active rule
// evaluates to true.
package admission

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Rule is a named CEL expression over the variable car
type Rule struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EvaluationResult is the outcome of one rule against one input
type EvaluationResult struct {
	RuleID   string
	RuleName string
	Passed   bool
	Error    error
	Trace    any
}

// Violation describes a rule that did not admit an input
type Violation struct {
	RuleID     string `json:"ruleId"`
	RuleName   string `json:"ruleName"`
	Expression string `json:"expression"`
	Error      string `json:"error,omitempty"`
}

func (v Violation) String() string {
	if v.Error != "" {
		return fmt.Sprintf("%s (%s): %s", v.RuleName, v.RuleID, v.Error)
	}
	return fmt.Sprintf("%s (%s)", v.RuleName, v.RuleID)
}

// Decision is the result of checking all active rules
type Decision struct {
	Admitted   bool        `json:"admitted"`
	Violations []Violation `json:"violations,omitempty"`
	Evaluated  int         `json:"evaluated"`
}

// Err returns a RejectedError when the input was not admitted
func (d *Decision) Err() error {
	if d.Admitted {
		return nil
	}
	return &RejectedError{Violations: d.Violations}
}

var (
	// ErrRejected is matched by every RejectedError
	ErrRejected = errors.New("input rejected by admission rules")

	// ErrRuleNotFound is returned for unknown rule ids
	ErrRuleNotFound = errors.New("rule not found")

	// ErrRuleExists is returned when adding a duplicate rule id
	ErrRuleExists = errors.New("rule already exists")
)

// RejectedError lists the rules an input failed
type RejectedError struct {
	Violations []Violation
}

func (e *RejectedError) Error() string {
	names := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		names[i] = v.String()
	}
	return "input rejected by admission rules: " + strings.Join(names, "; ")
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
