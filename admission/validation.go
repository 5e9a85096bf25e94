package admission

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxNameLength       = 100
	maxExpressionLength = 4096
)

var ruleIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,99}$`)

// ValidateRule checks the shape of a rule before it is compiled
func ValidateRule(r *Rule) error {
	if r == nil {
		return fmt.Errorf("rule is required")
	}

	if !ruleIDPattern.MatchString(r.ID) {
		return fmt.Errorf("invalid rule id %q: must match %s", r.ID, ruleIDPattern.String())
	}

	if r.Name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if len(r.Name) > maxNameLength {
		return fmt.Errorf("rule name length %d exceeds maximum of %d characters", len(r.Name), maxNameLength)
	}
	if strings.TrimSpace(r.Name) != r.Name {
		return fmt.Errorf("rule name has leading/trailing whitespace: %q", r.Name)
	}

	if strings.TrimSpace(r.Expression) == "" {
		return fmt.Errorf("rule expression cannot be empty")
	}
	if len(r.Expression) > maxExpressionLength {
		return fmt.Errorf("rule expression length %d exceeds maximum of %d characters", len(r.Expression), maxExpressionLength)
	}

	return nil
}
