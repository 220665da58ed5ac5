package harness

import (
	"errors"
	"strings"

	"github.com/roach88/provguard/internal/policy"
	"github.com/roach88/provguard/internal/probe"
)

// Evaluate checks content against every pattern of p.
func Evaluate(content string, p *policy.Policy) *TestResult {
	return EvaluatePatterns(content, p.Patterns())
}

// EvaluatePatterns checks content against patterns and returns an unnamed
// result in the asserted state.
//
// Matching is literal, case-sensitive substring containment over the whole
// content; nothing is normalized or decoded first. Violations follow the
// order of patterns.
func EvaluatePatterns(content string, patterns []policy.Pattern) *TestResult {
	result := NewResult(TestCase{})
	for _, pat := range patterns {
		found := strings.Contains(content, pat.Text)
		switch {
		case pat.Class == policy.Required && !found:
			result.AddViolation(Violation{Kind: MissingRequired, Pattern: pat.Text})
		case pat.Class == policy.Forbidden && found:
			result.AddViolation(Violation{Kind: LeakedProvenance, Pattern: pat.Text})
		}
	}
	result.State = StateAsserted
	return result
}

func errorKind(err error) string {
	var procErr *probe.ProcessError
	var accessErr *probe.AccessError
	switch {
	case errors.As(err, &procErr):
		return "process"
	case errors.As(err, &accessErr):
		return "access"
	default:
		return "other"
	}
}
