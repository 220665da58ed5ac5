package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/provguard/internal/harness"
)

// Difference is one outcome that changed between two runs.
type Difference struct {
	Case     string `json:"case,omitempty"` // empty for run-level fields
	Field    string `json:"field"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

func (d Difference) String() string {
	if d.Case == "" {
		return fmt.Sprintf("%s: %s -> %s", d.Field, d.Previous, d.Current)
	}
	return fmt.Sprintf("%s: %s: %s -> %s", d.Case, d.Field, d.Previous, d.Current)
}

// Compare returns the outcome differences between prev and cur: overall
// pass and abort flags, and per case evaluation, pass flag, probe error
// kind and violation list. Trace sequence numbers and wall-clock fields are
// not compared. An empty result means the runs were equivalent.
func Compare(prev, cur Run) []Difference {
	diffs := []Difference{}
	add := func(name, field, a, b string) {
		if a != b {
			diffs = append(diffs, Difference{Case: name, Field: field, Previous: a, Current: b})
		}
	}

	add("", "pass", strconv.FormatBool(prev.Pass), strconv.FormatBool(cur.Pass))
	add("", "aborted", strconv.FormatBool(prev.Aborted), strconv.FormatBool(cur.Aborted))

	before := make(map[string]CaseRecord, len(prev.Cases))
	for _, c := range prev.Cases {
		before[c.Case] = c
	}
	seen := make(map[string]bool, len(cur.Cases))

	for _, c := range cur.Cases {
		seen[c.Case] = true
		p, ok := before[c.Case]
		if !ok {
			add(c.Case, "evaluated", "false", "true")
			continue
		}
		add(c.Case, "pass", strconv.FormatBool(p.Pass), strconv.FormatBool(c.Pass))
		add(c.Case, "error_kind", orNone(p.ErrorKind), orNone(c.ErrorKind))
		add(c.Case, "violations", formatViolations(p.Violations), formatViolations(c.Violations))
	}
	for _, p := range prev.Cases {
		if !seen[p.Case] {
			add(p.Case, "evaluated", "true", "false")
		}
	}
	return diffs
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func formatViolations(vs []harness.Violation) string {
	if len(vs) == 0 {
		return "[]"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%s %q", v.Kind, v.Pattern)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
