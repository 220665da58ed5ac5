package harness

import (
	"github.com/roach88/provguard/internal/snapshot"
)

// Snapshot returns the report in comparable form for canonical encoding.
// Probe error text is reduced to its kind because messages can embed
// absolute paths that differ between checkouts.
func (r *Report) Snapshot() map[string]any {
	results := make([]any, len(r.Results))
	for i, res := range r.Results {
		results[i] = res.snapshot()
	}

	trace := make([]any, len(r.Trace))
	for i, ev := range r.Trace {
		m := map[string]any{
			"seq":   ev.Seq,
			"state": string(ev.State),
		}
		if ev.Case != "" {
			m["case"] = ev.Case
		}
		trace[i] = m
	}

	out := map[string]any{
		"suite":   r.Suite,
		"pass":    r.Pass,
		"aborted": r.Aborted,
		"results": results,
		"trace":   trace,
	}
	if r.Fatal != "" {
		out["fatal"] = r.Fatal
	}
	return out
}

func (r *TestResult) snapshot() map[string]any {
	violations := make([]any, len(r.Violations))
	for i, v := range r.Violations {
		violations[i] = map[string]any{
			"kind":    string(v.Kind),
			"pattern": v.Pattern,
		}
	}

	out := map[string]any{
		"case": r.Case,
		"artifact": map[string]any{
			"kind":    string(r.Artifact.Kind),
			"locator": append([]string{}, r.Artifact.Locator...),
		},
		"pass":       r.Pass,
		"state":      string(r.State),
		"violations": violations,
	}
	if r.ErrorKind != "" {
		out["error_kind"] = r.ErrorKind
	}
	return out
}

// Digest returns a stable hash of the report snapshot. Two runs with equal
// digests had identical outcomes, violation sets and lifecycle traces.
func (r *Report) Digest() (string, error) {
	return snapshot.Digest(r.Snapshot())
}

// CanonicalJSON returns the canonical encoding of the report snapshot.
func (r *Report) CanonicalJSON() ([]byte, error) {
	return snapshot.Marshal(r.Snapshot())
}
