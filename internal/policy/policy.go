package policy

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Class classifies a pattern as required or forbidden.
type Class int

const (
	Required Class = iota
	Forbidden
)

// String returns the set name used in configuration files.
func (c Class) String() string {
	switch c {
	case Required:
		return "required"
	case Forbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// ParseClass maps a set name from configuration back to a Class.
func ParseClass(s string) (Class, error) {
	switch s {
	case "required":
		return Required, nil
	case "forbidden":
		return Forbidden, nil
	default:
		return 0, fmt.Errorf("unknown pattern set %q: must be required or forbidden", s)
	}
}

// Pattern is a literal text fragment plus its classification.
type Pattern struct {
	Text  string
	Class Class
}

// Policy holds the required and forbidden pattern sets.
// The zero value is not usable; construct with New, Default or a loader.
type Policy struct {
	required  []string
	forbidden []string
}

// New validates both sets and returns an immutable Policy.
// The input slices are copied.
func New(required, forbidden []string) (*Policy, error) {
	if err := validateSet(Required, required); err != nil {
		return nil, err
	}
	if err := validateSet(Forbidden, forbidden); err != nil {
		return nil, err
	}

	req := make(map[string]bool, len(required))
	for _, p := range required {
		req[p] = true
	}
	for i, p := range forbidden {
		if req[p] {
			return nil, &ConfigError{
				Field:   fmt.Sprintf("forbidden[%d]", i),
				Message: fmt.Sprintf("pattern %q is both required and forbidden", p),
			}
		}
	}

	return &Policy{
		required:  append([]string(nil), required...),
		forbidden: append([]string(nil), forbidden...),
	}, nil
}

// Default returns the release policy for the clang-cgc toolchain.
func Default() *Policy {
	return &Policy{
		required:  []string{"clang-cgc"},
		forbidden: []string{"svn/svn", "infrastructure", "(tags/"},
	}
}

// Required returns a copy of the required set, in declared order.
func (p *Policy) Required() []string {
	return append([]string(nil), p.required...)
}

// Forbidden returns a copy of the forbidden set, in declared order.
func (p *Policy) Forbidden() []string {
	return append([]string(nil), p.forbidden...)
}

// Patterns returns every pattern: required ones first, then forbidden ones.
func (p *Policy) Patterns() []Pattern {
	return p.Select(Required, Forbidden)
}

// Select returns the patterns of the given sets, always in canonical order
// (required before forbidden, declared order within a set). Duplicate
// classes are ignored.
func (p *Policy) Select(classes ...Class) []Pattern {
	want := make(map[Class]bool, len(classes))
	for _, c := range classes {
		want[c] = true
	}

	var out []Pattern
	if want[Required] {
		for _, t := range p.required {
			out = append(out, Pattern{Text: t, Class: Required})
		}
	}
	if want[Forbidden] {
		for _, t := range p.forbidden {
			out = append(out, Pattern{Text: t, Class: Forbidden})
		}
	}
	return out
}

func validateSet(class Class, set []string) error {
	if len(set) == 0 {
		return &ConfigError{Field: class.String(), Message: "pattern set is empty"}
	}

	seen := make(map[string]int, len(set))
	for i, p := range set {
		field := fmt.Sprintf("%s[%d]", class, i)
		if err := validatePattern(p); err != nil {
			return &ConfigError{Field: field, Message: err.Error()}
		}
		if first, ok := seen[p]; ok {
			return &ConfigError{
				Field:   field,
				Message: fmt.Sprintf("duplicate pattern %q (first at index %d)", p, first),
			}
		}
		seen[p] = i
	}
	return nil
}

func validatePattern(p string) error {
	switch {
	case strings.TrimSpace(p) == "":
		return fmt.Errorf("pattern is empty")
	case !utf8.ValidString(p):
		return fmt.Errorf("pattern %q is not valid UTF-8", p)
	case strings.ContainsRune(p, 0):
		return fmt.Errorf("pattern %q contains a NUL byte", p)
	case !norm.NFC.IsNormalString(p):
		// Matching is byte-literal; a decomposed pattern would never match
		// the composed form the toolchain emits.
		return fmt.Errorf("pattern %q is not NFC-normalized", p)
	}
	return nil
}
