package record

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned by ParsePath for malformed property paths.
var ErrInvalidPath = errors.New("record: invalid property path")

// Step is a single, optionally prefixed, step of a property path.
// Attribute steps ("@gml:id") have Attribute set.
type Step struct {
	Prefix    string
	Local     string
	Attribute bool
}

// String renders the step in its qualified form.
func (s Step) String() string {
	var b strings.Builder
	if s.Attribute {
		b.WriteByte('@')
	}
	if s.Prefix != "" {
		b.WriteString(s.Prefix)
		b.WriteByte(':')
	}
	b.WriteString(s.Local)
	return b.String()
}

// Path is a namespace-aware property path such as "app:Road/app:name".
// Paths are immutable values; use Equal to compare them.
type Path struct {
	steps []Step
}

// ParsePath parses a slash separated path expression. A leading slash and
// surrounding whitespace are ignored.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Path{}, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	parts := strings.Split(s, "/")
	steps := make([]Step, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		var step Step
		if strings.HasPrefix(part, "@") {
			step.Attribute = true
			part = part[1:]
		}
		if prefix, local, ok := strings.Cut(part, ":"); ok {
			step.Prefix, step.Local = prefix, local
		} else {
			step.Local = part
		}
		if step.Local == "" || strings.ContainsAny(step.Local, " \t\n:") || strings.ContainsAny(step.Prefix, " \t\n") {
			return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		steps = append(steps, step)
	}
	return Path{steps: steps}, nil
}

// MustParsePath is like ParsePath but panics on error. Intended for tests
// and package level variables.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPath builds a path from steps.
func NewPath(steps ...Step) Path {
	return Path{steps: append([]Step(nil), steps...)}
}

// Steps returns a copy of the path steps.
func (p Path) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// Len returns the number of steps.
func (p Path) Len() int { return len(p.steps) }

// IsZero reports whether p has no steps.
func (p Path) IsZero() bool { return len(p.steps) == 0 }

// Last returns the final step of the path.
func (p Path) Last() Step {
	if len(p.steps) == 0 {
		return Step{}
	}
	return p.steps[len(p.steps)-1]
}

// Local returns the unprefixed name of the final step.
func (p Path) Local() string { return p.Last().Local }

// String renders the path in its textual form.
func (p Path) String() string {
	parts := make([]string, len(p.steps))
	for i, s := range p.steps {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// Equal reports whether both paths have the same steps.
func (p Path) Equal(o Path) bool {
	if len(p.steps) != len(o.steps) {
		return false
	}
	for i := range p.steps {
		if p.steps[i] != o.steps[i] {
			return false
		}
	}
	return true
}
