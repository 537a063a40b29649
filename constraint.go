package hayai

import "regexp"

// ConstraintKind identifies one validation rule.
type ConstraintKind string

// Supported constraint kinds.
const (
	ConstraintRequired  ConstraintKind = "required"
	ConstraintMinLength ConstraintKind = "min_length"
	ConstraintMaxLength ConstraintKind = "max_length"
	ConstraintPattern   ConstraintKind = "pattern"
	ConstraintEmail     ConstraintKind = "email"
	ConstraintMin       ConstraintKind = "min"
	ConstraintMax       ConstraintKind = "max"
)

// Constraint is one declarative validation rule attached to a schema field or
// parameter. Constraints are pure data; the ValidationPipeline interprets
// them uniformly however the route was declared.
type Constraint struct {
	Kind    ConstraintKind `json:"kind" yaml:"kind"`
	Length  int            `json:"length,omitempty" yaml:"length,omitempty"`
	Bound   float64        `json:"bound,omitempty" yaml:"bound,omitempty"`
	Pattern string         `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	re *regexp.Regexp
}

// Required marks a field as mandatory. Attaching it to an object field adds
// the field to the object's required set.
func Required() Constraint {
	return Constraint{Kind: ConstraintRequired}
}

// MinLength requires a string of at least n characters.
func MinLength(n int) Constraint {
	return Constraint{Kind: ConstraintMinLength, Length: n}
}

// MaxLength requires a string of at most n characters.
func MaxLength(n int) Constraint {
	return Constraint{Kind: ConstraintMaxLength, Length: n}
}

// Email requires a syntactically valid email address.
func Email() Constraint {
	return Constraint{Kind: ConstraintEmail}
}

// Min requires a numeric value of at least bound.
func Min(bound float64) Constraint {
	return Constraint{Kind: ConstraintMin, Bound: bound}
}

// Max requires a numeric value of at most bound.
func Max(bound float64) Constraint {
	return Constraint{Kind: ConstraintMax, Bound: bound}
}

// Pattern requires a string matching the given regular expression.
// The expression is compiled at declaration time; an invalid expression is a
// programming error and panics during build, never at request time.
func Pattern(expr string) Constraint {
	return Constraint{Kind: ConstraintPattern, Pattern: expr, re: regexp.MustCompile(expr)}
}

// matcher returns the compiled expression, compiling lazily for constraints
// reconstructed from serialized form.
func (c *Constraint) matcher() *regexp.Regexp {
	if c.re == nil && c.Pattern != "" {
		c.re = regexp.MustCompile(c.Pattern)
	}
	return c.re
}
