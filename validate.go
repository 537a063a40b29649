package hayai

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one validation failure for one field.
type FieldError struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ValidationPipeline applies declared constraints to decoded input. Unlike
// fail-fast validators it is exhaustive: every field and every constraint is
// visited, and the complete failure list is returned in one call so the
// caller can report all problems in a single response.
type ValidationPipeline struct {
	registry *SchemaRegistry
	check    *validator.Validate
}

// NewValidationPipeline creates a pipeline over the given registry.
func NewValidationPipeline(registry *SchemaRegistry) *ValidationPipeline {
	return &ValidationPipeline{
		registry: registry,
		check:    validator.New(),
	}
}

// Validate walks a decoded value against the schema node, accumulating every
// failure. An empty result means the value is valid.
func (p *ValidationPipeline) Validate(value any, node *SchemaNode) []FieldError {
	var errs []FieldError
	p.walk("", value, node, &errs)
	return errs
}

// ValidateParam coerces a textual parameter value and applies the spec's
// constraints, appending failures to errs. The coerced value is returned for
// handler consumption; a coercion failure returns the raw string.
func (p *ValidationPipeline) ValidateParam(spec ParamSpec, raw string, errs *[]FieldError) any {
	coerced, err := coerceScalar(raw, spec.Scalar)
	if err != nil {
		*errs = append(*errs, FieldError{
			Field:   spec.Name,
			Kind:    "type",
			Message: fmt.Sprintf("must be a valid %s", spec.Scalar),
		})
		return raw
	}
	p.applyConstraints(spec.Name, coerced, spec.Constraints, errs)
	return coerced
}

func (p *ValidationPipeline) walk(path string, value any, node *SchemaNode, errs *[]FieldError) {
	switch node.Kind {
	case KindReference:
		resolved, err := p.registry.Resolve(node.Ref)
		if err != nil {
			// Should not happen while serving; registration is a build-time step.
			*errs = append(*errs, FieldError{
				Field:   path,
				Kind:    "unknown_type",
				Message: err.Error(),
			})
			return
		}
		p.walk(path, value, resolved, errs)

	case KindObject:
		if node.AdditionalProps {
			return
		}
		obj, ok := asObject(value)
		if !ok {
			*errs = append(*errs, FieldError{
				Field:   path,
				Kind:    "type",
				Message: "must be an object",
			})
			return
		}
		for _, required := range node.Required {
			if v, present := obj[required]; !present || v == nil {
				*errs = append(*errs, FieldError{
					Field:   joinFieldPath(path, required),
					Kind:    string(ConstraintRequired),
					Message: "is required",
				})
			}
		}
		for name, field := range node.Fields {
			v, present := obj[name]
			if !present || v == nil {
				continue
			}
			p.walk(joinFieldPath(path, name), v, field, errs)
		}

	case KindArray:
		items, ok := asArray(value)
		if !ok {
			*errs = append(*errs, FieldError{
				Field:   path,
				Kind:    "type",
				Message: "must be an array",
			})
			return
		}
		for i, item := range items {
			if item == nil {
				continue
			}
			p.walk(fmt.Sprintf("%s[%d]", path, i), item, node.Elem, errs)
		}

	case KindScalar:
		coerced, err := coerceScalar(value, node.Scalar)
		if err != nil {
			*errs = append(*errs, FieldError{
				Field:   path,
				Kind:    "type",
				Message: fmt.Sprintf("must be a valid %s", node.Scalar),
			})
			return
		}
		p.applyConstraints(path, coerced, node.Constraints, errs)
	}
}

// applyConstraints evaluates every constraint against the coerced value,
// never stopping at the first failure. Length, email and numeric bounds are
// delegated to the validator library; pattern uses the compiled expression.
func (p *ValidationPipeline) applyConstraints(path string, value any, constraints []Constraint, errs *[]FieldError) {
	for i := range constraints {
		c := &constraints[i]
		switch c.Kind {
		case ConstraintRequired:
			// Presence is checked by the object walk.

		case ConstraintMinLength:
			if s, ok := value.(string); ok {
				if err := p.check.Var(s, fmt.Sprintf("min=%d", c.Length)); err != nil {
					*errs = append(*errs, FieldError{
						Field:   path,
						Kind:    string(c.Kind),
						Message: fmt.Sprintf("must be at least %d characters", c.Length),
					})
				}
			}

		case ConstraintMaxLength:
			if s, ok := value.(string); ok {
				if err := p.check.Var(s, fmt.Sprintf("max=%d", c.Length)); err != nil {
					*errs = append(*errs, FieldError{
						Field:   path,
						Kind:    string(c.Kind),
						Message: fmt.Sprintf("must be at most %d characters", c.Length),
					})
				}
			}

		case ConstraintEmail:
			if s, ok := value.(string); ok {
				if err := p.check.Var(s, "email"); err != nil {
					*errs = append(*errs, FieldError{
						Field:   path,
						Kind:    string(c.Kind),
						Message: "must be a valid email address",
					})
				}
			}

		case ConstraintPattern:
			if s, ok := value.(string); ok {
				if re := c.matcher(); re != nil && !re.MatchString(s) {
					*errs = append(*errs, FieldError{
						Field:   path,
						Kind:    string(c.Kind),
						Message: fmt.Sprintf("must match pattern %q", c.Pattern),
					})
				}
			}

		case ConstraintMin:
			if n, ok := asNumber(value); ok {
				if err := p.check.Var(n, fmt.Sprintf("min=%v", c.Bound)); err != nil {
					*errs = append(*errs, FieldError{
						Field:   path,
						Kind:    string(c.Kind),
						Message: fmt.Sprintf("must be at least %v", c.Bound),
					})
				}
			}

		case ConstraintMax:
			if n, ok := asNumber(value); ok {
				if err := p.check.Var(n, fmt.Sprintf("max=%v", c.Bound)); err != nil {
					*errs = append(*errs, FieldError{
						Field:   path,
						Kind:    string(c.Kind),
						Message: fmt.Sprintf("must be at most %v", c.Bound),
					})
				}
			}
		}
	}
}

// coerceScalar converts a decoded value into the declared scalar kind.
// Textual input (path and query parameters) is parsed; JSON numbers arrive
// as float64 and msgpack numbers as sized integers, both are accepted.
func coerceScalar(value any, kind ScalarKind) (any, error) {
	switch kind {
	case ScalarString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to string", value)

	case ScalarInteger:
		switch v := value.(type) {
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot coerce %q to integer", v)
			}
			return n, nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("cannot coerce %v to integer", v)
			}
			return int64(v), nil
		case float32:
			if float64(v) != math.Trunc(float64(v)) {
				return nil, fmt.Errorf("cannot coerce %v to integer", v)
			}
			return int64(v), nil
		case int:
			return int64(v), nil
		case int8:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint8:
			return int64(v), nil
		case uint16:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case uint64:
			return int64(v), nil
		default:
			return nil, fmt.Errorf("cannot coerce %T to integer", value)
		}

	case ScalarNumber:
		switch v := value.(type) {
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot coerce %q to number", v)
			}
			return f, nil
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case uint64:
			return float64(v), nil
		default:
			return nil, fmt.Errorf("cannot coerce %T to number", value)
		}

	case ScalarBoolean:
		switch v := value.(type) {
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("cannot coerce %q to boolean", v)
			}
			return b, nil
		case bool:
			return v, nil
		default:
			return nil, fmt.Errorf("cannot coerce %T to boolean", value)
		}
	}

	return value, nil
}

// asObject normalizes decoded object representations. JSON decodes objects to
// map[string]any; msgpack may decode to map[any]any.
func asObject(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		obj := make(map[string]any, len(v))
		for k, item := range v {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			obj[key] = item
		}
		return obj, true
	default:
		return nil, false
	}
}

func asArray(value any) ([]any, bool) {
	items, ok := value.([]any)
	return items, ok
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case bool:
		return 0, false
	default:
		return 0, false
	}
}

func joinFieldPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
