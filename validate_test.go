package hayai

import (
	"testing"
)

type signupInput struct {
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Age     int          `json:"age,omitempty"`
	Address *addressPart `json:"address,omitempty"`
	Aliases []string     `json:"aliases,omitempty"`
}

type addressPart struct {
	City string `json:"city"`
	Zip  string `json:"zip,omitempty"`
}

func newSignupPipeline(t *testing.T) (*ValidationPipeline, *SchemaNode) {
	t.Helper()
	registry := NewSchemaRegistry()

	if _, err := RegisterModel[addressPart](registry); err != nil {
		t.Fatalf("register addressPart: %v", err)
	}
	desc, err := RegisterModel[signupInput](registry)
	if err != nil {
		t.Fatalf("register signupInput: %v", err)
	}

	if err := registry.Constrain(desc, "name", MinLength(3), MaxLength(32)); err != nil {
		t.Fatalf("constrain name: %v", err)
	}
	if err := registry.Constrain(desc, "email", Email()); err != nil {
		t.Fatalf("constrain email: %v", err)
	}
	if err := registry.Constrain(desc, "age", Min(0), Max(150)); err != nil {
		t.Fatalf("constrain age: %v", err)
	}

	addrDesc, _ := registry.Descriptor("addressPart")
	if err := registry.Constrain(addrDesc, "zip", Pattern(`^\d{5}$`)); err != nil {
		t.Fatalf("constrain zip: %v", err)
	}

	node, err := registry.Resolve(desc)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return NewValidationPipeline(registry), node
}

func TestValidateAccepts(t *testing.T) {
	pipeline, node := newSignupPipeline(t)

	input := map[string]any{
		"name":  "alice",
		"email": "alice@example.com",
		"age":   float64(30),
		"address": map[string]any{
			"city": "Kyoto",
			"zip":  "60601",
		},
		"aliases": []any{"al", "ali"},
	}

	if errs := pipeline.Validate(input, node); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateAccumulatesAllErrors(t *testing.T) {
	pipeline, node := newSignupPipeline(t)

	// Missing required email, too-short name, negative age and a bad nested
	// zip must all surface in one call.
	input := map[string]any{
		"name": "ab",
		"age":  float64(-1),
		"address": map[string]any{
			"city": "Kyoto",
			"zip":  "6",
		},
	}

	errs := pipeline.Validate(input, node)
	if len(errs) != 4 {
		t.Fatalf("expected 4 errors, got %d: %v", len(errs), errs)
	}

	byField := map[string]FieldError{}
	for _, e := range errs {
		byField[e.Field] = e
	}

	if e, ok := byField["email"]; !ok || e.Kind != string(ConstraintRequired) {
		t.Errorf("expected required error for email, got %+v", byField["email"])
	}
	if e, ok := byField["name"]; !ok || e.Kind != string(ConstraintMinLength) {
		t.Errorf("expected min_length error for name, got %+v", byField["name"])
	}
	if e, ok := byField["age"]; !ok || e.Kind != string(ConstraintMin) {
		t.Errorf("expected min error for age, got %+v", byField["age"])
	}
	if e, ok := byField["address.zip"]; !ok || e.Kind != string(ConstraintPattern) {
		t.Errorf("expected pattern error for address.zip, got %+v", byField["address.zip"])
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	pipeline, node := newSignupPipeline(t)

	input := map[string]any{
		"name":  "alice",
		"email": "alice@example.com",
		"age":   "thirty",
	}

	errs := pipeline.Validate(input, node)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != "age" || errs[0].Kind != "type" {
		t.Errorf("expected type error for age, got %+v", errs[0])
	}
}

func TestValidateIntegralFloatCoerces(t *testing.T) {
	pipeline, node := newSignupPipeline(t)

	// JSON decodes every number to float64; an integral value is accepted for
	// an integer field, a fractional one is not.
	valid := map[string]any{"name": "alice", "email": "a@b.co", "age": float64(42)}
	if errs := pipeline.Validate(valid, node); len(errs) != 0 {
		t.Fatalf("expected integral float to coerce, got %v", errs)
	}

	invalid := map[string]any{"name": "alice", "email": "a@b.co", "age": 42.5}
	errs := pipeline.Validate(invalid, node)
	if len(errs) != 1 || errs[0].Kind != "type" {
		t.Fatalf("expected type error for fractional age, got %v", errs)
	}
}

func TestValidateArrayIndexPaths(t *testing.T) {
	pipeline, node := newSignupPipeline(t)

	input := map[string]any{
		"name":    "alice",
		"email":   "a@b.co",
		"aliases": []any{"ok", float64(7)},
	}

	errs := pipeline.Validate(input, node)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if errs[0].Field != "aliases[1]" {
		t.Errorf("expected indexed field path 'aliases[1]', got %q", errs[0].Field)
	}
}

func TestValidateNonObject(t *testing.T) {
	pipeline, node := newSignupPipeline(t)

	errs := pipeline.Validate("just a string", node)
	if len(errs) != 1 || errs[0].Kind != "type" {
		t.Fatalf("expected single type error for non-object input, got %v", errs)
	}
}

func TestValidateMsgpackObjectShape(t *testing.T) {
	pipeline, node := newSignupPipeline(t)

	// msgpack may decode objects as map[any]any with sized integers.
	input := map[any]any{
		"name":  "alice",
		"email": "alice@example.com",
		"age":   int8(30),
	}

	if errs := pipeline.Validate(input, node); len(errs) != 0 {
		t.Fatalf("expected msgpack-shaped input to validate, got %v", errs)
	}
}

func TestValidateParam(t *testing.T) {
	pipeline, _ := newSignupPipeline(t)

	tests := []struct {
		name      string
		spec      ParamSpec
		raw       string
		wantValue any
		wantErrs  int
	}{
		{
			name:      "integer coercion",
			spec:      ParamSpec{Name: "id", Source: ParamPath, Scalar: ScalarInteger},
			raw:       "42",
			wantValue: int64(42),
		},
		{
			name:     "integer coercion failure",
			spec:     ParamSpec{Name: "id", Source: ParamPath, Scalar: ScalarInteger},
			raw:      "forty-two",
			wantErrs: 1,
		},
		{
			name:      "boolean coercion",
			spec:      ParamSpec{Name: "verbose", Source: ParamQuery, Scalar: ScalarBoolean},
			raw:       "true",
			wantValue: true,
		},
		{
			name:      "number coercion",
			spec:      ParamSpec{Name: "ratio", Source: ParamQuery, Scalar: ScalarNumber},
			raw:       "0.5",
			wantValue: 0.5,
		},
		{
			name: "constraint violation",
			spec: ParamSpec{
				Name: "id", Source: ParamPath, Scalar: ScalarInteger,
				Constraints: []Constraint{Min(1)},
			},
			raw:      "0",
			wantErrs: 1,
		},
		{
			name: "pattern constraint",
			spec: ParamSpec{
				Name: "slug", Source: ParamPath, Scalar: ScalarString,
				Constraints: []Constraint{Pattern(`^[a-z-]+$`)},
			},
			raw:       "valid-slug",
			wantValue: "valid-slug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errs []FieldError
			got := pipeline.ValidateParam(tt.spec, tt.raw, &errs)
			if len(errs) != tt.wantErrs {
				t.Fatalf("expected %d errors, got %v", tt.wantErrs, errs)
			}
			if tt.wantErrs == 0 && got != tt.wantValue {
				t.Errorf("expected coerced value %v (%T), got %v (%T)", tt.wantValue, tt.wantValue, got, got)
			}
		})
	}
}
