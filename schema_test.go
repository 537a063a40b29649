package hayai

import (
	"errors"
	"testing"
)

type makerModel struct {
	Name string `json:"name"`
}

type productModel struct {
	SKU   string            `json:"sku"`
	Title string            `json:"title"`
	Price float64           `json:"price,omitempty"`
	Tags  []string          `json:"tags,omitempty"`
	Maker *makerModel       `json:"maker,omitempty"`
	Meta  map[string]string `json:"meta,omitempty"`
}

type categoryModel struct {
	Label    string          `json:"label"`
	Children []categoryModel `json:"children,omitempty"`
}

func TestRegisterModel(t *testing.T) {
	registry := NewSchemaRegistry()

	if _, err := RegisterModel[makerModel](registry); err != nil {
		t.Fatalf("register makerModel: %v", err)
	}
	desc, err := RegisterModel[productModel](registry)
	if err != nil {
		t.Fatalf("register productModel: %v", err)
	}
	if desc.Name != "productModel" {
		t.Errorf("expected descriptor name 'productModel', got %q", desc.Name)
	}

	node, err := registry.Resolve(desc)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if node.Kind != KindObject {
		t.Fatalf("expected object node, got kind %d", node.Kind)
	}

	for _, field := range []string{"sku", "title", "price", "tags", "maker", "meta"} {
		if _, ok := node.Fields[field]; !ok {
			t.Errorf("expected field %q in schema", field)
		}
	}

	// Fields without omitempty are required.
	if !containsString(node.Required, "sku") || !containsString(node.Required, "title") {
		t.Errorf("expected sku and title required, got %v", node.Required)
	}
	if containsString(node.Required, "price") {
		t.Errorf("omitempty field 'price' must not be required, got %v", node.Required)
	}

	if tags := node.Fields["tags"]; tags.Kind != KindArray || tags.Elem.Scalar != ScalarString {
		t.Errorf("expected tags to be array of string")
	}
	if price := node.Fields["price"]; price.Kind != KindScalar || price.Scalar != ScalarNumber {
		t.Errorf("expected price to be a number scalar")
	}
	if maker := node.Fields["maker"]; maker.Kind != KindReference || maker.Ref.Name != "makerModel" {
		t.Errorf("expected maker to reference makerModel, got kind %d ref %q", maker.Kind, maker.Ref.Name)
	}
	if maker := node.Fields["maker"]; !maker.Nullable {
		t.Errorf("pointer field must be nullable")
	}
	if meta := node.Fields["meta"]; meta.Kind != KindObject || !meta.AdditionalProps {
		t.Errorf("expected meta to be a free-form object")
	}
}

func TestRegisterModelIdempotent(t *testing.T) {
	registry := NewSchemaRegistry()

	desc1, err := RegisterModel[makerModel](registry)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	desc2, err := RegisterModel[makerModel](registry)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if desc1 != desc2 {
		t.Errorf("expected identical descriptors, got %v and %v", desc1, desc2)
	}

	node1, _ := registry.Resolve(desc1)
	node2, _ := registry.Resolve(desc2)
	if node1 != node2 {
		t.Error("expected re-registration to return the stored node")
	}
}

func TestRegisterRecursiveModel(t *testing.T) {
	registry := NewSchemaRegistry()

	desc, err := RegisterModel[categoryModel](registry)
	if err != nil {
		t.Fatalf("register recursive model: %v", err)
	}

	node, err := registry.Resolve(desc)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	children, ok := node.Fields["children"]
	if !ok {
		t.Fatal("expected children field")
	}
	if children.Kind != KindArray {
		t.Fatalf("expected children to be an array, got kind %d", children.Kind)
	}
	if children.Elem.Kind != KindReference || children.Elem.Ref.Name != "categoryModel" {
		t.Errorf("expected children elements to reference categoryModel, got kind %d ref %q",
			children.Elem.Kind, children.Elem.Ref.Name)
	}
}

type inventoryModel struct {
	Counts map[string]int        `json:"counts"`
	Makers map[string]makerModel `json:"makers,omitempty"`
}

func TestRegisterModelMapValueSchema(t *testing.T) {
	registry := NewSchemaRegistry()
	if _, err := RegisterModel[makerModel](registry); err != nil {
		t.Fatalf("register makerModel: %v", err)
	}
	desc, err := RegisterModel[inventoryModel](registry)
	if err != nil {
		t.Fatalf("register inventoryModel: %v", err)
	}

	node, _ := registry.Resolve(desc)

	counts := node.Fields["counts"]
	if counts.Kind != KindObject || !counts.AdditionalProps {
		t.Fatalf("expected counts to be a map node, got %+v", counts)
	}
	if counts.Elem == nil || counts.Elem.Kind != KindScalar || counts.Elem.Scalar != ScalarInteger {
		t.Errorf("expected integer value schema on counts, got %+v", counts.Elem)
	}

	makers := node.Fields["makers"]
	if makers.Elem == nil || makers.Elem.Kind != KindReference || makers.Elem.Ref.Name != "makerModel" {
		t.Errorf("expected makers values to reference makerModel, got %+v", makers.Elem)
	}
}

func TestResolveUnknownType(t *testing.T) {
	registry := NewSchemaRegistry()

	_, err := registry.Resolve(TypeDescriptor{Name: "ghost"})
	if err == nil {
		t.Fatal("expected error resolving unregistered type")
	}
	var unknown *UnknownTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTypeError, got %T", err)
	}
	if unknown.Name != "ghost" {
		t.Errorf("expected name 'ghost', got %q", unknown.Name)
	}
}

func TestConstrain(t *testing.T) {
	registry := NewSchemaRegistry()
	desc, err := RegisterModel[productModel](registry)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Constrain(desc, "title", Required(), MinLength(3), MaxLength(64)); err != nil {
		t.Fatalf("constrain title: %v", err)
	}
	if err := registry.Constrain(desc, "price", Min(0), Max(10000)); err != nil {
		t.Fatalf("constrain price: %v", err)
	}

	node, _ := registry.Resolve(desc)
	if !containsString(node.Required, "title") {
		t.Error("Required constraint must add the field to the required set")
	}

	title := node.Fields["title"]
	if len(title.Constraints) != 2 {
		t.Fatalf("expected 2 constraints on title, got %d", len(title.Constraints))
	}
	if title.Constraints[0].Kind != ConstraintMinLength || title.Constraints[0].Length != 3 {
		t.Errorf("expected min_length 3 first, got %+v", title.Constraints[0])
	}

	price := node.Fields["price"]
	if len(price.Constraints) != 2 {
		t.Fatalf("expected 2 constraints on price, got %d", len(price.Constraints))
	}
}

func TestConstrainEmailSetsFormat(t *testing.T) {
	registry := NewSchemaRegistry()
	desc, err := RegisterModel[makerModel](registry)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Constrain(desc, "name", Email()); err != nil {
		t.Fatalf("constrain: %v", err)
	}

	node, _ := registry.Resolve(desc)
	if node.Fields["name"].Format != "email" {
		t.Errorf("expected email format, got %q", node.Fields["name"].Format)
	}
}

func TestConstrainUnknownField(t *testing.T) {
	registry := NewSchemaRegistry()
	desc, err := RegisterModel[makerModel](registry)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Constrain(desc, "missing", Required()); err == nil {
		t.Error("expected error constraining unknown field")
	}
}

func TestConstrainNonScalarField(t *testing.T) {
	registry := NewSchemaRegistry()
	if _, err := RegisterModel[makerModel](registry); err != nil {
		t.Fatalf("register makerModel: %v", err)
	}
	desc, err := RegisterModel[productModel](registry)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Required is structural and applies to any field kind.
	if err := registry.Constrain(desc, "maker", Required()); err != nil {
		t.Fatalf("required on reference field: %v", err)
	}

	// Value constraints on non-scalar fields would never be enforced, so
	// they fail at build time instead of passing silently.
	err = registry.Constrain(desc, "maker", MinLength(2))
	var target *ConstraintTargetError
	if !errors.As(err, &target) {
		t.Fatalf("expected ConstraintTargetError, got %v", err)
	}
	if target.Field != "maker" || target.Constraint != ConstraintMinLength {
		t.Errorf("unexpected error detail: %+v", target)
	}

	if err := registry.Constrain(desc, "tags", Min(1)); err == nil {
		t.Error("expected error constraining an array field with a value constraint")
	}
	if err := registry.Constrain(desc, "meta", MaxLength(5)); err == nil {
		t.Error("expected error constraining a map field with a value constraint")
	}
}

func TestConstrainRequiredIdempotent(t *testing.T) {
	registry := NewSchemaRegistry()
	desc, err := RegisterModel[makerModel](registry)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Constrain(desc, "name", Required()); err != nil {
		t.Fatalf("constrain: %v", err)
	}
	if err := registry.Constrain(desc, "name", Required()); err != nil {
		t.Fatalf("constrain again: %v", err)
	}

	node, _ := registry.Resolve(desc)
	count := 0
	for _, f := range node.Required {
		if f == "name" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 'name' once in required set, got %d occurrences", count)
	}
}
