package hayai

import (
	"strings"

	"github.com/zoobzio/sentinel"
)

// SchemaKind discriminates the SchemaNode variants.
type SchemaKind int

// SchemaNode variants.
const (
	KindObject SchemaKind = iota
	KindArray
	KindScalar
	KindReference
)

// ScalarKind names a primitive wire type.
type ScalarKind string

// Supported scalar kinds, matching JSON Schema type names.
const (
	ScalarString  ScalarKind = "string"
	ScalarInteger ScalarKind = "integer"
	ScalarNumber  ScalarKind = "number"
	ScalarBoolean ScalarKind = "boolean"
)

// SchemaNode is the canonical structural description of a type, built once at
// registration time and immutable while serving. Self- or mutually-recursive
// types are represented through Reference indirection, never by inlining.
type SchemaNode struct {
	Kind SchemaKind

	// Object nodes.
	Fields          map[string]*SchemaNode
	Required        []string
	AdditionalProps bool // free-form map, no declared fields

	// Array nodes.
	Elem *SchemaNode

	// Scalar nodes.
	Scalar ScalarKind
	Format string

	// Reference nodes.
	Ref TypeDescriptor

	// Constraints attached to this node.
	Constraints []Constraint

	Nullable bool
}

// SchemaRegistry converts structural type descriptions into deduplicated
// SchemaNodes keyed by TypeDescriptor. All registration happens during the
// single-threaded build phase; the registry is read-only once serving begins.
type SchemaRegistry struct {
	nodes        map[string]*SchemaNode
	descriptors  map[string]TypeDescriptor
	fingerprints map[string]string
	inProgress   map[string]bool
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		nodes:        make(map[string]*SchemaNode),
		descriptors:  make(map[string]TypeDescriptor),
		fingerprints: make(map[string]string),
		inProgress:   make(map[string]bool),
	}
}

// RegisterModel scans T with sentinel and registers its shape, returning the
// descriptor to use in route and dependency declarations.
func RegisterModel[T any](r *SchemaRegistry) (TypeDescriptor, error) {
	meta := sentinel.Scan[T]()
	desc := descriptorFromMetadata(meta)
	if _, err := r.Register(desc, meta); err != nil {
		return TypeDescriptor{}, err
	}
	return desc, nil
}

// Register converts the structural shape into a SchemaNode and stores it under
// desc. Registration is idempotent: re-registering an identical shape is a
// no-op returning the stored node. Registering a conflicting shape under the
// same descriptor fails with SchemaConflictError, which is fatal at build time.
func (r *SchemaRegistry) Register(desc TypeDescriptor, meta sentinel.ModelMetadata) (*SchemaNode, error) {
	if node, ok := r.nodes[desc.Name]; ok {
		if desc.Fingerprint() != "" && r.fingerprints[desc.Name] != desc.Fingerprint() {
			return nil, &SchemaConflictError{Descriptor: desc}
		}
		return node, nil
	}

	// Mark in progress before descending into field types so a type that
	// references itself (directly or transitively) resolves to a Reference
	// instead of recursing without bound.
	r.inProgress[desc.Name] = true
	node := r.objectNode(meta)
	delete(r.inProgress, desc.Name)

	r.nodes[desc.Name] = node
	r.descriptors[desc.Name] = desc
	r.fingerprints[desc.Name] = desc.Fingerprint()

	return node, nil
}

// Resolve returns the node registered for desc. All model types are
// registered during build, so a failed resolve while serving indicates an
// internal bug and is surfaced as UnknownTypeError.
func (r *SchemaRegistry) Resolve(desc TypeDescriptor) (*SchemaNode, error) {
	node, ok := r.nodes[desc.Name]
	if !ok {
		return nil, &UnknownTypeError{Name: desc.Name}
	}
	return node, nil
}

// Descriptor returns the registered descriptor for a schema name.
func (r *SchemaRegistry) Descriptor(name string) (TypeDescriptor, bool) {
	desc, ok := r.descriptors[name]
	return desc, ok
}

// Constrain attaches constraints to a field of a registered object schema.
// A Required constraint adds the field to the object's required set; value
// constraints accumulate on the field node for the ValidationPipeline and
// the document builder, and apply to scalar fields only. Constrain is a
// build-phase operation.
func (r *SchemaRegistry) Constrain(desc TypeDescriptor, field string, constraints ...Constraint) error {
	node, err := r.Resolve(desc)
	if err != nil {
		return err
	}

	fieldNode, ok := node.Fields[field]
	if !ok {
		return &UnknownTypeError{Name: desc.Name + "." + field}
	}

	for _, c := range constraints {
		if c.Kind == ConstraintRequired {
			if !containsString(node.Required, field) {
				node.Required = append(node.Required, field)
			}
			continue
		}
		// Value constraints are enforced on scalars only; attaching one to a
		// nested object, array, or reference would silently never run.
		if fieldNode.Kind != KindScalar {
			return &ConstraintTargetError{Type: desc.Name, Field: field, Constraint: c.Kind}
		}
		if c.Kind == ConstraintEmail {
			fieldNode.Format = "email"
		}
		fieldNode.Constraints = append(fieldNode.Constraints, c)
	}

	return nil
}

// objectNode converts sentinel metadata into an Object node, descending
// depth-first into field types.
func (r *SchemaRegistry) objectNode(meta sentinel.ModelMetadata) *SchemaNode {
	node := &SchemaNode{
		Kind:   KindObject,
		Fields: make(map[string]*SchemaNode),
	}

	for _, field := range meta.Fields {
		propName, required := fieldJSONName(field)
		if propName == "-" {
			continue
		}

		node.Fields[propName] = r.fieldNode(field.Type)
		if required {
			node.Required = append(node.Required, propName)
		}
	}

	return node
}

// fieldNode converts a Go type string into a SchemaNode. Named struct types
// become Reference nodes; their shapes are registered through sentinel's
// metadata cache, unless registration of that type is already in progress.
func (r *SchemaRegistry) fieldNode(goType string) *SchemaNode {
	nullable := false
	if strings.HasPrefix(goType, "*") {
		nullable = true
		goType = strings.TrimPrefix(goType, "*")
	}

	if strings.HasPrefix(goType, "[]") {
		return &SchemaNode{
			Kind:     KindArray,
			Elem:     r.fieldNode(strings.TrimPrefix(goType, "[]")),
			Nullable: nullable,
		}
	}

	if strings.HasPrefix(goType, "map[") {
		elem := ""
		if idx := strings.Index(goType, "]"); idx != -1 {
			elem = goType[idx+1:]
		}
		node := &SchemaNode{Kind: KindObject, AdditionalProps: true, Nullable: nullable}
		if elem != "" {
			// The value shape rides on Elem for the document builder.
			node.Elem = r.fieldNode(elem)
		}
		return node
	}

	switch goType {
	case "string":
		return &SchemaNode{Kind: KindScalar, Scalar: ScalarString, Nullable: nullable}
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64":
		return &SchemaNode{Kind: KindScalar, Scalar: ScalarInteger, Nullable: nullable}
	case "float32", "float64":
		return &SchemaNode{Kind: KindScalar, Scalar: ScalarNumber, Nullable: nullable}
	case "bool":
		return &SchemaNode{Kind: KindScalar, Scalar: ScalarBoolean, Nullable: nullable}
	case "time.Time":
		return &SchemaNode{Kind: KindScalar, Scalar: ScalarString, Format: "date-time", Nullable: nullable}
	default:
		typeName := goType
		if idx := strings.LastIndex(goType, "."); idx != -1 {
			typeName = goType[idx+1:]
		}

		ref := TypeDescriptor{Name: typeName}
		if r.inProgress[typeName] {
			// Cycle break: the referenced registration completes above us.
			return &SchemaNode{Kind: KindReference, Ref: ref, Nullable: nullable}
		}
		if _, registered := r.nodes[typeName]; !registered {
			if relMeta, found := sentinel.Lookup(typeName); found {
				relDesc := descriptorFromMetadata(relMeta)
				//nolint:errcheck // same-name conflict is reported on direct registration
				r.Register(relDesc, relMeta)
				ref = relDesc
			}
		} else {
			ref = r.descriptors[typeName]
		}
		return &SchemaNode{Kind: KindReference, Ref: ref, Nullable: nullable}
	}
}

func isScalarTypeName(goType string) bool {
	switch strings.TrimPrefix(goType, "*") {
	case "string", "bool",
		"int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64",
		"float32", "float64", "time.Time":
		return true
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
