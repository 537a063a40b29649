package hayai

import (
	"sort"
	"strings"

	"github.com/zoobzio/sentinel"
)

// TypeDescriptor is the stable identity of a declared model or service type.
// It is the join key across the SchemaRegistry and the DependencyGraph: two
// descriptors compare equal exactly when they were derived from the same
// structural shape.
type TypeDescriptor struct {
	// Name is the canonical type name, used as the component schema name.
	Name string

	fingerprint string
}

// DescriptorFor derives the descriptor for T from sentinel metadata.
// Calling it twice for the same type yields equal descriptors.
func DescriptorFor[T any]() TypeDescriptor {
	return descriptorFromMetadata(sentinel.Scan[T]())
}

func descriptorFromMetadata(meta sentinel.ModelMetadata) TypeDescriptor {
	return TypeDescriptor{
		Name:        meta.TypeName,
		fingerprint: shapeFingerprint(meta),
	}
}

// String implements fmt.Stringer.
func (d TypeDescriptor) String() string {
	return d.Name
}

// IsZero reports whether the descriptor identifies no type at all.
// Routes without a request body carry a zero Input descriptor.
func (d TypeDescriptor) IsZero() bool {
	return d.Name == ""
}

// Fingerprint returns the canonical structural signature used for conflict
// detection. A descriptor looked up by name alone (e.g. built from a field
// reference before the target type was scanned) has an empty fingerprint and
// never conflicts.
func (d TypeDescriptor) Fingerprint() string {
	return d.fingerprint
}

// shapeFingerprint builds a canonical field signature for a scanned type.
// Field order is normalized so declaration order does not affect identity.
func shapeFingerprint(meta sentinel.ModelMetadata) string {
	parts := make([]string, 0, len(meta.Fields))
	for _, field := range meta.Fields {
		name, _ := fieldJSONName(field)
		if name == "-" {
			continue
		}
		parts = append(parts, name+":"+field.Type)
	}
	sort.Strings(parts)
	return meta.TypeName + "{" + strings.Join(parts, ",") + "}"
}

// fieldJSONName extracts the wire name for a struct field and whether the
// field is required (no omitempty option).
func fieldJSONName(field sentinel.FieldMetadata) (name string, required bool) {
	jsonTag, exists := field.Tags["json"]
	if !exists {
		return strings.ToLower(field.Name), true
	}

	parts := strings.Split(jsonTag, ",")
	name = parts[0]
	if name == "" {
		name = strings.ToLower(field.Name)
	}

	required = true
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			required = false
			break
		}
	}

	return name, required
}
