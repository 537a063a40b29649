package hayai

import (
	"fmt"
)

// statusCodeToResponseName maps HTTP status codes to OpenAPI response component names
func statusCodeToResponseName(code int) string {
	switch code {
	case 400:
		return "BadRequest"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "NotFound"
	case 409:
		return "Conflict"
	case 422:
		return "UnprocessableEntity"
	case 429:
		return "TooManyRequests"
	case 500:
		return "InternalServerError"
	case 503:
		return "ServiceUnavailable"
	default:
		return "InternalServerError"
	}
}

// setOperationForMethod sets the operation on the correct method field of PathItem
func setOperationForMethod(pathItem *PathItem, method string, operation *Operation) {
	switch method {
	case "GET":
		pathItem.Get = operation
	case "POST":
		pathItem.Post = operation
	case "PUT":
		pathItem.Put = operation
	case "DELETE":
		pathItem.Delete = operation
	case "PATCH":
		pathItem.Patch = operation
	case "OPTIONS":
		pathItem.Options = operation
	case "HEAD":
		pathItem.Head = operation
	}
}

// schemaRef builds a reference into the components section.
func schemaRef(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

// BuildOpenAPI assembles one API description document from a composed route
// table and the schema registry. It is a pure read-only projection: every
// request/response schema is emitted as a reference into a single
// deduplicated components section, one entry per distinct TypeDescriptor
// regardless of how many routes reference it. Security schemes and tags
// referenced by any route surface once at the top level.
func BuildOpenAPI(table *RouteTable, registry *SchemaRegistry, info Info, schemes map[string]*SecurityScheme) *OpenAPI {
	doc := &OpenAPI{
		OpenAPI: "3.0.3",
		Info:    info,
		Paths:   make(map[string]PathItem),
		Components: &Components{
			Schemas:         make(map[string]*Schema),
			Responses:       make(map[string]*Response),
			SecuritySchemes: make(map[string]*SecurityScheme),
		},
	}

	addCannedResponses(doc.Components)

	collected := make(map[string]bool)
	var collect func(desc TypeDescriptor)
	var collectNode func(node *SchemaNode)

	collect = func(desc TypeDescriptor) {
		if desc.IsZero() || collected[desc.Name] {
			return
		}
		node, err := registry.Resolve(desc)
		if err != nil {
			// Unregistered reference; the path entry still points at it.
			return
		}
		collected[desc.Name] = true
		doc.Components.Schemas[desc.Name] = schemaNodeToSchema(node)
		collectNode(node)
	}
	collectNode = func(node *SchemaNode) {
		switch node.Kind {
		case KindReference:
			collect(node.Ref)
		case KindArray:
			collectNode(node.Elem)
		case KindObject:
			for _, field := range node.Fields {
				collectNode(field)
			}
			if node.Elem != nil {
				collectNode(node.Elem)
			}
		}
	}

	usedSchemes := make(map[string]bool)
	var tagOrder []string
	seenTags := make(map[string]bool)

	for _, rd := range table.Routes {
		pathItem, exists := doc.Paths[rd.Path]
		if !exists {
			pathItem = PathItem{}
		}

		operation := &Operation{
			OperationID: rd.Name,
			Summary:     rd.Summary,
			Description: rd.Description,
			Tags:        rd.Tags,
			Responses:   make(map[string]Response),
		}

		for _, tag := range rd.Tags {
			if !seenTags[tag] {
				seenTags[tag] = true
				tagOrder = append(tagOrder, tag)
			}
		}

		for _, p := range rd.Params {
			operation.Parameters = append(operation.Parameters, Parameter{
				Name:     p.Name,
				In:       string(p.Source),
				Required: p.Required || p.Source == ParamPath,
				Schema:   paramSchema(p),
			})
		}

		if !rd.Input.IsZero() {
			collect(rd.Input)
			operation.RequestBody = &RequestBody{
				Required: true,
				Content: map[string]MediaType{
					contentTypeJSON: {Schema: schemaRef(rd.Input.Name)},
				},
			}
		}

		successStatus := rd.SuccessStatus
		if successStatus == 0 {
			successStatus = 200
		}
		if rd.Output.IsZero() {
			operation.Responses[fmt.Sprintf("%d", successStatus)] = Response{
				Description: "Success",
			}
		} else {
			collect(rd.Output)
			operation.Responses[fmt.Sprintf("%d", successStatus)] = Response{
				Description: "Success",
				Content: map[string]MediaType{
					contentTypeJSON: {Schema: schemaRef(rd.Output.Name)},
				},
			}
		}

		for _, errorCode := range rd.ErrorCodes {
			responseName := statusCodeToResponseName(errorCode)
			operation.Responses[fmt.Sprintf("%d", errorCode)] = Response{
				Description: responseName,
				Content: map[string]MediaType{
					contentTypeJSON: {Schema: schemaRef("ErrorResponse")},
				},
			}
		}

		if len(rd.Security) > 0 {
			requirement := SecurityRequirement{}
			for _, scheme := range rd.Security {
				requirement[scheme] = []string{}
				usedSchemes[scheme] = true
			}
			operation.Security = []SecurityRequirement{requirement}
		}

		setOperationForMethod(&pathItem, rd.Method, operation)
		doc.Paths[rd.Path] = pathItem
	}

	for name := range usedSchemes {
		if scheme, ok := schemes[name]; ok {
			doc.Components.SecuritySchemes[name] = scheme
		}
	}

	for _, tag := range tagOrder {
		doc.Tags = append(doc.Tags, Tag{Name: tag})
	}

	return doc
}

// paramSchema converts a parameter spec into its schema, applying declared
// constraints.
func paramSchema(p ParamSpec) *Schema {
	schema := &Schema{Type: string(p.Scalar)}
	applyConstraintsToSchema(schema, p.Constraints)
	return schema
}

// schemaNodeToSchema converts a registered SchemaNode into its OpenAPI form.
// Reference nodes become $ref entries; the cycle-break in the registry
// guarantees this conversion terminates for self-referential types.
func schemaNodeToSchema(node *SchemaNode) *Schema {
	switch node.Kind {
	case KindReference:
		return schemaRef(node.Ref.Name)

	case KindArray:
		return &Schema{
			Type:  "array",
			Items: schemaNodeToSchema(node.Elem),
		}

	case KindObject:
		if node.AdditionalProps {
			if node.Elem != nil {
				return &Schema{Type: "object", AdditionalProperties: schemaNodeToSchema(node.Elem)}
			}
			return &Schema{Type: "object", AdditionalProperties: true}
		}
		schema := &Schema{
			Type:       "object",
			Properties: make(map[string]*Schema),
		}
		for name, field := range node.Fields {
			schema.Properties[name] = schemaNodeToSchema(field)
		}
		if len(node.Required) > 0 {
			schema.Required = append([]string(nil), node.Required...)
		}
		return schema

	case KindScalar:
		schema := &Schema{
			Type:   string(node.Scalar),
			Format: node.Format,
		}
		applyConstraintsToSchema(schema, node.Constraints)
		return schema
	}

	return &Schema{}
}

func applyConstraintsToSchema(schema *Schema, constraints []Constraint) {
	for _, c := range constraints {
		switch c.Kind {
		case ConstraintMinLength:
			n := c.Length
			schema.MinLength = &n
		case ConstraintMaxLength:
			n := c.Length
			schema.MaxLength = &n
		case ConstraintPattern:
			schema.Pattern = c.Pattern
		case ConstraintEmail:
			schema.Format = "email"
		case ConstraintMin:
			bound := c.Bound
			schema.Minimum = &bound
		case ConstraintMax:
			bound := c.Bound
			schema.Maximum = &bound
		}
	}
}

// addCannedResponses registers the standard error responses shared by all
// routes and the ErrorResponse schema they reference.
func addCannedResponses(components *Components) {
	components.Schemas["ErrorResponse"] = &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"error": {Type: "string"},
		},
		Required: []string{"error"},
	}

	for _, code := range []int{400, 401, 403, 404, 409, 422, 429, 500, 503} {
		name := statusCodeToResponseName(code)
		components.Responses[name] = &Response{
			Description: name,
			Content: map[string]MediaType{
				contentTypeJSON: {Schema: schemaRef("ErrorResponse")},
			},
		}
	}
}
