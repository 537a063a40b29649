package hayai

import (
	"testing"
)

func buildDocsFixture(t *testing.T) (*RouteTable, *SchemaRegistry) {
	t.Helper()
	registry := NewSchemaRegistry()

	inputDesc, err := RegisterModel[signupInput](registry)
	if err != nil {
		t.Fatalf("register input: %v", err)
	}
	if _, err := RegisterModel[addressPart](registry); err != nil {
		t.Fatalf("register address: %v", err)
	}
	if err := registry.Constrain(inputDesc, "name", MinLength(3)); err != nil {
		t.Fatalf("constrain: %v", err)
	}
	outputDesc, err := RegisterModel[makerModel](registry)
	if err != nil {
		t.Fatalf("register output: %v", err)
	}

	create := stubRoute("create-signup", "POST", "/signups")
	create.desc.Summary = "Create a signup"
	create.desc.Input = inputDesc
	create.desc.Output = outputDesc
	create.desc.SuccessStatus = 201
	create.desc.ErrorCodes = []int{409, 422}
	create.desc.Security = []string{"api_key"}
	create.desc.SecuritySet = true

	get := stubRoute("get-signup", "GET", "/signups/{id}")
	get.desc.Output = outputDesc
	get.desc.Params = []ParamSpec{{
		Name:        "id",
		Source:      ParamPath,
		Scalar:      ScalarInteger,
		Required:    true,
		Constraints: []Constraint{Min(1)},
	}}
	get.desc.ErrorCodes = []int{404}

	root := NewRouter("").WithTags("signups")
	root.Route(create, get)

	table, err := Compose(root)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	return table, registry
}

func TestBuildOpenAPIDocument(t *testing.T) {
	table, registry := buildDocsFixture(t)

	doc := BuildOpenAPI(table, registry, Info{Title: "Signups", Version: "2.0.0"}, map[string]*SecurityScheme{
		"api_key": {Type: "apiKey", In: "header", Name: "X-API-Key"},
		"unused":  {Type: "http", Scheme: "bearer"},
	})

	if doc.OpenAPI != "3.0.3" {
		t.Errorf("expected OpenAPI 3.0.3, got %q", doc.OpenAPI)
	}
	if doc.Info.Title != "Signups" {
		t.Errorf("unexpected info %+v", doc.Info)
	}

	post := doc.Paths["/signups"].Post
	if post == nil {
		t.Fatal("expected POST /signups operation")
	}
	if post.OperationID != "create-signup" {
		t.Errorf("expected operationId create-signup, got %q", post.OperationID)
	}
	if post.RequestBody == nil || post.RequestBody.Content[contentTypeJSON].Schema.Ref != "#/components/schemas/signupInput" {
		t.Error("expected request body referencing signupInput")
	}
	if _, ok := post.Responses["201"]; !ok {
		t.Errorf("expected 201 response, got %v", post.Responses)
	}
	if _, ok := post.Responses["409"]; !ok {
		t.Error("expected declared 409 response")
	}
	if len(post.Security) != 1 {
		t.Fatalf("expected one security requirement, got %v", post.Security)
	}
	if _, ok := post.Security[0]["api_key"]; !ok {
		t.Errorf("expected api_key requirement, got %v", post.Security[0])
	}

	get := doc.Paths["/signups/{id}"].Get
	if get == nil {
		t.Fatal("expected GET /signups/{id} operation")
	}
	if len(get.Parameters) != 1 {
		t.Fatalf("expected one parameter, got %v", get.Parameters)
	}
	param := get.Parameters[0]
	if param.Name != "id" || param.In != "path" || !param.Required {
		t.Errorf("unexpected parameter %+v", param)
	}
	if param.Schema.Type != "integer" || param.Schema.Minimum == nil || *param.Schema.Minimum != 1 {
		t.Errorf("expected integer schema with minimum 1, got %+v", param.Schema)
	}
	if get.Security != nil {
		t.Errorf("route without security must carry no requirement, got %v", get.Security)
	}
}

func TestBuildOpenAPIComponentsDeduplicated(t *testing.T) {
	table, registry := buildDocsFixture(t)

	doc := BuildOpenAPI(table, registry, Info{Title: "Signups", Version: "2.0.0"}, nil)

	// makerModel is referenced by two routes but emitted once; signupInput
	// pulls in its nested addressPart reference.
	for _, name := range []string{"signupInput", "addressPart", "makerModel", "ErrorResponse"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("expected component schema %q", name)
		}
	}

	input := doc.Components.Schemas["signupInput"]
	if input.Type != "object" {
		t.Fatalf("expected object schema, got %+v", input)
	}
	if input.Properties["address"].Ref != "#/components/schemas/addressPart" {
		t.Errorf("expected address property to be a $ref, got %+v", input.Properties["address"])
	}
	name := input.Properties["name"]
	if name.MinLength == nil || *name.MinLength != 3 {
		t.Errorf("expected minLength 3 on name, got %+v", name)
	}
}

func TestBuildOpenAPISecuritySchemes(t *testing.T) {
	table, registry := buildDocsFixture(t)

	doc := BuildOpenAPI(table, registry, Info{}, map[string]*SecurityScheme{
		"api_key": {Type: "apiKey", In: "header", Name: "X-API-Key"},
		"unused":  {Type: "http", Scheme: "bearer"},
	})

	if _, ok := doc.Components.SecuritySchemes["api_key"]; !ok {
		t.Error("expected api_key scheme in components")
	}
	if _, ok := doc.Components.SecuritySchemes["unused"]; ok {
		t.Error("unreferenced scheme must not surface in components")
	}
}

func TestBuildOpenAPITags(t *testing.T) {
	table, registry := buildDocsFixture(t)

	doc := BuildOpenAPI(table, registry, Info{}, nil)

	if len(doc.Tags) != 1 || doc.Tags[0].Name != "signups" {
		t.Errorf("expected single 'signups' tag, got %v", doc.Tags)
	}
}

func TestBuildOpenAPICannedResponses(t *testing.T) {
	table, registry := buildDocsFixture(t)

	doc := BuildOpenAPI(table, registry, Info{}, nil)

	for _, name := range []string{"BadRequest", "Unauthorized", "NotFound", "UnprocessableEntity", "ServiceUnavailable"} {
		if _, ok := doc.Components.Responses[name]; !ok {
			t.Errorf("expected canned response %q", name)
		}
	}
}

func TestSchemaNodeToSchemaMapValues(t *testing.T) {
	registry := NewSchemaRegistry()
	if _, err := RegisterModel[makerModel](registry); err != nil {
		t.Fatalf("register makerModel: %v", err)
	}
	desc, err := RegisterModel[inventoryModel](registry)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	node, _ := registry.Resolve(desc)

	schema := schemaNodeToSchema(node)

	counts := schema.Properties["counts"]
	valueSchema, ok := counts.AdditionalProperties.(*Schema)
	if !ok {
		t.Fatalf("expected value schema for counts, got %v", counts.AdditionalProperties)
	}
	if valueSchema.Type != "integer" {
		t.Errorf("expected integer value schema, got %+v", valueSchema)
	}

	makers := schema.Properties["makers"]
	refSchema, ok := makers.AdditionalProperties.(*Schema)
	if !ok || refSchema.Ref != "#/components/schemas/makerModel" {
		t.Errorf("expected $ref value schema for makers, got %v", makers.AdditionalProperties)
	}
}

func TestSchemaNodeToSchemaRecursive(t *testing.T) {
	registry := NewSchemaRegistry()
	desc, err := RegisterModel[categoryModel](registry)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	node, _ := registry.Resolve(desc)

	schema := schemaNodeToSchema(node)
	children := schema.Properties["children"]
	if children.Type != "array" {
		t.Fatalf("expected array schema, got %+v", children)
	}
	if children.Items.Ref != "#/components/schemas/categoryModel" {
		t.Errorf("expected self-reference via $ref, got %+v", children.Items)
	}
}
