package benchmarks

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/hayai-dev/hayai"
)

type orderInput struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

type orderOutput struct {
	ID       string `json:"id"`
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// BenchmarkHandlerBodyPipeline measures the full request body path: read,
// decode, validate, bind, serialize.
func BenchmarkHandlerBodyPipeline(b *testing.B) {
	engine := hayai.NewEngine(hayai.DefaultConfig())

	desc, err := hayai.RegisterModel[orderInput](engine.Registry())
	if err != nil {
		b.Fatalf("RegisterModel() error = %v", err)
	}
	if err := engine.Registry().Constrain(desc, "item", hayai.Required(), hayai.MinLength(1)); err != nil {
		b.Fatalf("Constrain() error = %v", err)
	}
	if err := engine.Registry().Constrain(desc, "quantity", hayai.Min(1)); err != nil {
		b.Fatalf("Constrain() error = %v", err)
	}

	engine.Router().Route(
		hayai.NewHandler("create-order", "POST", "/orders",
			func(req *hayai.Request[orderInput]) (orderOutput, error) {
				return orderOutput{ID: "o-1", Item: req.Body.Item, Quantity: req.Body.Quantity}, nil
			},
		),
	)
	buildEngine(b, engine)

	body, _ := json.Marshal(orderInput{Item: "widget", Quantity: 3})

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("POST", "/orders", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
	}
}

// BenchmarkHandlerValidationFailure measures the rejected-request path.
func BenchmarkHandlerValidationFailure(b *testing.B) {
	engine := hayai.NewEngine(hayai.DefaultConfig())

	desc, err := hayai.RegisterModel[orderInput](engine.Registry())
	if err != nil {
		b.Fatalf("RegisterModel() error = %v", err)
	}
	if err := engine.Registry().Constrain(desc, "item", hayai.Required(), hayai.MinLength(1)); err != nil {
		b.Fatalf("Constrain() error = %v", err)
	}

	engine.Router().Route(
		hayai.NewHandler("create-order", "POST", "/orders",
			func(req *hayai.Request[orderInput]) (orderOutput, error) {
				return orderOutput{}, nil
			},
		),
	)
	buildEngine(b, engine)

	body := []byte(`{"quantity":2}`)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("POST", "/orders", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
	}
}

// BenchmarkHandlerQueryParams measures typed query coercion.
func BenchmarkHandlerQueryParams(b *testing.B) {
	engine := hayai.NewEngine(hayai.DefaultConfig())

	engine.Router().Route(
		hayai.NewHandler("list-orders", "GET", "/orders",
			func(req *hayai.Request[hayai.NoBody]) (orderOutput, error) {
				return orderOutput{Quantity: int(req.Params.QueryInt("limit"))}, nil
			},
		).WithQueryParam("limit", hayai.ScalarInteger, true, hayai.Min(1), hayai.Max(100)),
	)
	buildEngine(b, engine)

	req := httptest.NewRequest("GET", "/orders?limit=25", nil)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
	}
}
