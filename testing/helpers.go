// Package testing provides test utilities for hayai.
package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hayai-dev/hayai"
)

// ResponseCapture wraps httptest.ResponseRecorder with convenient access methods.
type ResponseCapture struct {
	*httptest.ResponseRecorder
}

// NewResponseCapture creates a new ResponseCapture.
func NewResponseCapture() *ResponseCapture {
	return &ResponseCapture{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// StatusCode returns the recorded status code.
func (r *ResponseCapture) StatusCode() int {
	return r.Code
}

// BodyBytes returns the response body as bytes.
func (r *ResponseCapture) BodyBytes() []byte {
	return r.Body.Bytes()
}

// BodyString returns the response body as a string.
func (r *ResponseCapture) BodyString() string {
	return r.Body.String()
}

// DecodeJSON decodes the response body into the provided value.
func (r *ResponseCapture) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body.Bytes(), v)
}

// ContentType returns the Content-Type header value.
func (r *ResponseCapture) ContentType() string {
	return r.Header().Get("Content-Type")
}

// RequestBuilder provides a fluent interface for building test requests.
type RequestBuilder struct {
	method  string
	path    string
	body    io.Reader
	headers map[string]string
	ctx     context.Context
}

// NewRequestBuilder creates a new RequestBuilder with the given method and path.
func NewRequestBuilder(method, path string) *RequestBuilder {
	return &RequestBuilder{
		method:  method,
		path:    path,
		headers: make(map[string]string),
		ctx:     context.Background(),
	}
}

// WithBody sets the request body from a reader.
func (b *RequestBuilder) WithBody(body io.Reader) *RequestBuilder {
	b.body = body
	return b
}

// WithJSON sets the request body as JSON-encoded data.
func (b *RequestBuilder) WithJSON(v any) *RequestBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("htesting: failed to marshal JSON: %v", err))
	}
	b.body = bytes.NewReader(data)
	b.headers["Content-Type"] = "application/json"
	return b
}

// WithHeader adds a header to the request.
func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.headers[key] = value
	return b
}

// WithContext sets the request context.
func (b *RequestBuilder) WithContext(ctx context.Context) *RequestBuilder {
	b.ctx = ctx
	return b
}

// Build creates the http.Request.
func (b *RequestBuilder) Build() *http.Request {
	req := httptest.NewRequest(b.method, b.path, b.body)
	req = req.WithContext(b.ctx)
	for key, value := range b.headers {
		req.Header.Set(key, value)
	}
	return req
}

// TestEngine creates a pre-configured engine for testing.
func TestEngine() *hayai.Engine {
	return hayai.NewEngine(hayai.DefaultConfig().WithHost("localhost").WithPort(0))
}

// TestEngineWithAuth creates an engine with the given authenticator.
func TestEngineWithAuth(auth hayai.Authenticator) *hayai.Engine {
	return TestEngine().WithAuthenticator(auth)
}

// MustBuild builds the engine and fails the test on error.
func MustBuild(t testing.TB, engine *hayai.Engine) {
	t.Helper()
	if err := engine.Build(context.Background()); err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
}

// ServeRequest is a convenience function that executes a request against a
// built engine.
func ServeRequest(engine *hayai.Engine, method, path string, body any) *ResponseCapture {
	builder := NewRequestBuilder(method, path)
	if body != nil {
		builder.WithJSON(body)
	}
	req := builder.Build()

	capture := NewResponseCapture()
	engine.ServeHTTP(capture, req)
	return capture
}

// ServeRequestWithHeaders executes a request with custom headers.
func ServeRequestWithHeaders(engine *hayai.Engine, method, path string, body any, headers map[string]string) *ResponseCapture {
	builder := NewRequestBuilder(method, path)
	if body != nil {
		builder.WithJSON(body)
	}
	for key, value := range headers {
		builder.WithHeader(key, value)
	}
	req := builder.Build()

	capture := NewResponseCapture()
	engine.ServeHTTP(capture, req)
	return capture
}

// MockIdentity implements hayai.Identity for testing.
type MockIdentity struct {
	id       string
	tenantID string
	scopes   []string
}

// NewMockIdentity creates a new MockIdentity with the given ID.
func NewMockIdentity(id string) *MockIdentity {
	return &MockIdentity{
		id:     id,
		scopes: make([]string, 0),
	}
}

// ID returns the identity ID.
func (m *MockIdentity) ID() string { return m.id }

// TenantID returns the tenant ID.
func (m *MockIdentity) TenantID() string { return m.tenantID }

// HasScope checks if the identity has the given scope.
func (m *MockIdentity) HasScope(scope string) bool {
	for _, s := range m.scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// WithTenantID sets the tenant ID.
func (m *MockIdentity) WithTenantID(tenantID string) *MockIdentity {
	m.tenantID = tenantID
	return m
}

// WithScopes sets the scopes.
func (m *MockIdentity) WithScopes(scopes ...string) *MockIdentity {
	m.scopes = scopes
	return m
}

// StaticAuthenticator returns an authenticator that accepts every request as
// the given identity.
func StaticAuthenticator(identity hayai.Identity) hayai.Authenticator {
	return func(*http.Request, []string) (hayai.Identity, error) {
		return identity, nil
	}
}

// RejectAuthenticator returns an authenticator that rejects every request.
func RejectAuthenticator(err error) hayai.Authenticator {
	return func(*http.Request, []string) (hayai.Identity, error) {
		return nil, err
	}
}

// AssertStatus asserts the response has the expected status code.
func AssertStatus(t testing.TB, capture *ResponseCapture, expected int) {
	t.Helper()
	if capture.StatusCode() != expected {
		t.Errorf("expected status %d, got %d (body: %s)", expected, capture.StatusCode(), capture.BodyString())
	}
}

// AssertJSON asserts the response body matches the expected value when decoded as JSON.
func AssertJSON(t testing.TB, capture *ResponseCapture, expected any) {
	t.Helper()
	expectedBytes, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected value: %v", err)
	}
	actualBytes := capture.BodyBytes()

	var expectedMap, actualMap any
	err = json.Unmarshal(expectedBytes, &expectedMap)
	if err != nil {
		t.Fatalf("failed to unmarshal expected JSON: %v", err)
	}
	err = json.Unmarshal(actualBytes, &actualMap)
	if err != nil {
		t.Fatalf("failed to unmarshal actual JSON: %v", err)
	}

	expectedNorm, err := json.Marshal(expectedMap)
	if err != nil {
		t.Fatalf("failed to normalize expected JSON: %v", err)
	}
	actualNorm, err := json.Marshal(actualMap)
	if err != nil {
		t.Fatalf("failed to normalize actual JSON: %v", err)
	}

	if !bytes.Equal(expectedNorm, actualNorm) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedNorm, actualNorm)
	}
}

// AssertContentType asserts the response has the expected Content-Type.
func AssertContentType(t testing.TB, capture *ResponseCapture, expected string) {
	t.Helper()
	if capture.ContentType() != expected {
		t.Errorf("expected Content-Type %q, got %q", expected, capture.ContentType())
	}
}

// AssertFieldErrors asserts the response is a validation failure naming each
// of the expected fields.
func AssertFieldErrors(t testing.TB, capture *ResponseCapture, fields ...string) {
	t.Helper()
	var resp struct {
		Error  string `json:"error"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	if err := capture.DecodeJSON(&resp); err != nil {
		t.Fatalf("failed to decode validation response: %v", err)
	}
	for _, want := range fields {
		found := false
		for _, fe := range resp.Fields {
			if fe.Field == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected field error for %q, got %s", want, capture.BodyString())
		}
	}
}

// SSE Test Helpers

// SSEEvent represents a parsed Server-Sent Event.
type SSEEvent struct {
	Event string // Event type (empty for data-only events)
	Data  string // Raw data string
	ID    string // Event ID (if present)
}

// DecodeJSON decodes the event data into the provided value.
func (e *SSEEvent) DecodeJSON(v any) error {
	return json.Unmarshal([]byte(e.Data), v)
}

// StreamCapture wraps a response recorder with SSE-specific methods.
type StreamCapture struct {
	*httptest.ResponseRecorder
	flushed int
}

// NewStreamCapture creates a new StreamCapture.
func NewStreamCapture() *StreamCapture {
	return &StreamCapture{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// Flush implements http.Flusher.
func (s *StreamCapture) Flush() {
	s.flushed++
}

// FlushCount returns the number of times Flush was called.
func (s *StreamCapture) FlushCount() int {
	return s.flushed
}

// ContentType returns the Content-Type header value.
func (s *StreamCapture) ContentType() string {
	return s.Header().Get("Content-Type")
}

// IsSSE returns true if the response has SSE content type.
func (s *StreamCapture) IsSSE() bool {
	return s.ContentType() == "text/event-stream"
}

// ParseEvents parses all SSE events from the response body.
func (s *StreamCapture) ParseEvents() []SSEEvent {
	return ParseSSEEvents(s.Body.String())
}

// EventCount returns the number of data events in the response.
func (s *StreamCapture) EventCount() int {
	return len(s.ParseEvents())
}

// ParseSSEEvents parses SSE events from a string.
func ParseSSEEvents(body string) []SSEEvent {
	var events []SSEEvent
	var currentEvent SSEEvent

	lines := splitLines(body)
	for _, line := range lines {
		switch {
		case line == "":
			// Empty line marks end of event
			if currentEvent.Data != "" {
				events = append(events, currentEvent)
				currentEvent = SSEEvent{}
			}
		case len(line) > 6 && line[:6] == "event:":
			currentEvent.Event = trimPrefix(line, "event:")
		case len(line) > 5 && line[:5] == "data:":
			currentEvent.Data = trimPrefix(line, "data:")
		case len(line) > 3 && line[:3] == "id:":
			currentEvent.ID = trimPrefix(line, "id:")
		case line[0] == ':':
			// Comment, ignore
		}
	}

	// Handle final event if no trailing newline
	if currentEvent.Data != "" {
		events = append(events, currentEvent)
	}

	return events
}

// splitLines splits a string into lines.
func splitLines(s string) []string {
	var lines []string
	var current []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, string(current))
			current = nil
		} else if s[i] != '\r' {
			current = append(current, s[i])
		}
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	return lines
}

// trimPrefix trims the prefix and leading/trailing whitespace.
func trimPrefix(s, prefix string) string {
	s = s[len(prefix):]
	for s != "" && s[0] == ' ' {
		s = s[1:]
	}
	for s != "" && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

// ServeStream executes a streaming request and returns a StreamCapture.
func ServeStream(engine *hayai.Engine, method, path string, body any) *StreamCapture {
	builder := NewRequestBuilder(method, path)
	if body != nil {
		builder.WithJSON(body)
	}
	req := builder.Build()

	capture := NewStreamCapture()
	engine.ServeHTTP(capture, req)
	return capture
}

// ServeStreamWithContext executes a streaming request with a custom context.
func ServeStreamWithContext(ctx context.Context, engine *hayai.Engine, method, path string, body any) *StreamCapture {
	builder := NewRequestBuilder(method, path).WithContext(ctx)
	if body != nil {
		builder.WithJSON(body)
	}
	req := builder.Build()

	capture := NewStreamCapture()
	engine.ServeHTTP(capture, req)
	return capture
}

// AssertSSE asserts the response is a valid SSE stream.
func AssertSSE(t testing.TB, capture *StreamCapture) {
	t.Helper()
	if !capture.IsSSE() {
		t.Errorf("expected Content-Type 'text/event-stream', got %q", capture.ContentType())
	}
	if capture.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", capture.Code)
	}
}

// AssertEventCount asserts the stream contains the expected number of events.
func AssertEventCount(t testing.TB, capture *StreamCapture, expected int) {
	t.Helper()
	actual := capture.EventCount()
	if actual != expected {
		t.Errorf("expected %d events, got %d", expected, actual)
	}
}
