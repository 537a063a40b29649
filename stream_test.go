package hayai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type tickEvent struct {
	Seq int `json:"seq"`
}

func newSSEStream[T any](w http.ResponseWriter, done <-chan struct{}) *sseStream[T] {
	flusher, _ := w.(http.Flusher)
	return &sseStream[T]{w: w, flusher: flusher, done: done}
}

func TestSSEStreamSend(t *testing.T) {
	w := httptest.NewRecorder()
	stream := newSSEStream[tickEvent](w, make(chan struct{}))

	if err := stream.Send(tickEvent{Seq: 1}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := w.Body.String(); got != "data: {\"seq\":1}\n\n" {
		t.Errorf("body = %q", got)
	}
}

func TestSSEStreamSendEvent(t *testing.T) {
	w := httptest.NewRecorder()
	stream := newSSEStream[tickEvent](w, make(chan struct{}))

	if err := stream.SendEvent("tick", tickEvent{Seq: 2}); err != nil {
		t.Fatalf("SendEvent() error = %v", err)
	}
	got := w.Body.String()
	if !strings.HasPrefix(got, "event: tick\n") {
		t.Errorf("body = %q, want event name line first", got)
	}
	if !strings.Contains(got, "data: {\"seq\":2}\n\n") {
		t.Errorf("body = %q, want data line", got)
	}
}

func TestSSEStreamSendComment(t *testing.T) {
	w := httptest.NewRecorder()
	stream := newSSEStream[tickEvent](w, make(chan struct{}))

	if err := stream.SendComment("keep-alive"); err != nil {
		t.Fatalf("SendComment() error = %v", err)
	}
	if got := w.Body.String(); got != ": keep-alive\n\n" {
		t.Errorf("body = %q", got)
	}
}

func TestSSEStreamClientDisconnect(t *testing.T) {
	w := httptest.NewRecorder()
	done := make(chan struct{})
	stream := newSSEStream[tickEvent](w, done)

	close(done)
	if err := stream.Send(tickEvent{Seq: 3}); err == nil {
		t.Fatal("Send() after disconnect should error")
	}
	// The stream stays closed even if the channel check would now pass.
	if err := stream.SendComment("late"); err == nil {
		t.Error("SendComment() on a closed stream should error")
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want nothing written", w.Body.String())
	}
}

func TestStreamHandlerProcess(t *testing.T) {
	registry := NewSchemaRegistry()
	if _, err := RegisterModel[tickEvent](registry); err != nil {
		t.Fatalf("RegisterModel() error = %v", err)
	}
	graph := NewDependencyGraph()

	h := NewStreamHandler("ticks", "GET", "/ticks", func(req *Request[NoBody], stream Stream[tickEvent]) error {
		for i := 1; i <= 3; i++ {
			if err := stream.Send(tickEvent{Seq: i}); err != nil {
				return err
			}
		}
		return nil
	})

	rd := h.Describe()
	if rd.Kind != RouteStream {
		t.Fatalf("Kind = %v, want RouteStream", rd.Kind)
	}

	r := httptest.NewRequest("GET", "/ticks", nil)
	w, status, err := invokeEndpoint(t, h, r, nil, registry, graph)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}

	events := strings.Count(w.Body.String(), "data: ")
	if events != 3 {
		t.Errorf("events = %d, want 3\nbody:\n%s", events, w.Body.String())
	}
}

func TestStreamHandlerProcessValidation(t *testing.T) {
	registry := NewSchemaRegistry()
	graph := NewDependencyGraph()

	h := NewStreamHandler("ticks", "GET", "/ticks/{channel}", func(req *Request[NoBody], stream Stream[tickEvent]) error {
		t.Fatal("stream body must not run on validation failure")
		return nil
	}).WithPathParam("channel", ScalarString, MinLength(1))

	r := httptest.NewRequest("GET", "/ticks/", nil)
	w, status, err := invokeEndpoint(t, h, r, nil, registry, graph)
	if err == nil {
		t.Fatal("expected validation error for the missing path param")
	}
	if status != http.StatusUnprocessableEntity || w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d/%d, want 422", status, w.Code)
	}
}

func TestStreamHandlerEmptyBodyRequiredFields(t *testing.T) {
	registry := newNoteRegistry(t)
	if _, err := RegisterModel[tickEvent](registry); err != nil {
		t.Fatalf("RegisterModel() error = %v", err)
	}
	graph := NewDependencyGraph()

	h := NewStreamHandler("note-feed", "POST", "/feed", func(req *Request[noteInput], stream Stream[tickEvent]) error {
		t.Fatal("stream body must not run without a valid body")
		return nil
	})

	// Empty POST body validates as an empty object, not a free pass.
	r := httptest.NewRequest("POST", "/feed", nil)
	r.Header.Set("Content-Type", "application/json")

	w, status, err := invokeEndpoint(t, h, r, nil, registry, graph)
	if !errors.Is(err, ErrUnprocessableEntity) {
		t.Fatalf("Process() error = %v, want ErrUnprocessableEntity", err)
	}
	if status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", status)
	}
	if !strings.Contains(w.Body.String(), `"title"`) {
		t.Errorf("body = %q, want required title reported", w.Body.String())
	}
}

func TestStreamHandlerDependencyFailure(t *testing.T) {
	registry := NewSchemaRegistry()
	graph := NewDependencyGraph()

	failure := errors.New("feed unavailable")
	desc := BindProvider(graph, ScopePerRequest, func(ctx context.Context, scope *RequestScope) (dbService, error) {
		return dbService{}, failure
	})
	if err := graph.Finalize(context.Background(), nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	h := NewStreamHandler("ticks", "GET", "/ticks", func(req *Request[NoBody], stream Stream[tickEvent]) error {
		t.Fatal("stream body must not run when a dependency fails")
		return nil
	}).WithDependencies(desc)

	r := httptest.NewRequest("GET", "/ticks", nil)
	w, status, err := invokeEndpoint(t, h, r, nil, registry, graph)
	if !errors.Is(err, failure) {
		t.Errorf("Process() error = %v, want wrapped provider failure", err)
	}
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
	// Headers must not have been switched to SSE before the failure.
	if ct := w.Header().Get("Content-Type"); ct == "text/event-stream" {
		t.Error("SSE headers written before dependencies resolved")
	}
}
