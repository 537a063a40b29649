package hayai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/sentinel"
)

// Stream provides a typed interface for sending SSE events.
type Stream[T any] interface {
	// Send sends a data-only event.
	Send(data T) error
	// SendEvent sends a named event with data.
	SendEvent(event string, data T) error
	// SendComment sends a comment (useful for keep-alive).
	SendComment(comment string) error
	// Done returns a channel closed when client disconnects.
	Done() <-chan struct{}
}

// sseStream implements Stream[T] for Server-Sent Events.
type sseStream[T any] struct {
	w       http.ResponseWriter
	flusher http.Flusher
	done    <-chan struct{}
	mu      sync.Mutex
	closed  bool
}

// Send sends a data-only event.
func (s *sseStream[T]) Send(data T) error {
	return s.SendEvent("", data)
}

// SendEvent sends a named event with data.
func (s *sseStream[T]) SendEvent(event string, data T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("stream closed")
	}

	// Check if client disconnected
	select {
	case <-s.done:
		s.closed = true
		return errors.New("client disconnected")
	default:
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	if event != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
			s.closed = true
			return fmt.Errorf("failed to write event name: %w", err)
		}
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		s.closed = true
		return fmt.Errorf("failed to write event data: %w", err)
	}

	s.flusher.Flush()
	return nil
}

// SendComment sends a comment (useful for keep-alive).
func (s *sseStream[T]) SendComment(comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("stream closed")
	}

	select {
	case <-s.done:
		s.closed = true
		return errors.New("client disconnected")
	default:
	}

	if _, err := fmt.Fprintf(s.w, ": %s\n\n", comment); err != nil {
		s.closed = true
		return fmt.Errorf("failed to write comment: %w", err)
	}

	s.flusher.Flush()
	return nil
}

// Done returns a channel closed when client disconnects.
func (s *sseStream[T]) Done() <-chan struct{} {
	return s.done
}

// StreamHandler wraps a typed streaming handler function with its route
// specification. It implements Endpoint for SSE (Server-Sent Events)
// responses.
type StreamHandler[In, Out any] struct {
	// Core handler function receives Request and Stream for sending events.
	fn func(*Request[In], Stream[Out]) error

	desc RouteDescriptor

	// Type metadata from sentinel.
	InputMeta  sentinel.ModelMetadata
	OutputMeta sentinel.ModelMetadata

	maxBodySize int64

	// Middleware.
	middleware []func(http.Handler) http.Handler
}

// NewStreamHandler creates a new typed streaming handler with sentinel metadata.
func NewStreamHandler[In, Out any](name, method, path string, fn func(*Request[In], Stream[Out]) error) *StreamHandler[In, Out] {
	inputMeta := sentinel.Scan[In]()
	outputMeta := sentinel.Scan[Out]()

	desc := RouteDescriptor{
		Name:          name,
		Method:        method,
		Path:          path,
		SuccessStatus: http.StatusOK,
		Kind:          RouteStream,
	}
	if inputMeta.TypeName != noBodyTypeName {
		desc.Input = descriptorFromMetadata(inputMeta)
	}
	if outputMeta.TypeName != noBodyTypeName {
		desc.Output = descriptorFromMetadata(outputMeta)
	}

	return &StreamHandler[In, Out]{
		fn:          fn,
		desc:        desc,
		InputMeta:   inputMeta,
		OutputMeta:  outputMeta,
		maxBodySize: 10 * 1024 * 1024,
	}
}

// Describe implements Endpoint.
func (h *StreamHandler[In, Out]) Describe() *RouteDescriptor {
	return &h.desc
}

// Middleware implements Endpoint.
func (h *StreamHandler[In, Out]) Middleware() []func(http.Handler) http.Handler {
	return h.middleware
}

// Close implements Endpoint.
func (*StreamHandler[In, Out]) Close() error {
	return nil
}

// WithSummary sets the documentation summary.
func (h *StreamHandler[In, Out]) WithSummary(summary string) *StreamHandler[In, Out] {
	h.desc.Summary = summary
	return h
}

// WithDescription sets the documentation description.
func (h *StreamHandler[In, Out]) WithDescription(desc string) *StreamHandler[In, Out] {
	h.desc.Description = desc
	return h
}

// WithTags declares route-local tags.
func (h *StreamHandler[In, Out]) WithTags(tags ...string) *StreamHandler[In, Out] {
	h.desc.Tags = tags
	return h
}

// WithPathParam declares a path parameter.
func (h *StreamHandler[In, Out]) WithPathParam(name string, scalar ScalarKind, constraints ...Constraint) *StreamHandler[In, Out] {
	h.desc.Params = append(h.desc.Params, ParamSpec{
		Name:        name,
		Source:      ParamPath,
		Scalar:      scalar,
		Required:    true,
		Constraints: constraints,
	})
	return h
}

// WithQueryParam declares a query parameter.
func (h *StreamHandler[In, Out]) WithQueryParam(name string, scalar ScalarKind, required bool, constraints ...Constraint) *StreamHandler[In, Out] {
	h.desc.Params = append(h.desc.Params, ParamSpec{
		Name:        name,
		Source:      ParamQuery,
		Scalar:      scalar,
		Required:    required,
		Constraints: constraints,
	})
	return h
}

// WithErrorCodes declares which HTTP error status codes this handler may
// return. Errors can only be returned before the stream starts.
func (h *StreamHandler[In, Out]) WithErrorCodes(codes ...int) *StreamHandler[In, Out] {
	h.desc.ErrorCodes = codes
	return h
}

// WithSecurity declares this route's security requirement explicitly.
func (h *StreamHandler[In, Out]) WithSecurity(schemes ...string) *StreamHandler[In, Out] {
	h.desc.Security = append([]string(nil), schemes...)
	h.desc.SecuritySet = true
	return h
}

// WithDependencies declares the typed services this handler requires.
func (h *StreamHandler[In, Out]) WithDependencies(descs ...TypeDescriptor) *StreamHandler[In, Out] {
	h.desc.Requires = append(h.desc.Requires, descs...)
	return h
}

// WithMiddleware adds middleware to this handler.
func (h *StreamHandler[In, Out]) WithMiddleware(middleware ...func(http.Handler) http.Handler) *StreamHandler[In, Out] {
	h.middleware = append(h.middleware, middleware...)
	return h
}

// Process implements Endpoint.
func (h *StreamHandler[In, Out]) Process(ctx context.Context, r *http.Request, w http.ResponseWriter, inv *Invocation) (int, error) {
	capitan.Debug(ctx, StreamExecuting,
		HandlerNameKey.Field(h.desc.Name),
	)

	// Verify streaming support
	flusher, ok := w.(http.Flusher)
	if !ok {
		capitan.Error(ctx, StreamError,
			HandlerNameKey.Field(h.desc.Name),
			ErrorKey.Field("streaming not supported"),
		)
		writeErrorResponse(w, http.StatusInternalServerError)
		return http.StatusInternalServerError, errors.New("streaming not supported")
	}

	var fieldErrs []FieldError
	params := extractParams(ctx, r, inv, &fieldErrs)

	// Parse request body (for POST streams with initial payload). An empty
	// body still validates as an empty object so required fields surface.
	var input In
	if !inv.Route.Input.IsZero() {
		var body []byte
		if r.Body != nil {
			read, readErr := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize))
			if readErr != nil {
				capitan.Error(ctx, RequestBodyReadError,
					HandlerNameKey.Field(h.desc.Name),
					ErrorKey.Field(readErr.Error()),
				)
				writeErrorResponse(w, http.StatusBadRequest)
				return http.StatusBadRequest, readErr
			}
			r.Body.Close()
			body = read
		}

		node, resolveErr := inv.Registry.Resolve(inv.Route.Input)
		if resolveErr != nil {
			writeErrorResponse(w, http.StatusInternalServerError)
			return http.StatusInternalServerError, resolveErr
		}

		contentType := r.Header.Get("Content-Type")
		generic := any(map[string]any{})
		if len(body) > 0 {
			decoded, decodeErr := decodeGeneric(contentType, body)
			if decodeErr != nil {
				capitan.Error(ctx, RequestBodyParseError,
					HandlerNameKey.Field(h.desc.Name),
					ErrorKey.Field(decodeErr.Error()),
				)
				writeErrorResponse(w, http.StatusUnprocessableEntity)
				return http.StatusUnprocessableEntity, decodeErr
			}
			generic = decoded
		}

		fieldErrs = append(fieldErrs, inv.Pipeline.Validate(generic, node)...)

		if len(fieldErrs) == 0 && len(body) > 0 {
			if unmarshalErr := decodePayload(contentType, body, &input); unmarshalErr != nil {
				capitan.Error(ctx, RequestBodyParseError,
					HandlerNameKey.Field(h.desc.Name),
					ErrorKey.Field(unmarshalErr.Error()),
				)
				writeErrorResponse(w, http.StatusUnprocessableEntity)
				return http.StatusUnprocessableEntity, unmarshalErr
			}
		}
	}

	if len(fieldErrs) > 0 {
		capitan.Warn(ctx, RequestValidationFailed,
			HandlerNameKey.Field(h.desc.Name),
			FieldErrorCountKey.Field(len(fieldErrs)),
		)
		writeFieldErrorResponse(w, fieldErrs)
		return http.StatusUnprocessableEntity, ErrUnprocessableEntity
	}

	// Dependencies resolve before headers are written; failure here still
	// yields a well-formed error response.
	for _, req := range inv.Route.Requires {
		if _, err := inv.Scope.Resolve(ctx, req); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			capitan.Error(ctx, HandlerDependencyUnavailable,
				HandlerNameKey.Field(h.desc.Name),
				TypeNameKey.Field(req.Name),
				ErrorKey.Field(err.Error()),
			)
			writeErrorResponse(w, http.StatusServiceUnavailable)
			return http.StatusServiceUnavailable, err
		}
	}

	// Create Request for callback.
	req := &Request[In]{
		Context:  ctx,
		Request:  r,
		Params:   params,
		Body:     input,
		Identity: IdentityFrom(ctx),
		Scope:    inv.Scope,
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	capitan.Info(ctx, StreamStarted,
		HandlerNameKey.Field(h.desc.Name),
	)

	stream := &sseStream[Out]{
		w:       w,
		flusher: flusher,
		done:    ctx.Done(),
	}

	// Call user handler (blocks until stream ends)
	if err := h.fn(req, stream); err != nil {
		if isSentinelError(err) {
			// Cannot write an error response after headers are sent, just log.
			capitan.Warn(ctx, StreamError,
				HandlerNameKey.Field(h.desc.Name),
				ErrorKey.Field(err.Error()),
			)
			return http.StatusOK, err
		}

		if errors.Is(err, context.Canceled) || err.Error() == "client disconnected" {
			capitan.Info(ctx, StreamClientDisconnected,
				HandlerNameKey.Field(h.desc.Name),
			)
			return http.StatusOK, nil
		}

		capitan.Error(ctx, StreamError,
			HandlerNameKey.Field(h.desc.Name),
			ErrorKey.Field(err.Error()),
		)
		return http.StatusOK, err
	}

	capitan.Info(ctx, StreamEnded,
		HandlerNameKey.Field(h.desc.Name),
	)

	return http.StatusOK, nil
}
