package hayai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/sentinel"
)

// Handler wraps a typed handler function with the declarative route
// specification used for composition, validation and documentation.
// It implements the Endpoint interface.
type Handler[In, Out any] struct {
	// Core handler function receives Request with typed body.
	fn func(*Request[In]) (Out, error)

	// Declarative specification
	desc RouteDescriptor

	// Runtime configuration
	responseHeaders map[string]string // Default response headers.
	maxBodySize     int64             // Maximum request body size in bytes (0 = unlimited, default: 10MB).

	// Type metadata from sentinel.
	InputMeta  sentinel.ModelMetadata
	OutputMeta sentinel.ModelMetadata

	// Middleware.
	middleware []func(http.Handler) http.Handler
}

// NewHandler creates a new typed handler with sentinel metadata.
func NewHandler[In, Out any](name, method, path string, fn func(*Request[In]) (Out, error)) *Handler[In, Out] {
	inputMeta := sentinel.Scan[In]()
	outputMeta := sentinel.Scan[Out]()

	desc := RouteDescriptor{
		Name:          name,
		Method:        method,
		Path:          path,
		SuccessStatus: http.StatusOK, // Default to 200.
		Kind:          RouteUnary,
	}
	if inputMeta.TypeName != noBodyTypeName {
		desc.Input = descriptorFromMetadata(inputMeta)
	}
	if outputMeta.TypeName != noBodyTypeName {
		desc.Output = descriptorFromMetadata(outputMeta)
	}

	return &Handler[In, Out]{
		fn:              fn,
		desc:            desc,
		responseHeaders: make(map[string]string),
		maxBodySize:     10 * 1024 * 1024, // Default to 10MB.
		InputMeta:       inputMeta,
		OutputMeta:      outputMeta,
	}
}

// Describe implements Endpoint.
func (h *Handler[In, Out]) Describe() *RouteDescriptor {
	return &h.desc
}

// Close implements Endpoint.
func (*Handler[In, Out]) Close() error {
	return nil
}

// Middleware implements Endpoint.
func (h *Handler[In, Out]) Middleware() []func(http.Handler) http.Handler {
	return h.middleware
}

// WithSummary sets the documentation summary.
func (h *Handler[In, Out]) WithSummary(summary string) *Handler[In, Out] {
	h.desc.Summary = summary
	return h
}

// WithDescription sets the documentation description.
func (h *Handler[In, Out]) WithDescription(desc string) *Handler[In, Out] {
	h.desc.Description = desc
	return h
}

// WithTags declares route-local tags, unioned with inherited router tags at
// composition.
func (h *Handler[In, Out]) WithTags(tags ...string) *Handler[In, Out] {
	h.desc.Tags = tags
	return h
}

// WithSuccessStatus sets the HTTP status code for successful responses.
func (h *Handler[In, Out]) WithSuccessStatus(status int) *Handler[In, Out] {
	h.desc.SuccessStatus = status
	return h
}

// WithErrorCodes declares which HTTP error status codes this handler may return.
// Undeclared sentinel errors are converted to 500 Internal Server Error.
func (h *Handler[In, Out]) WithErrorCodes(codes ...int) *Handler[In, Out] {
	h.desc.ErrorCodes = codes
	return h
}

// WithPathParam declares a path parameter with its scalar kind and optional
// constraints. Path parameters are always required.
func (h *Handler[In, Out]) WithPathParam(name string, scalar ScalarKind, constraints ...Constraint) *Handler[In, Out] {
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
func (h *Handler[In, Out]) WithQueryParam(name string, scalar ScalarKind, required bool, constraints ...Constraint) *Handler[In, Out] {
	h.desc.Params = append(h.desc.Params, ParamSpec{
		Name:        name,
		Source:      ParamQuery,
		Scalar:      scalar,
		Required:    required,
		Constraints: constraints,
	})
	return h
}

// WithHeaderParam declares a header parameter.
func (h *Handler[In, Out]) WithHeaderParam(name string, scalar ScalarKind, required bool, constraints ...Constraint) *Handler[In, Out] {
	h.desc.Params = append(h.desc.Params, ParamSpec{
		Name:        name,
		Source:      ParamHeader,
		Scalar:      scalar,
		Required:    required,
		Constraints: constraints,
	})
	return h
}

// WithSecurity declares this route's security requirement explicitly,
// replacing anything inherited from the router chain. Calling it with no
// schemes declares "no security".
func (h *Handler[In, Out]) WithSecurity(schemes ...string) *Handler[In, Out] {
	h.desc.Security = append([]string(nil), schemes...)
	h.desc.SecuritySet = true
	return h
}

// WithDependencies declares the typed services this handler requires. The
// graph validates them against the router chain at finalization and resolves
// them before the handler body runs.
func (h *Handler[In, Out]) WithDependencies(descs ...TypeDescriptor) *Handler[In, Out] {
	h.desc.Requires = append(h.desc.Requires, descs...)
	return h
}

// WithResponseHeaders sets default response headers for this handler.
func (h *Handler[In, Out]) WithResponseHeaders(headers map[string]string) *Handler[In, Out] {
	h.responseHeaders = headers
	return h
}

// WithMaxBodySize sets the maximum request body size in bytes for this handler.
// Set to 0 for unlimited (not recommended for production).
func (h *Handler[In, Out]) WithMaxBodySize(size int64) *Handler[In, Out] {
	h.maxBodySize = size
	return h
}

// WithMiddleware adds middleware to this handler and returns the handler for chaining.
func (h *Handler[In, Out]) WithMiddleware(middleware ...func(http.Handler) http.Handler) *Handler[In, Out] {
	h.middleware = append(h.middleware, middleware...)
	return h
}

// Process implements Endpoint.
func (h *Handler[In, Out]) Process(ctx context.Context, r *http.Request, w http.ResponseWriter, inv *Invocation) (int, error) {
	capitan.Debug(ctx, HandlerExecuting,
		HandlerNameKey.Field(h.desc.Name),
	)

	// Extract, coerce and validate parameters, accumulating every failure.
	var fieldErrs []FieldError
	params := extractParams(ctx, r, inv, &fieldErrs)

	// Parse and validate the request body. An empty body still validates as
	// an empty object so missing required fields surface in the error list.
	var input In
	if !inv.Route.Input.IsZero() {
		var body []byte
		if r.Body != nil {
			var bodyReader io.Reader = r.Body
			if h.maxBodySize > 0 {
				bodyReader = io.LimitReader(r.Body, h.maxBodySize)
			}

			read, readErr := io.ReadAll(bodyReader)
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
			// All types are registered at build time; reaching this is an
			// internal bug. Fail this request, never retry.
			capitan.Error(ctx, RequestBodyParseError,
				HandlerNameKey.Field(h.desc.Name),
				ErrorKey.Field(resolveErr.Error()),
			)
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

	// Resolve declared dependencies before invoking the handler body; a
	// provider failure means the body never runs, not even partially.
	for _, req := range inv.Route.Requires {
		if _, err := inv.Scope.Resolve(ctx, req); err != nil {
			if ctx.Err() != nil {
				// Client disconnected; emit nothing to the dead connection.
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

	// Call user handler.
	output, err := h.fn(req)
	if err != nil {
		// Check if this is a sentinel error.
		if isSentinelError(err) {
			status := mapSentinelToStatus(err)

			// Validate that this error code is declared.
			if !h.desc.declaresErrorCode(status) {
				// Undeclared sentinel error - programming error.
				capitan.Warn(ctx, HandlerUndeclaredSentinel,
					HandlerNameKey.Field(h.desc.Name),
					ErrorKey.Field(err.Error()),
					StatusCodeKey.Field(status),
				)
				writeErrorResponse(w, http.StatusInternalServerError)
				return http.StatusInternalServerError, fmt.Errorf("undeclared sentinel error %w (add %d to WithErrorCodes)", err, status)
			}

			// Declared sentinel error - successful handling.
			capitan.Warn(ctx, HandlerSentinelError,
				HandlerNameKey.Field(h.desc.Name),
				ErrorKey.Field(err.Error()),
				StatusCodeKey.Field(status),
			)
			writeErrorResponse(w, status)
			return status, nil
		}

		// Real error.
		capitan.Error(ctx, HandlerError,
			HandlerNameKey.Field(h.desc.Name),
			ErrorKey.Field(err.Error()),
		)
		writeErrorResponse(w, http.StatusInternalServerError)
		return http.StatusInternalServerError, err
	}

	if ctx.Err() != nil {
		// Cancelled while the handler ran; no partial response.
		return 0, ctx.Err()
	}

	// Marshal response negotiating the wire format from Accept.
	body, contentType, err := encodePayload(r.Header.Get("Accept"), output)
	if err != nil {
		capitan.Error(ctx, RequestResponseMarshalError,
			HandlerNameKey.Field(h.desc.Name),
			ErrorKey.Field(err.Error()),
		)
		writeErrorResponse(w, http.StatusInternalServerError)
		return http.StatusInternalServerError, err
	}

	// Write response headers.
	for key, value := range h.responseHeaders {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", contentType)

	// Write status and body.
	w.WriteHeader(h.desc.SuccessStatus)
	w.Write(body)

	capitan.Info(ctx, HandlerSuccess,
		HandlerNameKey.Field(h.desc.Name),
		StatusCodeKey.Field(h.desc.SuccessStatus),
	)

	return h.desc.SuccessStatus, nil
}

// declaresErrorCode checks if an error status code was declared via WithErrorCodes.
func (rd *RouteDescriptor) declaresErrorCode(status int) bool {
	for _, code := range rd.ErrorCodes {
		if code == status {
			return true
		}
	}
	return false
}

// extractParams extracts declared parameters from the request, coercing each
// to its scalar kind and applying its constraints. Failures accumulate in
// errs; extraction never stops at the first problem.
func extractParams(ctx context.Context, r *http.Request, inv *Invocation, errs *[]FieldError) *Params {
	params := &Params{
		Path:   make(map[string]any),
		Query:  make(map[string]any),
		Header: make(map[string]any),
	}

	query := r.URL.Query()
	rctx := chi.RouteContext(ctx)

	for _, spec := range inv.Route.Params {
		var raw string
		var present bool

		switch spec.Source {
		case ParamPath:
			if rctx != nil {
				raw = rctx.URLParam(spec.Name)
				present = raw != ""
			}
		case ParamQuery:
			if values := query[spec.Name]; len(values) > 0 {
				raw = values[0]
				present = true
			}
		case ParamHeader:
			raw = r.Header.Get(spec.Name)
			present = raw != ""
		}

		if !present {
			if spec.Required {
				*errs = append(*errs, FieldError{
					Field:   spec.Name,
					Kind:    string(ConstraintRequired),
					Message: fmt.Sprintf("%s parameter is required", spec.Source),
				})
			}
			continue
		}

		coerced := inv.Pipeline.ValidateParam(spec, raw, errs)
		switch spec.Source {
		case ParamPath:
			params.Path[spec.Name] = coerced
		case ParamQuery:
			params.Query[spec.Name] = coerced
		case ParamHeader:
			params.Header[spec.Name] = coerced
		}
	}

	return params
}

// isSentinelError checks if an error is one of our sentinel errors
// that indicate specific HTTP error status codes.
func isSentinelError(err error) bool {
	return errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnprocessableEntity) ||
		errors.Is(err, ErrTooManyRequests) ||
		errors.Is(err, ErrServiceUnavailable)
}

// Canned error responses - consistent across all handlers.
var cannedErrorResponses = map[int][]byte{
	http.StatusBadRequest:          []byte(`{"error":"Bad Request"}`),
	http.StatusUnauthorized:        []byte(`{"error":"Unauthorized"}`),
	http.StatusForbidden:           []byte(`{"error":"Forbidden"}`),
	http.StatusNotFound:            []byte(`{"error":"Not Found"}`),
	http.StatusConflict:            []byte(`{"error":"Conflict"}`),
	http.StatusUnprocessableEntity: []byte(`{"error":"Unprocessable Entity"}`),
	http.StatusTooManyRequests:     []byte(`{"error":"Too Many Requests"}`),
	http.StatusInternalServerError: []byte(`{"error":"Internal Server Error"}`),
	http.StatusServiceUnavailable:  []byte(`{"error":"Service Unavailable"}`),
}

// mapSentinelToStatus maps sentinel errors to HTTP status codes.
func mapSentinelToStatus(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnprocessableEntity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorResponse writes a canned JSON error response.
func writeErrorResponse(w http.ResponseWriter, status int) {
	body, exists := cannedErrorResponses[status]
	if !exists {
		body = cannedErrorResponses[http.StatusInternalServerError]
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	w.Write(body)
}

// writeFieldErrorResponse writes the complete validation failure list as a
// structured response enumerating every offending field.
func writeFieldErrorResponse(w http.ResponseWriter, fieldErrs []FieldError) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusUnprocessableEntity)

	response := map[string]any{
		"error":  "Validation failed",
		"fields": fieldErrs,
	}

	//nolint:errchkjson // Standard practice after WriteHeader
	json.NewEncoder(w).Encode(response)
}
