package hayai

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/sentinel"
)

// Socket provides a typed interface over an upgraded WebSocket connection.
// In is the inbound message type, Out the outbound message type.
type Socket[In, Out any] interface {
	// Receive blocks until the next inbound message arrives.
	Receive() (In, error)
	// Send sends an outbound message.
	Send(data Out) error
	// Close closes the connection.
	Close() error
	// Done returns a channel closed when the request context ends.
	Done() <-chan struct{}
}

// wsSocket implements Socket[In, Out] over a gorilla connection.
type wsSocket[In, Out any] struct {
	conn *websocket.Conn
	done <-chan struct{}
}

// Receive blocks until the next inbound message arrives.
func (s *wsSocket[In, Out]) Receive() (In, error) {
	var msg In
	if err := s.conn.ReadJSON(&msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// Send sends an outbound message.
func (s *wsSocket[In, Out]) Send(data Out) error {
	return s.conn.WriteJSON(data)
}

// Close closes the connection.
func (s *wsSocket[In, Out]) Close() error {
	return s.conn.Close()
}

// Done returns a channel closed when the request context ends.
func (s *wsSocket[In, Out]) Done() <-chan struct{} {
	return s.done
}

// SocketHandler wraps a typed WebSocket handler function with its route
// specification. It implements Endpoint. In and Out describe the inbound
// and outbound message shapes, which the generated document publishes as
// component schemas.
type SocketHandler[In, Out any] struct {
	fn func(*Request[NoBody], Socket[In, Out]) error

	desc RouteDescriptor

	// Type metadata from sentinel.
	InputMeta  sentinel.ModelMetadata
	OutputMeta sentinel.ModelMetadata

	upgrader websocket.Upgrader

	// Middleware.
	middleware []func(http.Handler) http.Handler
}

// NewSocketHandler creates a new typed WebSocket handler with sentinel metadata.
// WebSocket routes are always mounted as GET.
func NewSocketHandler[In, Out any](name, path string, fn func(*Request[NoBody], Socket[In, Out]) error) *SocketHandler[In, Out] {
	inputMeta := sentinel.Scan[In]()
	outputMeta := sentinel.Scan[Out]()

	desc := RouteDescriptor{
		Name:          name,
		Method:        http.MethodGet,
		Path:          path,
		SuccessStatus: http.StatusSwitchingProtocols,
		Kind:          RouteSocket,
	}
	if inputMeta.TypeName != noBodyTypeName {
		desc.Input = descriptorFromMetadata(inputMeta)
	}
	if outputMeta.TypeName != noBodyTypeName {
		desc.Output = descriptorFromMetadata(outputMeta)
	}

	return &SocketHandler[In, Out]{
		fn:         fn,
		desc:       desc,
		InputMeta:  inputMeta,
		OutputMeta: outputMeta,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Describe implements Endpoint.
func (h *SocketHandler[In, Out]) Describe() *RouteDescriptor {
	return &h.desc
}

// Middleware implements Endpoint.
func (h *SocketHandler[In, Out]) Middleware() []func(http.Handler) http.Handler {
	return h.middleware
}

// Close implements Endpoint.
func (*SocketHandler[In, Out]) Close() error {
	return nil
}

// WithSummary sets the documentation summary.
func (h *SocketHandler[In, Out]) WithSummary(summary string) *SocketHandler[In, Out] {
	h.desc.Summary = summary
	return h
}

// WithDescription sets the documentation description.
func (h *SocketHandler[In, Out]) WithDescription(desc string) *SocketHandler[In, Out] {
	h.desc.Description = desc
	return h
}

// WithTags declares route-local tags.
func (h *SocketHandler[In, Out]) WithTags(tags ...string) *SocketHandler[In, Out] {
	h.desc.Tags = tags
	return h
}

// WithPathParam declares a path parameter.
func (h *SocketHandler[In, Out]) WithPathParam(name string, scalar ScalarKind, constraints ...Constraint) *SocketHandler[In, Out] {
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
func (h *SocketHandler[In, Out]) WithQueryParam(name string, scalar ScalarKind, required bool, constraints ...Constraint) *SocketHandler[In, Out] {
	h.desc.Params = append(h.desc.Params, ParamSpec{
		Name:        name,
		Source:      ParamQuery,
		Scalar:      scalar,
		Required:    required,
		Constraints: constraints,
	})
	return h
}

// WithSecurity declares this route's security requirement explicitly.
func (h *SocketHandler[In, Out]) WithSecurity(schemes ...string) *SocketHandler[In, Out] {
	h.desc.Security = append([]string(nil), schemes...)
	h.desc.SecuritySet = true
	return h
}

// WithDependencies declares the typed services this handler requires.
func (h *SocketHandler[In, Out]) WithDependencies(descs ...TypeDescriptor) *SocketHandler[In, Out] {
	h.desc.Requires = append(h.desc.Requires, descs...)
	return h
}

// WithCheckOrigin sets the origin check used during the upgrade handshake.
func (h *SocketHandler[In, Out]) WithCheckOrigin(check func(*http.Request) bool) *SocketHandler[In, Out] {
	h.upgrader.CheckOrigin = check
	return h
}

// WithMiddleware adds middleware to this handler.
func (h *SocketHandler[In, Out]) WithMiddleware(middleware ...func(http.Handler) http.Handler) *SocketHandler[In, Out] {
	h.middleware = append(h.middleware, middleware...)
	return h
}

// Process implements Endpoint.
func (h *SocketHandler[In, Out]) Process(ctx context.Context, r *http.Request, w http.ResponseWriter, inv *Invocation) (int, error) {
	var fieldErrs []FieldError
	params := extractParams(ctx, r, inv, &fieldErrs)
	if len(fieldErrs) > 0 {
		capitan.Warn(ctx, RequestValidationFailed,
			HandlerNameKey.Field(h.desc.Name),
			FieldErrorCountKey.Field(len(fieldErrs)),
		)
		writeFieldErrorResponse(w, fieldErrs)
		return http.StatusUnprocessableEntity, ErrUnprocessableEntity
	}

	// Dependencies resolve before the upgrade; a failure here still yields a
	// plain HTTP error response.
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

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		capitan.Error(ctx, SocketError,
			HandlerNameKey.Field(h.desc.Name),
			ErrorKey.Field(err.Error()),
		)
		return http.StatusBadRequest, err
	}

	capitan.Info(ctx, SocketConnected,
		HandlerNameKey.Field(h.desc.Name),
		ScopeIDKey.Field(inv.Scope.ID),
	)

	req := &Request[NoBody]{
		Context:  ctx,
		Request:  r,
		Params:   params,
		Identity: IdentityFrom(ctx),
		Scope:    inv.Scope,
	}

	socket := &wsSocket[In, Out]{
		conn: conn,
		done: ctx.Done(),
	}

	// Call user handler (blocks for the lifetime of the connection).
	handlerErr := h.fn(req, socket)
	conn.Close()

	capitan.Info(ctx, SocketDisconnected,
		HandlerNameKey.Field(h.desc.Name),
		ScopeIDKey.Field(inv.Scope.ID),
	)

	if handlerErr != nil && !errors.Is(handlerErr, context.Canceled) && !websocket.IsCloseError(handlerErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		capitan.Error(ctx, SocketError,
			HandlerNameKey.Field(h.desc.Name),
			ErrorKey.Field(handlerErr.Error()),
		)
		return http.StatusSwitchingProtocols, handlerErr
	}

	return http.StatusSwitchingProtocols, nil
}
