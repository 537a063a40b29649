package hayai

import "github.com/zoobzio/capitan"

// Engine lifecycle signals.
var (
	// EngineCreated is emitted when an Engine instance is created.
	// Fields: HostKey, PortKey.
	EngineCreated = capitan.NewSignal("http.engine.created", "HTTP engine instance created with configured host and port")

	// EngineStarting is emitted when the server starts listening for requests.
	// Fields: HostKey, PortKey, AddressKey.
	EngineStarting = capitan.NewSignal("http.engine.starting", "HTTP server starting to listen for requests on configured address")

	// EngineShutdownStarted is emitted when graceful shutdown is initiated.
	// Fields: none.
	EngineShutdownStarted = capitan.NewSignal("http.engine.shutdown.started", "HTTP engine graceful shutdown initiated")

	// EngineShutdownComplete is emitted when shutdown finishes.
	// Fields: GracefulKey, ErrorKey (if failed).
	EngineShutdownComplete = capitan.NewSignal("http.engine.shutdown.complete", "HTTP engine shutdown completed, graceful or with error")
)

// Build phase signals.
var (
	// TableComposed is emitted when the router tree has been flattened into
	// the route table. Fields: RouteCountKey.
	TableComposed = capitan.NewSignal("build.table.composed", "Router tree composed into flat route table")

	// BuildFailed is emitted when any build phase step fails fatally.
	// Fields: ErrorKey.
	BuildFailed = capitan.NewSignal("build.failed", "Build phase failed, engine will not reach serving")

	// RouteMounted is emitted per route mounted onto the transport router.
	// Fields: HandlerNameKey, MethodKey, PathKey.
	RouteMounted = capitan.NewSignal("build.route.mounted", "Composed route mounted onto transport router")

	// DocumentBuilt is emitted when the API description document is assembled.
	// Fields: RouteCountKey, SchemaCountKey.
	DocumentBuilt = capitan.NewSignal("build.document.built", "API description document assembled from route table and schema registry")
)

// Dependency graph signals.
var (
	// GraphFinalized is emitted when the dependency graph passes its build
	// checks and singletons are instantiated. Fields: BindingCountKey,
	// SingletonCountKey.
	GraphFinalized = capitan.NewSignal("deps.graph.finalized", "Dependency graph validated and singletons instantiated")

	// SingletonInstantiated is emitted once per singleton binding.
	// Fields: TypeNameKey.
	SingletonInstantiated = capitan.NewSignal("deps.singleton.instantiated", "Singleton dependency instantiated during finalization")

	// DependencyFailed is emitted when a per-request provider fails.
	// Fields: TypeNameKey, ScopeIDKey, ErrorKey.
	DependencyFailed = capitan.NewSignal("deps.provider.failed", "Dependency provider failed while resolving a request")
)

// Request lifecycle signals.
var (
	// RequestReceived is emitted when a request is received.
	// Fields: MethodKey, PathKey, HandlerNameKey.
	RequestReceived = capitan.NewSignal("http.request.received", "HTTP request received by engine and routed to handler")

	// RequestCompleted is emitted when a request completes successfully.
	// Fields: MethodKey, PathKey, HandlerNameKey, StatusCodeKey, DurationMsKey.
	RequestCompleted = capitan.NewSignal("http.request.completed", "HTTP request completed successfully with response sent")

	// RequestFailed is emitted when a request fails with an error.
	// Fields: MethodKey, PathKey, HandlerNameKey, StatusCodeKey, DurationMsKey, ErrorKey.
	RequestFailed = capitan.NewSignal("http.request.failed", "HTTP request failed during processing with error")

	// RequestParamsInvalid is emitted when parameter extraction or coercion fails.
	// Fields: HandlerNameKey, ErrorKey.
	RequestParamsInvalid = capitan.NewSignal("http.request.params.invalid", "Request parameters failed extraction or coercion")

	// RequestBodyReadError is emitted when the request body cannot be read.
	// Fields: HandlerNameKey, ErrorKey.
	RequestBodyReadError = capitan.NewSignal("http.request.body.read.error", "Request body could not be read")

	// RequestBodyParseError is emitted when the request body cannot be decoded.
	// Fields: HandlerNameKey, ErrorKey.
	RequestBodyParseError = capitan.NewSignal("http.request.body.parse.error", "Request body could not be decoded")

	// RequestValidationFailed is emitted when declared constraints reject the input.
	// Fields: HandlerNameKey, FieldErrorCountKey.
	RequestValidationFailed = capitan.NewSignal("http.request.validation.failed", "Request input rejected by declared constraints")

	// RequestResponseMarshalError is emitted when the response cannot be encoded.
	// Fields: HandlerNameKey, ErrorKey.
	RequestResponseMarshalError = capitan.NewSignal("http.request.response.marshal.error", "Response body could not be encoded")
)

// Handler processing signals.
var (
	// HandlerExecuting is emitted when handler execution begins.
	// Fields: HandlerNameKey.
	HandlerExecuting = capitan.NewSignal("http.handler.executing", "Handler execution started for incoming request")

	// HandlerSuccess is emitted when a handler returns successfully.
	// Fields: HandlerNameKey, StatusCodeKey.
	HandlerSuccess = capitan.NewSignal("http.handler.success", "Handler completed successfully and returned response")

	// HandlerError is emitted when a handler returns an error.
	// Fields: HandlerNameKey, ErrorKey.
	HandlerError = capitan.NewSignal("http.handler.error", "Handler returned unexpected error during execution")

	// HandlerSentinelError is emitted when a declared sentinel error is returned.
	// Fields: HandlerNameKey, ErrorKey, StatusCodeKey.
	HandlerSentinelError = capitan.NewSignal("http.handler.sentinel", "Handler returned declared sentinel error mapped to status code")

	// HandlerUndeclaredSentinel is emitted when an undeclared sentinel error is returned.
	// Fields: HandlerNameKey, ErrorKey, StatusCodeKey.
	HandlerUndeclaredSentinel = capitan.NewSignal("http.handler.sentinel.undeclared", "Handler returned sentinel error with status code not declared on route")

	// HandlerDependencyUnavailable is emitted when dependency resolution fails
	// before the handler body runs. Fields: HandlerNameKey, TypeNameKey, ErrorKey.
	HandlerDependencyUnavailable = capitan.NewSignal("http.handler.dependency.unavailable", "Dependency resolution failed, handler body not invoked")
)

// Authentication signals.
var (
	// AuthenticationFailed is emitted when a required security scheme rejects a request.
	// Fields: MethodKey, PathKey, HandlerNameKey, ErrorKey.
	AuthenticationFailed = capitan.NewSignal("http.auth.failed", "Authentication failed for route with security requirement")

	// AuthenticationSucceeded is emitted when authentication passes.
	// Fields: MethodKey, PathKey, HandlerNameKey, IdentityIDKey.
	AuthenticationSucceeded = capitan.NewSignal("http.auth.succeeded", "Authentication succeeded for request")
)

// Lifespan signals.
var (
	// LifespanStarting is emitted when startup hooks begin running.
	// Fields: HookCountKey.
	LifespanStarting = capitan.NewSignal("lifespan.starting", "Lifespan startup hooks running before serving begins")

	// LifespanServing is emitted when all startup hooks completed.
	// Fields: none.
	LifespanServing = capitan.NewSignal("lifespan.serving", "Lifespan reached serving state after startup hooks completed")

	// LifespanHookFailed is emitted when a startup hook fails, aborting startup.
	// Fields: HookNameKey, ErrorKey.
	LifespanHookFailed = capitan.NewSignal("lifespan.hook.failed", "Lifespan startup hook failed, startup aborted")

	// LifespanHookTimeout is emitted when a shutdown hook exceeds its timeout
	// and is skipped. Fields: HookNameKey, DurationMsKey.
	LifespanHookTimeout = capitan.NewSignal("lifespan.hook.timeout", "Lifespan shutdown hook exceeded timeout, skipped")

	// LifespanStopped is emitted when shutdown hooks finished.
	// Fields: none.
	LifespanStopped = capitan.NewSignal("lifespan.stopped", "Lifespan reached stopped state after shutdown hooks ran")
)

// Stream and socket signals.
var (
	// StreamExecuting is emitted when an SSE stream handler starts.
	// Fields: HandlerNameKey.
	StreamExecuting = capitan.NewSignal("http.stream.executing", "SSE stream handler execution started")

	// StreamStarted is emitted when SSE headers have been written.
	// Fields: HandlerNameKey.
	StreamStarted = capitan.NewSignal("http.stream.started", "SSE stream opened and headers written")

	// StreamClientDisconnected is emitted when the client ends a stream.
	// Fields: HandlerNameKey.
	StreamClientDisconnected = capitan.NewSignal("http.stream.client.disconnected", "SSE stream client disconnected")

	// StreamEnded is emitted when a stream handler returns normally.
	StreamEnded = capitan.NewSignal("http.stream.ended", "SSE stream handler completed")

	// StreamError is emitted when a stream handler fails.
	// Fields: HandlerNameKey, ErrorKey.
	StreamError = capitan.NewSignal("http.stream.error", "SSE stream handler failed")

	// SocketConnected is emitted when a WebSocket upgrade succeeds.
	// Fields: HandlerNameKey, ScopeIDKey.
	SocketConnected = capitan.NewSignal("ws.socket.connected", "WebSocket connection established")

	// SocketDisconnected is emitted when a WebSocket connection ends and its
	// scope is released. Fields: HandlerNameKey, ScopeIDKey, DurationMsKey.
	SocketDisconnected = capitan.NewSignal("ws.socket.disconnected", "WebSocket connection closed and per-request scope released")

	// SocketError is emitted when a socket handler fails.
	// Fields: HandlerNameKey, ErrorKey.
	SocketError = capitan.NewSignal("ws.socket.error", "WebSocket handler failed")
)

// Event field keys (primitive types only).
var (
	// Engine fields.
	HostKey    = capitan.NewStringKey("host")
	PortKey    = capitan.NewIntKey("port")
	AddressKey = capitan.NewStringKey("address")

	// Request/Response fields.
	MethodKey      = capitan.NewStringKey("method")
	PathKey        = capitan.NewStringKey("path")
	HandlerNameKey = capitan.NewStringKey("handler_name")
	StatusCodeKey  = capitan.NewIntKey("status_code")
	DurationMsKey  = capitan.NewInt64Key("duration_ms")
	ErrorKey       = capitan.NewStringKey("error")
	GracefulKey    = capitan.NewBoolKey("graceful")

	// Build fields.
	RouteCountKey      = capitan.NewIntKey("route_count")
	SchemaCountKey     = capitan.NewIntKey("schema_count")
	FieldErrorCountKey = capitan.NewIntKey("field_error_count")

	// Dependency fields.
	TypeNameKey       = capitan.NewStringKey("type_name")
	ScopeIDKey        = capitan.NewStringKey("scope_id")
	BindingCountKey   = capitan.NewIntKey("binding_count")
	SingletonCountKey = capitan.NewIntKey("singleton_count")

	// Identity fields.
	IdentityIDKey = capitan.NewStringKey("identity_id")

	// Lifespan fields.
	HookNameKey  = capitan.NewStringKey("hook_name")
	HookCountKey = capitan.NewIntKey("hook_count")
)
