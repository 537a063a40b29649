package hayai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/sentinel"
)

// Engine owns the build phase and the serving phase. Composition, schema
// registration, dependency finalization and document generation all happen
// inside Build; request handling starts only after Build succeeds.
type Engine struct {
	config    *EngineConfig
	server    *http.Server
	chiRouter chi.Router

	root     *RouterNode
	registry *SchemaRegistry
	pipeline *ValidationPipeline
	graph    *DependencyGraph
	lifespan *LifespanManager

	authenticator   Authenticator
	securitySchemes map[string]*SecurityScheme
	info            Info

	table    *RouteTable
	document *OpenAPI

	ctx       context.Context
	cancel    context.CancelFunc
	buildOnce sync.Once
	buildErr  error
}

// NewEngine creates a new Engine with the given configuration.
// If config is nil, uses DefaultConfig.
func NewEngine(config *EngineConfig) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	registry := NewSchemaRegistry()

	e := &Engine{
		config:          config,
		chiRouter:       chi.NewRouter(),
		root:            NewRouter(""),
		registry:        registry,
		pipeline:        NewValidationPipeline(registry),
		graph:           NewDependencyGraph(),
		lifespan:        NewLifespanManager(config.ShutdownHookTimeout),
		securitySchemes: make(map[string]*SecurityScheme),
		info:            Info{Title: "API", Version: "1.0.0"},
		ctx:             ctx,
		cancel:          cancel,
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	e.server = &http.Server{
		Addr:         addr,
		Handler:      e.chiRouter,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	capitan.Emit(ctx, EngineCreated,
		HostKey.Field(config.Host),
		PortKey.Field(config.Port),
	)

	return e
}

// ServeHTTP dispatches to the mounted routes. Useful for tests; Build must
// have succeeded first.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.chiRouter.ServeHTTP(w, r)
}

// Router returns the root router node. Groups and routes hang off it.
func (e *Engine) Router() *RouterNode {
	return e.root
}

// Graph returns the dependency graph for binding providers.
func (e *Engine) Graph() *DependencyGraph {
	return e.graph
}

// Registry returns the schema registry.
func (e *Engine) Registry() *SchemaRegistry {
	return e.registry
}

// Lifespan returns the lifespan manager.
func (e *Engine) Lifespan() *LifespanManager {
	return e.lifespan
}

// Table returns the composed route table, nil before a successful Build.
func (e *Engine) Table() *RouteTable {
	return e.table
}

// Document returns the generated API document, nil before a successful Build.
func (e *Engine) Document() *OpenAPI {
	return e.document
}

// WithInfo sets the document metadata and returns the engine for chaining.
func (e *Engine) WithInfo(info Info) *Engine {
	e.info = info
	return e
}

// WithMiddleware adds global middleware to the engine and returns the engine for chaining.
func (e *Engine) WithMiddleware(middleware ...func(http.Handler) http.Handler) *Engine {
	for _, mw := range middleware {
		e.chiRouter.Use(mw)
	}
	return e
}

// WithAuthenticator sets the authenticator consulted for routes carrying a
// security requirement.
func (e *Engine) WithAuthenticator(auth Authenticator) *Engine {
	e.authenticator = auth
	return e
}

// WithSecurityScheme registers a named security scheme for the generated
// document. Routes reference schemes by name via WithSecurity.
func (e *Engine) WithSecurityScheme(name string, scheme *SecurityScheme) *Engine {
	e.securitySchemes[name] = scheme
	return e
}

// OnStartup registers a named startup hook and returns the engine for chaining.
func (e *Engine) OnStartup(name string, hook Hook) *Engine {
	e.lifespan.OnStartup(name, hook)
	return e
}

// OnShutdown registers a named shutdown hook and returns the engine for chaining.
func (e *Engine) OnShutdown(name string, hook Hook) *Engine {
	e.lifespan.OnShutdown(name, hook)
	return e
}

// Build runs the build phase: compose the router tree, register every route's
// input and output schemas, finalize the dependency graph, generate the API
// document and mount the routes. Build runs at most once; later calls return
// the first result.
func (e *Engine) Build(ctx context.Context) error {
	e.buildOnce.Do(func() {
		e.buildErr = e.build(ctx)
	})
	return e.buildErr
}

func (e *Engine) build(ctx context.Context) error {
	table, err := Compose(e.root)
	if err != nil {
		capitan.Error(ctx, BuildFailed, ErrorKey.Field(err.Error()))
		return err
	}
	e.table = table

	capitan.Emit(ctx, TableComposed,
		RouteCountKey.Field(table.Len()),
	)

	if err := e.registerRouteSchemas(); err != nil {
		capitan.Error(ctx, BuildFailed, ErrorKey.Field(err.Error()))
		return err
	}

	if err := e.graph.Finalize(ctx, table); err != nil {
		capitan.Error(ctx, BuildFailed, ErrorKey.Field(err.Error()))
		return err
	}

	// The document endpoints are mounted alongside user routes, so a user
	// route at the same path is a composition conflict, not a chi panic.
	for _, reserved := range []string{"/openapi", "/docs"} {
		if _, taken := table.Lookup("GET", reserved); taken {
			err := &RouteConflictError{Method: "GET", Path: reserved}
			capitan.Error(ctx, BuildFailed, ErrorKey.Field(err.Error()))
			return err
		}
	}

	e.document = BuildOpenAPI(table, e.registry, e.info, e.securitySchemes)
	capitan.Emit(ctx, DocumentBuilt,
		RouteCountKey.Field(table.Len()),
	)

	for _, rd := range table.Routes {
		httpHandler := e.adaptRoute(rd)

		if mw := rd.Endpoint.Middleware(); len(mw) > 0 {
			e.chiRouter.With(mw...).Method(rd.Method, rd.Path, httpHandler)
		} else {
			e.chiRouter.Method(rd.Method, rd.Path, httpHandler)
		}

		capitan.Emit(ctx, RouteMounted,
			HandlerNameKey.Field(rd.Name),
			MethodKey.Field(rd.Method),
			PathKey.Field(rd.Path),
		)
	}

	e.registerDocumentHandlers()
	return nil
}

// registerRouteSchemas registers the input and output models of every composed
// route with the schema registry. Sentinel has already scanned the types at
// handler construction, so a missing lookup means a descriptor was fabricated
// by hand.
func (e *Engine) registerRouteSchemas() error {
	for _, rd := range e.table.Routes {
		for _, desc := range []TypeDescriptor{rd.Input, rd.Output} {
			if desc.IsZero() {
				continue
			}
			meta, ok := sentinel.Lookup(desc.Name)
			if !ok {
				return &UnknownTypeError{Name: desc.Name}
			}
			if _, err := e.registry.Register(desc, meta); err != nil {
				return err
			}
		}
	}
	return nil
}

// registerDocumentHandlers mounts the machine-readable document at /openapi
// and the human-readable reference at /docs.
func (e *Engine) registerDocumentHandlers() {
	e.chiRouter.Get("/openapi", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)

		data, err := json.MarshalIndent(e.document, "", "  ")
		if err != nil {
			http.Error(w, "failed to generate OpenAPI document", http.StatusInternalServerError)
			return
		}

		w.Write(data)
	})

	e.chiRouter.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)

		html := `<!DOCTYPE html>
<html>
<head>
    <title>API Documentation</title>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
</head>
<body>
    <script id="api-reference" data-url="/openapi"></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`

		w.Write([]byte(html))
	})
}

// adaptRoute converts a composed route to http.HandlerFunc, wrapping the
// endpoint with the security gate and the per-request scope lifecycle.
func (e *Engine) adaptRoute(rd *RouteDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		startTime := time.Now()

		capitan.Emit(ctx, RequestReceived,
			MethodKey.Field(r.Method),
			PathKey.Field(r.URL.Path),
			HandlerNameKey.Field(rd.Name),
		)

		// Security gate: a route with an effective requirement never reaches
		// its handler without a verified identity.
		if len(rd.Security) > 0 {
			identity, err := e.authenticate(r, rd.Security)
			if err != nil {
				capitan.Warn(ctx, AuthenticationFailed,
					HandlerNameKey.Field(rd.Name),
					ErrorKey.Field(err.Error()),
				)
				writeErrorResponse(w, http.StatusUnauthorized)
				e.emitOutcome(ctx, r, rd, http.StatusUnauthorized, startTime, err)
				return
			}
			capitan.Debug(ctx, AuthenticationSucceeded,
				HandlerNameKey.Field(rd.Name),
				IdentityIDKey.Field(identity.ID()),
			)
			ctx = WithIdentity(ctx, identity)
		}

		scope := e.graph.NewRequestScope(rd)
		defer scope.Release()

		inv := &Invocation{
			Route:    rd,
			Scope:    scope,
			Pipeline: e.pipeline,
			Registry: e.registry,
		}

		status, err := rd.Endpoint.Process(ctx, r, w, inv)
		e.emitOutcome(ctx, r, rd, status, startTime, err)
	}
}

func (e *Engine) authenticate(r *http.Request, schemes []string) (Identity, error) {
	if e.authenticator == nil {
		return nil, fmt.Errorf("route requires security %v but no authenticator is configured", schemes)
	}
	return e.authenticator(r, schemes)
}

func (*Engine) emitOutcome(ctx context.Context, r *http.Request, rd *RouteDescriptor, status int, startTime time.Time, err error) {
	durationMs := time.Since(startTime).Milliseconds()

	if err != nil {
		capitan.Emit(ctx, RequestFailed,
			MethodKey.Field(r.Method),
			PathKey.Field(r.URL.Path),
			HandlerNameKey.Field(rd.Name),
			StatusCodeKey.Field(status),
			DurationMsKey.Field(durationMs),
			ErrorKey.Field(err.Error()),
		)
		return
	}

	capitan.Emit(ctx, RequestCompleted,
		MethodKey.Field(r.Method),
		PathKey.Field(r.URL.Path),
		HandlerNameKey.Field(rd.Name),
		StatusCodeKey.Field(status),
		DurationMsKey.Field(durationMs),
	)
}

// Start builds the engine if it has not been built, runs the startup hooks
// and begins listening for HTTP requests. It blocks until the server shuts
// down. A build or startup hook failure means the server never listens.
func (e *Engine) Start() error {
	if err := e.Build(e.ctx); err != nil {
		return err
	}

	if err := e.lifespan.Startup(e.ctx); err != nil {
		return fmt.Errorf("startup hooks: %w", err)
	}

	capitan.Emit(e.ctx, EngineStarting,
		HostKey.Field(e.config.Host),
		PortKey.Field(e.config.Port),
		AddressKey.Field(e.server.Addr),
	)

	err := e.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown performs a graceful shutdown: stop accepting connections, wait for
// in-flight requests, then run the shutdown hooks in reverse registration
// order.
func (e *Engine) Shutdown(ctx context.Context) error {
	capitan.Emit(ctx, EngineShutdownStarted)

	err := e.server.Shutdown(ctx)

	if hookErr := e.lifespan.Shutdown(ctx); hookErr != nil && err == nil {
		err = hookErr
	}

	e.cancel()

	if err != nil {
		capitan.Emit(context.Background(), EngineShutdownComplete,
			GracefulKey.Field(false),
			ErrorKey.Field(err.Error()),
		)
	} else {
		capitan.Emit(context.Background(), EngineShutdownComplete,
			GracefulKey.Field(true),
		)
	}

	capitan.Shutdown()

	return err
}
