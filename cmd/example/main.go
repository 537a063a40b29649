package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hayai-dev/hayai"
)

// Request/Response types
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

type TickEvent struct {
	Seq  int    `json:"seq"`
	Time string `json:"time"`
}

// Database is a toy in-memory store bound as a singleton.
type Database struct {
	mu    *sync.Mutex
	users map[string]UserResponse
}

func newDatabase(context.Context, *hayai.RequestScope) (Database, error) {
	return Database{
		mu:    &sync.Mutex{},
		users: make(map[string]UserResponse),
	}, nil
}

func (db Database) get(id string) (UserResponse, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[id]
	return u, ok
}

func (db Database) put(u UserResponse) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[u.ID] = u
}

// apiKeyIdentity is the identity produced by the example authenticator.
type apiKeyIdentity struct {
	id string
}

func (a apiKeyIdentity) ID() string               { return a.id }
func (apiKeyIdentity) TenantID() string           { return "" }
func (apiKeyIdentity) HasScope(scope string) bool { return scope == "users:write" }

func main() {
	config := hayai.DefaultConfig().
		WithPort(8081)

	engine := hayai.NewEngine(config).
		WithInfo(hayai.Info{
			Title:       "Example API",
			Version:     "1.0.0",
			Description: "Example hayai HTTP API",
		}).
		WithSecurityScheme("api_key", &hayai.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		}).
		WithAuthenticator(func(r *http.Request, _ []string) (hayai.Identity, error) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				return nil, errors.New("missing API key")
			}
			return apiKeyIdentity{id: key}, nil
		})

	// Declare the input model's field constraints.
	userDesc, err := hayai.RegisterModel[CreateUserRequest](engine.Registry())
	if err != nil {
		log.Fatalf("register model: %v", err)
	}
	if err := engine.Registry().Constrain(userDesc, "name", hayai.Required(), hayai.MinLength(3), hayai.MaxLength(64)); err != nil {
		log.Fatalf("constrain: %v", err)
	}
	if err := engine.Registry().Constrain(userDesc, "email", hayai.Required(), hayai.Email()); err != nil {
		log.Fatalf("constrain: %v", err)
	}
	if err := engine.Registry().Constrain(userDesc, "age", hayai.Min(0), hayai.Max(150)); err != nil {
		log.Fatalf("constrain: %v", err)
	}

	// Bind the database as a singleton.
	dbDesc := hayai.BindProvider(engine.Graph(), hayai.ScopeSingleton, newDatabase)

	getUser := hayai.NewHandler[hayai.NoBody, UserResponse](
		"get-user",
		"GET",
		"/{id}",
		func(req *hayai.Request[hayai.NoBody]) (UserResponse, error) {
			db, err := hayai.Dependency[Database](req)
			if err != nil {
				return UserResponse{}, err
			}
			id := req.Params.PathString("id")
			user, ok := db.get(id)
			if !ok {
				return UserResponse{}, hayai.ErrNotFound
			}
			return user, nil
		},
	).WithSummary("Get user by ID").
		WithPathParam("id", hayai.ScalarString, hayai.MinLength(1)).
		WithErrorCodes(404).
		WithDependencies(dbDesc)

	createUser := hayai.NewHandler[CreateUserRequest, UserResponse](
		"create-user",
		"POST",
		"/",
		func(req *hayai.Request[CreateUserRequest]) (UserResponse, error) {
			db, err := hayai.Dependency[Database](req)
			if err != nil {
				return UserResponse{}, err
			}
			user := UserResponse{
				ID:    fmt.Sprintf("u-%d", time.Now().UnixNano()),
				Name:  req.Body.Name,
				Email: req.Body.Email,
				Age:   req.Body.Age,
			}
			db.put(user)
			log.Printf("created user %s as %s", user.ID, req.Identity.ID())
			return user, nil
		},
	).WithSummary("Create a user").
		WithSuccessStatus(http.StatusCreated).
		WithSecurity("api_key").
		WithDependencies(dbDesc)

	ticker := hayai.NewStreamHandler[hayai.NoBody, TickEvent](
		"ticks",
		"GET",
		"/ticks",
		func(req *hayai.Request[hayai.NoBody], stream hayai.Stream[TickEvent]) error {
			for i := 0; i < 5; i++ {
				select {
				case <-stream.Done():
					return nil
				case <-time.After(time.Second):
				}
				if err := stream.Send(TickEvent{Seq: i, Time: time.Now().Format(time.RFC3339)}); err != nil {
					return err
				}
			}
			return nil
		},
	).WithSummary("Tick every second").WithTags("events")

	users := hayai.NewRouter("/users").
		WithTags("users").
		Route(getUser, createUser)

	engine.Router().
		Mount(users).
		Route(ticker)

	engine.OnStartup("warm-cache", func(ctx context.Context) error {
		log.Println("warming cache")
		return nil
	})
	engine.OnShutdown("flush", func(ctx context.Context) error {
		log.Println("flushing")
		return nil
	})

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Println("[Main] Press Ctrl+C to shutdown gracefully")
		serverErrors <- engine.Start() // This blocks until server stops
	}()

	select {
	case err := <-serverErrors:
		log.Fatalf("[Main] Server error: %v", err)
	case sig := <-sigChan:
		fmt.Printf("\n[Main] Received signal: %v\n", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := engine.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Main] Shutdown error: %v", err)
		}

		fmt.Println("[Main] Shutdown complete")
	}
}
