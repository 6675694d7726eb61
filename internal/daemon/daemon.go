// Package daemon serves the comment store over HTTP for discussion clients.
package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/lherron/discuss/internal/db"
	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/store"
)

const (
	// ActorHeader names the actor a request acts as.
	ActorHeader = "X-Discuss-Actor"
	// TokenHeader carries the shared token for callers that cannot set
	// Authorization.
	TokenHeader = "X-Discuss-Token"
)

var errActorRequired = errors.New(ActorHeader + " header required")

// DefaultAllowedOrigins is used when no CORS origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

// Options configures the discussd daemon.
type Options struct {
	Addr           string
	Unix           string
	Token          string
	DBPath         string
	DefaultActor   string
	AllowedOrigins []string
	Logger         *log.Logger
}

// Serve opens the database and starts the daemon. It blocks until the
// listener fails.
func Serve(opts Options) error {
	if opts.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	database, err := db.Open(opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.RequiresMigrationError(); err != nil {
		return err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	server := NewServer(store.New(database), opts.Token, opts.DefaultActor, logger)
	httpServer := &http.Server{
		Handler:      server.Handler(opts.AllowedOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if opts.Unix != "" {
		_ = os.Remove(opts.Unix)
		listener, err := net.Listen("unix", opts.Unix)
		if err != nil {
			return fmt.Errorf("failed to listen on unix socket: %w", err)
		}
		defer listener.Close()
		logger.Printf("daemon: listening on unix:%s", opts.Unix)
		return httpServer.Serve(listener)
	}

	httpServer.Addr = opts.Addr
	logger.Printf("daemon: listening on %s", opts.Addr)
	return httpServer.ListenAndServe()
}

// Server handles the /v1 API.
type Server struct {
	store        *store.Store
	token        string
	defaultActor string
	logger       *log.Logger
}

// NewServer creates a server over s. An empty token disables auth.
func NewServer(s *store.Store, token, defaultActor string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{store: s, token: token, defaultActor: defaultActor, logger: logger}
}

// Handler returns the routed API wrapped in CORS.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s", r.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	})

	r.HandleFunc("/v1/health", s.withAuth(s.handleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/v1/comments/list", s.withAuth(s.handleCommentsList)).Methods(http.MethodPost)
	r.HandleFunc("/v1/comments/create", s.withAuth(s.handleCommentsCreate)).Methods(http.MethodPost)
	r.HandleFunc("/v1/comments/update", s.withAuth(s.handleCommentsUpdate)).Methods(http.MethodPost)
	r.HandleFunc("/v1/comments/delete", s.withAuth(s.handleCommentsDelete)).Methods(http.MethodPost)
	r.HandleFunc("/v1/tasks/{task}/comments", s.withAuth(s.handleTaskComments)).Methods(http.MethodGet)

	r.HandleFunc("/v1/actors/get", s.withAuth(s.handleActorsGet)).Methods(http.MethodPost)
	r.HandleFunc("/v1/actors/create", s.withAuth(s.handleActorsCreate)).Methods(http.MethodPost)
	r.HandleFunc("/v1/tasks/create", s.withAuth(s.handleTasksCreate)).Methods(http.MethodPost)

	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", ActorHeader, TokenHeader},
	})
	return c.Handler(r)
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				token = r.Header.Get(TokenHeader)
			}
			if token != s.token {
				writeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
				return
			}
		}
		next(w, r)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"message": err.Error()})
}

// fail maps a store error onto an HTTP status.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var mismatch *domain.ETagMismatchError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.As(err, &mismatch):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrEmptyBody), errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Printf("daemon: %s failed: %v", op, err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("%s failed", op))
	}
}

// actor resolves the acting actor from the request header or the default.
func (s *Server) actor(r *http.Request) (*domain.Actor, error) {
	ref := r.Header.Get(ActorHeader)
	if ref == "" {
		ref = s.defaultActor
	}
	if ref == "" {
		return nil, errActorRequired
	}
	return s.store.Actors.Resolve(ref)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
