// Package api implements the COSINT HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cosintapp/cosint/internal/agent"
	"github.com/cosintapp/cosint/internal/auth"
	"github.com/cosintapp/cosint/internal/buildinfo"
	"github.com/cosintapp/cosint/internal/congress"
	"github.com/cosintapp/cosint/internal/intel"
	"github.com/cosintapp/cosint/internal/llm"
	"github.com/cosintapp/cosint/internal/store"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	listen    string
	logger    *slog.Logger
	verifier  auth.Verifier
	store     *store.Store
	executor  *agent.Executor
	extractor *intel.Extractor
	congress  *congress.Client
	llm       llm.Client
	model     string
	retention int
	server    *http.Server
}

// Options carries the server's collaborators.
type Options struct {
	Listen    string
	Verifier  auth.Verifier
	Store     *store.Store
	Executor  *agent.Executor
	Extractor *intel.Extractor
	Congress  *congress.Client
	LLM       llm.Client
	Model     string
	Retention int
}

// NewServer creates a new API server.
func NewServer(logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = 10
	}
	return &Server{
		listen:    opts.Listen,
		logger:    logger,
		verifier:  opts.Verifier,
		store:     opts.Store,
		executor:  opts.Executor,
		extractor: opts.Extractor,
		congress:  opts.Congress,
		llm:       opts.LLM,
		model:     opts.Model,
		retention: retention,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /chat/stream", s.requireUser(s.handleChatStream))
	mux.HandleFunc("GET /conversations/{id}/messages", s.requireUser(s.handleMessages))

	// Notebook registry
	mux.HandleFunc("POST /conversations", s.requireUser(s.handleConversationCreate))
	mux.HandleFunc("GET /conversations", s.requireUser(s.handleConversationList))
	mux.HandleFunc("PATCH /conversations/{id}", s.requireUser(s.handleConversationUpdate))
	mux.HandleFunc("DELETE /conversations/{id}", s.requireUser(s.handleConversationDelete))
	mux.HandleFunc("GET /member/{bioguideId}/conversation", s.requireUser(s.handleMemberConversationGet))
	mux.HandleFunc("POST /member/{bioguideId}/conversation", s.requireUser(s.handleMemberConversationCreate))

	// Tracked bills
	mux.HandleFunc("GET /tracked-bills", s.requireUser(s.handleTrackedBillList))
	mux.HandleFunc("POST /tracked-bills", s.requireUser(s.handleTrackedBillCreate))
	mux.HandleFunc("PATCH /tracked-bills/{billId}", s.requireUser(s.handleTrackedBillUpdate))
	mux.HandleFunc("DELETE /tracked-bills/{billId}", s.requireUser(s.handleTrackedBillDelete))
	mux.HandleFunc("PUT /order", s.requireUser(s.handleRegistryOrder))

	// Research notes
	mux.HandleFunc("GET /member/{bioguideId}/notes", s.requireUser(s.handleNoteList))
	mux.HandleFunc("POST /member/{bioguideId}/notes", s.requireUser(s.handleNoteCreate))
	mux.HandleFunc("PATCH /notes/{id}", s.requireUser(s.handleNoteUpdate))
	mux.HandleFunc("DELETE /notes/{id}", s.requireUser(s.handleNoteDelete))
	mux.HandleFunc("GET /notes/{id}/export", s.requireUser(s.handleNoteExport))

	// Intelligence dashboards (public, same as the data they proxy)
	mux.HandleFunc("GET /member/{bioguideId}", s.handleMemberDashboard)
	mux.HandleFunc("GET /bill/{congress}/{billType}/{billNumber}", s.handleBillDashboard)

	// Health
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.listen,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Long for streaming responses
	}

	s.logger.Info("starting API server", "listen", s.listen)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// userHandler is a handler that runs with an authenticated user ID.
type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// requireUser verifies the bearer token and passes the user ID through.
func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.FromHeader(r.Header.Get("Authorization"))
		if err != nil {
			s.errorResponse(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		userID, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			s.logger.Debug("token rejected", "error", err)
			s.errorResponse(w, http.StatusUnauthorized, "token verification failed")
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "COSINT",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{"detail": message}, s.logger)
}

// storeError maps store errors to HTTP status responses.
func (s *Server) storeError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.errorResponse(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, store.ErrForbidden):
		s.errorResponse(w, http.StatusForbidden, "Forbidden")
	default:
		s.logger.Error("store operation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "internal error")
	}
}
