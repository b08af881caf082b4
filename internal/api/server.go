// Package api serves stored runs over HTTP and streams live step summaries
// over a websocket. Every endpoint is read-only.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/forage-sim/internal/persistence"
)

const (
	maxStreamConns  = 8
	defaultRunLimit = 50
	maxRunLimit     = 500
)

// Server serves runs from DB and live steps from Hub. Either may be nil.
type Server struct {
	DB   *persistence.DB
	Hub  *Hub
	Addr string

	streamConns atomic.Int32
	upgrader    websocket.Upgrader
}

// NewServer builds a server listening on addr.
func NewServer(db *persistence.DB, hub *Hub, addr string) *Server {
	return &Server{
		DB:   db,
		Hub:  hub,
		Addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	streamLimiter := NewRateLimiter(10, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/run/{id}", s.handleRun)
	mux.HandleFunc("GET /api/v1/run/{id}/steps", s.handleRunSteps)
	mux.HandleFunc("GET /api/v1/run/{id}/units", s.handleRunUnits)
	mux.HandleFunc("GET /api/v1/run/{id}/agents", s.handleRunAgents)
	mux.HandleFunc("GET /api/v1/stream", streamLimiter.Limit(s.handleStream))

	return corsMiddleware(mux)
}

// Start begins serving in a goroutine and returns the underlying server so
// the caller can shut it down.
func (s *Server) Start() *http.Server {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "db", s.DB != nil, "stream", s.Hub != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware allows GET from localhost dev servers and any origin listed
// in CORS_ORIGINS (comma-separated).
func corsMiddleware(next http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"database": s.DB != nil,
		"stream":   s.Hub != nil,
	}
	if s.Hub != nil {
		status["stream_clients"] = s.Hub.Clients()
		status["stream_dropped"] = s.Hub.Dropped()
	}
	writeJSON(w, status)
}

// requireDB answers 503 when no database is attached.
func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.DB == nil {
		http.Error(w, "no run database attached", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := s.DB.ListRuns(limit)
	if err != nil {
		serverError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []persistence.RunRow{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	run, err := s.DB.GetRun(r.PathValue("id"))
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		serverError(w, "get run", err)
		return
	}
	writeJSON(w, run)
}

// runDetail serves one per-run table after checking the run exists.
func runDetail[T any](s *Server, w http.ResponseWriter, r *http.Request, what string, load func(string) ([]T, error)) {
	if !s.requireDB(w) {
		return
	}
	id := r.PathValue("id")
	if _, err := s.DB.GetRun(id); errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	} else if err != nil {
		serverError(w, "get run", err)
		return
	}

	rows, err := load(id)
	if err != nil {
		serverError(w, what, err)
		return
	}
	if rows == nil {
		rows = []T{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleRunSteps(w http.ResponseWriter, r *http.Request) {
	runDetail(s, w, r, "run steps", s.DB.RunSteps)
}

func (s *Server) handleRunUnits(w http.ResponseWriter, r *http.Request) {
	runDetail(s, w, r, "run units", s.DB.RunUnits)
}

func (s *Server) handleRunAgents(w http.ResponseWriter, r *http.Request) {
	runDetail(s, w, r, "run agents", s.DB.RunAgents)
}

// handleStream upgrades to a websocket and forwards every published step
// summary as a text message until either side goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		http.Error(w, "no live run", http.StatusServiceUnavailable)
		return
	}

	if s.streamConns.Add(1) > maxStreamConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, ch := s.Hub.Subscribe()
	defer s.Hub.Unsubscribe(id)

	// The client never sends data; reading only notices the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case b, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

func serverError(w http.ResponseWriter, what string, err error) {
	slog.Error("api query failed", "query", what, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
