// Package server exposes the Hopfield service over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/hopfield/internal/history"
	"github.com/nvandessel/hopfield/internal/hopfield"
	"github.com/nvandessel/hopfield/internal/ratelimit"
	"github.com/nvandessel/hopfield/internal/service"
)

// maxBodyBytes bounds request bodies. A 35x35 grid of ints is well under 16KiB.
const maxBodyBytes = 1 << 20

// Server serves the Hopfield API.
type Server struct {
	svc             *service.Service
	limiters        ratelimit.OperationLimiters
	logger          *slog.Logger
	listenAddr      string
	shutdownTimeout time.Duration

	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// Config holds server configuration.
type Config struct {
	Addr            string                      // listen address, e.g. "localhost:3000" or "localhost:0"
	ShutdownTimeout time.Duration               // graceful shutdown bound; 0 means 5s
	Limiters        ratelimit.OperationLimiters // nil disables rate limiting
	Logger          *slog.Logger
}

// NewServer creates a new API server backed by svc.
func NewServer(svc *service.Service, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:0"
	}
	return &Server{
		svc:             svc,
		limiters:        cfg.Limiters,
		logger:          logger,
		listenAddr:      addr,
		shutdownTimeout: timeout,
	}
}

// Addr returns the address the server is listening on.
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/hopfield", s.handleCount)
	mux.HandleFunc("GET /api/hopfield/get-patterns", s.handleCount)
	mux.HandleFunc("POST /api/hopfield/memorize", s.handleMemorize)
	mux.HandleFunc("POST /api/hopfield/recall", s.handleRecall)
	mux.HandleFunc("POST /api/hopfield/recallAll", s.handleRecallAll)
	mux.HandleFunc("POST /api/hopfield/clear", s.handleClear)
	mux.HandleFunc("GET /api/hopfield/history", s.handleHistory)
	return mux
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled or serving fails. Returns nil on clean shutdown. In-flight
// requests are drained before it returns.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.logger.Info("serving hopfield API", "addr", s.addr)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown incomplete", "error", err)
		}
	}()

	err = s.httpServer.Serve(ln)
	cancel()
	<-shutdownDone
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("serve: %w", err)
}

type gridRequest struct {
	Grid hopfield.Grid `json:"grid"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type countResponse struct {
	Patterns int `json:"patterns"`
}

type recallResponse struct {
	Grid       hopfield.Grid `json:"grid"`
	Energy     int64         `json:"energy"`
	Iterations int           `json:"iterations"`
	Converged  bool          `json:"converged"`
}

type recallAllResponse struct {
	Grids []hopfield.Grid `json:"grids"`
}

type historyResponse struct {
	Events []history.Event `json:"events"`
	Count  int             `json:"count"`
	Stats  history.Stats   `json:"stats"`
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpPatterns) {
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Patterns: s.svc.Count()})
}

func (s *Server) handleMemorize(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpLearn) {
		return
	}
	req, ok := s.decodeGrid(w, r, "Invalid grid data")
	if !ok {
		return
	}
	if err := s.svc.Memorize(r.Context(), req.Grid); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Pattern memorized successfully"})
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpRecall) {
		return
	}
	req, ok := s.decodeGrid(w, r, "No grid data received")
	if !ok {
		return
	}
	res, err := s.svc.Recall(r.Context(), req.Grid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recallResponse{
		Grid:       res.Grid,
		Energy:     res.Energy,
		Iterations: res.Iterations,
		Converged:  res.Converged,
	})
}

func (s *Server) handleRecallAll(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpRecallAll) {
		return
	}
	grids, err := s.svc.RecallAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recallAllResponse{Grids: grids})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpReset) {
		return
	}
	s.svc.Clear(r.Context())
	writeJSON(w, http.StatusOK, messageResponse{Message: "Memory cleared successfully"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, ratelimit.OpHistory) {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	events, stats, err := s.svc.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Events: events, Count: len(events), Stats: stats})
}

// decodeGrid reads a {"grid": ...} body. A missing or null grid is answered
// with missingMsg.
func (s *Server) decodeGrid(w http.ResponseWriter, r *http.Request, missingMsg string) (gridRequest, bool) {
	var req gridRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return req, false
	}
	if req.Grid == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: missingMsg})
		return req, false
	}
	return req, true
}

// allow applies the per-client rate limit for op.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, op string) bool {
	client := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		client = host
	}
	if err := ratelimit.CheckLimit(s.limiters, op, client); err != nil {
		s.logger.Debug("request rate limited", "op", op, "client", client)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hopfield.ErrEmptyArchive):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No patterns memorized"})
	case errors.Is(err, hopfield.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
