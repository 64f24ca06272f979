package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abramin/sharelens/internal/share"
	"github.com/abramin/sharelens/internal/store"
	"go.uber.org/zap"
)

// Server serves a scan report over HTTP.
type Server struct {
	store      *store.Store
	httpServer *http.Server
	port       int
	log        *zap.Logger
}

// Config holds server configuration.
type Config struct {
	Port      int
	ReportDir string
	Logger    *zap.Logger
}

// New creates a new server instance.
func New(cfg Config) (*Server, error) {
	st, err := store.Open(cfg.ReportDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return newServer(st, cfg.Port, cfg.Logger), nil
}

func newServer(st *store.Store, port int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		store: st,
		port:  port,
		log:   log,
	}

	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/stats", s.corsMiddleware(s.handleStats))
	mux.HandleFunc("/api/passes", s.corsMiddleware(s.handlePasses))
	mux.HandleFunc("/api/entities", s.corsMiddleware(s.handleEntities))
	mux.HandleFunc("/api/entities/", s.corsMiddleware(s.handleEntityByID))
	mux.HandleFunc("/api/search", s.corsMiddleware(s.handleSearch))
	mux.HandleFunc("/api/diagnostics", s.corsMiddleware(s.handleDiagnostics))

	// Health check
	mux.HandleFunc("/api/health", s.corsMiddleware(s.handleHealth))

	mux.HandleFunc("/report.json", s.corsMiddleware(s.handleReport))
	mux.HandleFunc("/", s.handleStatic)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the server and blocks until an interrupt or until ctx is
// done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("url", fmt.Sprintf("http://localhost:%d", s.port)))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.store.Close()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	s.log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	if err := s.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}

	s.log.Info("server stopped")
	return nil
}

// Close releases the store without serving.
func (s *Server) Close() error {
	return s.store.Close()
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// corsMiddleware adds CORS headers for local development.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encoding JSON", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// internalError logs err and writes a 500 with message.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	s.log.Error(message, zap.String("path", r.URL.Path), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, message)
}

func (s *Server) allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats returns report statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}

	stats, err := s.store.GetStats()
	if err != nil {
		s.internalError(w, r, "failed to get stats", err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// handlePasses handles GET /api/passes
func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}

	passes, err := s.store.ListPasses()
	if err != nil {
		s.internalError(w, r, "failed to list passes", err)
		return
	}

	s.writeJSON(w, http.StatusOK, passes)
}

// handleEntities handles GET /api/entities?pass=&share_kind=&kind=&type=&limit=&offset=
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}

	q := r.URL.Query()
	filter := store.EntityFilter{
		Pass:      q.Get("pass"),
		ShareKind: q.Get("share_kind"),
		Kind:      store.EntityKind(q.Get("kind")),
		TypeName:  q.Get("type"),
	}
	if filter.ShareKind != "" {
		if _, err := share.ParseKind(filter.ShareKind); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	entities, err := s.store.ListEntities(filter)
	if err != nil {
		s.internalError(w, r, "failed to list entities", err)
		return
	}

	s.writeJSON(w, http.StatusOK, entities)
}

// handleEntityByID handles GET /api/entities/:id
func (s *Server) handleEntityByID(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}

	// Extract ID from path: /api/entities/123
	path := strings.TrimPrefix(r.URL.Path, "/api/entities/")
	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid entity ID")
		return
	}

	e, err := s.store.GetEntityByID(store.EntityID(id))
	if errors.Is(err, sql.ErrNoRows) {
		s.writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to get entity", err)
		return
	}

	s.writeJSON(w, http.StatusOK, e)
}

// handleSearch handles GET /api/search?query=xxx
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter required")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	results, err := s.store.SearchEntities(query, limit)
	if err != nil {
		s.internalError(w, r, "search failed", err)
		return
	}

	s.writeJSON(w, http.StatusOK, results)
}

// handleDiagnostics handles GET /api/diagnostics?pass=xxx
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}

	diags, err := s.store.ListDiagnostics(r.URL.Query().Get("pass"))
	if err != nil {
		s.internalError(w, r, "failed to list diagnostics", err)
		return
	}

	s.writeJSON(w, http.StatusOK, diags)
}

// handleReport serves report.json as written by the last scan.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	reportPath := filepath.Join(s.store.Dir(), "report.json")
	if _, err := os.Stat(reportPath); err != nil {
		s.writeError(w, http.StatusNotFound, "report.json not found, run sharelens scan")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, reportPath)
}

// handleStatic serves an index page listing the API.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	base := "http://localhost:" + strconv.Itoa(s.port)
	html := `<!DOCTYPE html>
<html>
<head>
    <title>sharelens</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
               max-width: 800px; margin: 50px auto; padding: 20px; }
        h1 { color: #333; }
        .api-list { background: #f5f5f5; padding: 20px; border-radius: 8px; }
        .api-list a { display: block; margin: 10px 0; color: #0066cc; }
        pre { background: #f0f0f0; padding: 10px; border-radius: 4px; overflow-x: auto; }
    </style>
</head>
<body>
    <h1>sharelens report server</h1>
    <div class="api-list">
        <h3>Available Endpoints:</h3>
        <a href="/api/stats">GET /api/stats</a> - Report statistics
        <a href="/api/passes">GET /api/passes</a> - Generation passes
        <a href="/api/entities">GET /api/entities</a> - Classified entities
        <a href="/api/entities?share_kind=not_shared">GET /api/entities?share_kind=not_shared</a> - Entities to generate
        <a href="/api/search?query=Widget">GET /api/search?query=Widget</a> - Search member keys
        <a href="/api/diagnostics">GET /api/diagnostics</a> - Member/type mismatches
        <a href="/report.json">GET /report.json</a> - Report for the generator
        <a href="/api/health">GET /api/health</a> - Health check
    </div>
    <h3>Example Usage:</h3>
    <pre>
# Entities of one pass
curl ` + base + `/api/entities?pass=api

# Entity details with files
curl ` + base + `/api/entities/1
    </pre>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
