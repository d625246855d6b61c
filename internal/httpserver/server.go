package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackmichael/multipass/internal/config"
	"github.com/blackmichael/multipass/internal/domain"
	"github.com/blackmichael/multipass/internal/source"
)

const maxTimelineLimit = 100

// Feed is the aggregation service the gateway serves.
type Feed interface {
	DataSources() []domain.DataSource
	Timeline(ctx context.Context, limit int) ([]domain.Post, error)
	Like(ctx context.Context, ds domain.DataSource, identifier, revision string) error
}

// Server is the JSON gateway over the aggregated feed.
type Server struct {
	cfg        *config.Config
	feed       Feed
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server over feed.
func NewServer(cfg *config.Config, feed Feed, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		feed:   feed,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(next http.Handler) http.Handler { return withLogging(logger, next) })
	r.Use(middleware.Recoverer)
	// cors treats an empty origin list as "allow all", so the handler is
	// only installed when origins are configured.
	if len(cfg.CorsAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CorsAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/sources", s.handleSources)
		r.Get("/timeline", s.handleTimeline)
		r.With(requireToken(cfg.GatewayToken)).Post("/likes", s.handleLike)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	type sourceInfo struct {
		Source      domain.DataSource `json:"source"`
		DisplayName string            `json:"displayName"`
	}
	sources := s.feed.DataSources()
	out := make([]sourceInfo, 0, len(sources))
	for _, ds := range sources {
		out = append(out, sourceInfo{Source: ds, DisplayName: ds.DisplayName()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.TimelineLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxTimelineLimit {
			s.logger.Warn("invalid limit parameter", "limit", l, "error", err)
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	posts, err := s.feed.Timeline(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to get timeline", "limit", limit, "error", err)
		s.writeSourceError(w, err, "failed to get timeline")
		return
	}

	s.logger.Info("timeline success", "limit", limit, "posts_returned", len(posts))
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

type likeRequest struct {
	Source     domain.DataSource `json:"source"`
	Identifier string            `json:"identifier"`
	Revision   string            `json:"revision,omitempty"`
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be {source, identifier, revision}")
		return
	}
	if _, err := domain.ParseDataSource(string(req.Source)); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "identifier is required")
		return
	}

	if err := s.feed.Like(r.Context(), req.Source, req.Identifier, req.Revision); err != nil {
		if errors.Is(err, domain.ErrUnknownSource) {
			writeError(w, http.StatusNotFound, "UnknownSource", fmt.Sprintf("no %s account is configured", req.Source.DisplayName()))
			return
		}
		s.writeSourceError(w, err, "failed to like post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeSourceError maps the source error taxonomy onto HTTP statuses. Kind
// names are passed through so callers can tell an ambiguous write apart from
// a plain failure.
func (s *Server) writeSourceError(w http.ResponseWriter, err error, message string) {
	kind := source.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case source.ErrRequestFailed, source.ErrDecodeFailed, source.ErrAmbiguous:
		status = http.StatusBadGateway
	case source.ErrCancelled:
		status = http.StatusServiceUnavailable
	case source.ErrMalformedRequest:
		status = http.StatusInternalServerError
	}
	if kind == nil {
		writeError(w, status, "InternalError", message)
		return
	}
	writeError(w, status, source.KindName(kind), message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

// requireToken rejects requests that do not carry "Authorization: Bearer
// token". An empty token disables the check.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "a valid gateway token is required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
