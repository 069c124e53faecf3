package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/avqqc/internal/qqc"
)

// Reader looks up stored quick-QC results by interview name.
type Reader interface {
	GetSpeakerMetrics(ctx context.Context, interviewName string) ([]qqc.SpeakerMetrics, error)
	GetTurnData(ctx context.Context, interviewName string) ([]qqc.TurnRecord, error)
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

type Server struct {
	router *chi.Mux
	port   int
	reader Reader
	logger *slog.Logger
	srv    *http.Server
	checks map[string]Check
}

// NewServer wires the routes. When apiToken is empty the interview routes
// are open.
func NewServer(port int, apiToken string, reader Reader, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		reader: reader,
		logger: logger,
		checks: make(map[string]Check),
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/qqc/status", s.status)

	router.Route("/api/v1/interviews/{name}", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/speaker-metrics", s.speakerMetrics)
		r.Get("/turns", s.turns)
	})

	return s
}

// AddCheck registers a dependency reported by the status endpoint.
func (s *Server) AddCheck(name string, check Check) {
	s.checks[name] = check
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{Addr: addr, Handler: s.router}
	s.logger.Info("API server starting", "addr", addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// BearerAuthMiddleware rejects requests without the expected bearer token.
// An empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	status := "active"
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			results[name] = err.Error()
			code = http.StatusServiceUnavailable
			status = "degraded"
			continue
		}
		results[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"agent":  "avqqc",
		"module": "transcript-qqc",
		"status": status,
		"checks": results,
	})
}

func (s *Server) speakerMetrics(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	metrics, err := s.reader.GetSpeakerMetrics(r.Context(), name)
	if err != nil {
		s.logger.Error("failed to load speaker metrics", "interview", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	if metrics == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no quick qc record for interview"})
		return
	}

	byName := make(map[string]qqc.SpeakerMetrics, len(metrics))
	for _, m := range metrics {
		byName[m.Speaker] = m
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"interview_name":  name,
		"speaker_metrics": byName,
	})
}

func (s *Server) turns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	turns, err := s.reader.GetTurnData(r.Context(), name)
	if err != nil {
		s.logger.Error("failed to load turn data", "interview", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	if turns == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no quick qc record for interview"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"interview_name": name,
		"turns":          turns,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
