// Package gateway is the HTTP surface of astrachat: session management, the
// analyze endpoint, zodiac reference data, and operational probes.
package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	json "github.com/goccy/go-json"

	"github.com/astrachat/astrachat/internal/config"
	"github.com/astrachat/astrachat/internal/intent"
	"github.com/astrachat/astrachat/internal/orchestrator"
	"github.com/astrachat/astrachat/internal/session"
)

// Service wires the resolver, session store, and orchestrator behind the
// router. Construct with NewService; the zero value is not usable.
type Service struct {
	version   string
	config    *config.Config
	sessions  *session.Store
	resolver  *intent.Resolver
	answers   *orchestrator.Orchestrator
	router    chi.Router
	startTime time.Time
}

func NewService(version string, cfg *config.Config, sessions *session.Store, resolver *intent.Resolver, answers *orchestrator.Orchestrator) *Service {
	svc := &Service{
		version:   version,
		config:    cfg,
		sessions:  sessions,
		resolver:  resolver,
		answers:   answers,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	svc.setupRoutes()
	return svc
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	// The degradation chain owns its own budget; the request timeout only has
	// to be a hard outer bound.
	s.router.Use(middleware.Timeout(s.config.OverallBudget + 5*time.Second))

	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/signs", s.handleListSigns)
		r.Get("/signs/{sign}", s.handleGetSign)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/session", s.handleCreateSession)
			r.Get("/session/{id}", s.handleGetSession)
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/set-zodiac", s.handleSetZodiac)
		})
	})
}

// Router exposes the configured handler for serving and for tests.
func (s *Service) Router() http.Handler { return s.router }

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError sends a client-facing message only. Internal error detail
// stays in the logs.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
