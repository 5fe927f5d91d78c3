// Package api exposes the diagnosis service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/common/observability"
	"diagnosis-workers/internal/diagnosis/records"
	"diagnosis-workers/internal/diagnosis/service"
)

const maxBodyBytes = 1 << 20

type Options struct {
	Service *service.Service
	// Records enables GET /diagnoses/{id} when set.
	Records        *records.Repository
	Observability  *observability.Observability
	Logger         logger.Logger
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

type Server struct {
	svc     *service.Service
	records *records.Repository
	obs     *observability.Observability
	log     logger.Logger
}

// NewRouter builds the HTTP handler with health, readiness, metrics and
// the diagnosis routes.
func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Server{svc: opts.Service, records: opts.Records, obs: opts.Observability, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Code: "NOT_FOUND", Message: "Endpoint not found"}})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"}})
	})

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/diagnose", s.diagnose)
	r.Post("/diagnose/{sessionID}/answers", s.answer)
	r.Post("/recommend", s.recommend)
	r.Post("/xai/compare", s.compare)
	r.Get("/xai/diagnosis/{conditionID}", s.explain)
	r.Get("/explain/{conditionID}", s.explain)
	r.Get("/symptoms", s.symptoms)
	r.Get("/diseases", s.diseases)
	if s.records != nil {
		r.Get("/diagnoses/{diagnosisID}", s.record)
	}
	return r
}
