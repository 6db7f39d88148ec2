package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
)

// MetricsRecorder is the slice of the metrics registry the router serves and
// feeds.
type MetricsRecorder interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Options struct {
	APIKey           string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	AllowedOrigins   []string
	MaxUploadBytes   int64
	Metrics          MetricsRecorder
}

type Router struct {
	workflows ports.WorkflowService
	uploader  ports.DocumentUploader
	previewer ports.DocumentPreviewer
	exporter  ports.ReportExporter
	opts      Options
}

func NewRouter(
	workflows ports.WorkflowService,
	uploader ports.DocumentUploader,
	previewer ports.DocumentPreviewer,
	exporter ports.ReportExporter,
	opts Options,
) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = domain.DefaultMaxUploadBytes
	}
	if opts.BackpressureWait <= 0 {
		opts.BackpressureWait = 250 * time.Millisecond
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Router{
		workflows: workflows,
		uploader:  uploader,
		previewer: previewer,
		exporter:  exporter,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))
	if rt.opts.Metrics != nil {
		r.Use(rt.opts.Metrics.Middleware)
	}

	r.Get("/healthz", rt.healthz)
	r.Get("/openapi.json", rt.openAPI)
	if rt.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.opts.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(rateLimitMiddleware(rt.opts.RateLimitRPS, rt.opts.RateLimitBurst))
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
		})
		r.Use(bearerAuthMiddleware(rt.opts.APIKey))

		r.Post("/v1/workflows", rt.createWorkflow)
		r.Get("/v1/workflows/{id}", rt.getWorkflow)
		r.Post("/v1/workflows/{id}/upload", rt.uploadDocument)
		r.Post("/v1/workflows/{id}/retry", rt.retryAnalysis)
		r.Post("/v1/workflows/{id}/reset", rt.resetWorkflow)
		r.Post("/v1/workflows/{id}/clauses/{index}/toggle", rt.toggleClause)
		r.Get("/v1/workflows/{id}/report.xlsx", rt.exportReport)
		r.Get("/v1/workflows/{id}/document", rt.getDocument)
		r.Get("/v1/workflows/{id}/preview", rt.getPreview)
		r.Post("/v1/workflows/{id}/preview", rt.applyPreview)
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
