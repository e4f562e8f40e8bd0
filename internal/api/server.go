package api

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/soochol/platescan/internal/metrics"
	"github.com/soochol/platescan/internal/repository"
	"github.com/soochol/platescan/internal/services"
	"github.com/soochol/platescan/internal/storage"
	"github.com/soochol/platescan/web"
)

const (
	defaultMaxUploadSize  = 500 << 20 // 500MB
	defaultMaxPreviewSize = 10 << 20  // 10MB
)

type Server struct {
	processSvc     *services.ProcessService
	jobs           repository.JobRepository
	uploads        storage.Storage
	results        storage.Storage
	metrics        *metrics.Metrics
	pages          *template.Template
	staticDir      string
	maxUploadSize  int64
	maxPreviewSize int64
	discardStale   bool
}

func NewServer(processSvc *services.ProcessService, uploads, results storage.Storage) *Server {
	return &Server{
		processSvc:     processSvc,
		uploads:        uploads,
		results:        results,
		pages:          template.Must(template.ParseFS(web.Templates, "templates/*.html")),
		maxUploadSize:  defaultMaxUploadSize,
		maxPreviewSize: defaultMaxPreviewSize,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/", s.index)
	r.Post("/upload", s.uploadVideo)
	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/jobs", s.listJobs)
		r.Get("/jobs/{id}", s.getJob)
		r.Get("/files", s.listFiles)
		r.Post("/preview", s.previewImage)
	})

	r.Handle("/static/*", http.StripPrefix("/static", StaticHandler(s.staticDir)))
	r.Get("/uploads/{name}", s.serveFile(s.uploads))
	r.Get("/result/{name}", s.serveFile(s.results))

	return r
}

// SetJobRepository enables the /api/jobs endpoints.
func (s *Server) SetJobRepository(repo repository.JobRepository) {
	s.jobs = repo
}

// SetMetrics exposes Prometheus metrics on /metrics.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetStaticDir serves /static from dir instead of the embedded assets.
func (s *Server) SetStaticDir(dir string) {
	s.staticDir = dir
}

// SetMaxUploadSize limits the size of /upload request bodies.
func (s *Server) SetMaxUploadSize(n int64) {
	if n > 0 {
		s.maxUploadSize = n
	}
}

// SetPreviewConfig configures /api/preview and the browser preview handler.
func (s *Server) SetPreviewConfig(maxSize int64, discardStale bool) {
	if maxSize > 0 {
		s.maxPreviewSize = maxSize
	}
	s.discardStale = discardStale
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.processSvc != nil {
		resp["detections"] = s.processSvc.Limiter().Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
