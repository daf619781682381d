package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/atsushimemet/fridge-predictor/internal/metrics"
	"github.com/atsushimemet/fridge-predictor/internal/table"
)

// Options configures a Server.
type Options struct {
	Version            string
	PredictionsEnabled bool
	AllowedOrigins     []string
}

// Server is the predictor HTTP API server.
type Server struct {
	tables  *table.Loader
	metrics *metrics.Collector
	log     logrus.FieldLogger
	opts    Options
	router  chi.Router
	started time.Time
	now     func() time.Time
}

// New creates a Server that loads its table through tables and records
// successful predictions in m.
func New(tables *table.Loader, m *metrics.Collector, log logrus.FieldLogger, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		tables:  tables,
		metrics: m,
		log:     log,
		opts:    opts,
		started: time.Now(),
		now:     time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/predict", s.handlePredict)
	r.Get("/metrics", s.handleMetrics)
	r.Post("/reload", s.handleReload)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"message":   "Predictor service is running",
		"version":   s.opts.Version,
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	cached, err := s.tables.Reload(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("table reload failed, keeping previous table")
		writeError(w, http.StatusServiceUnavailable, "Reload failed")
		return
	}

	t := s.tables.Load(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "OK",
		"categories": len(t),
		"cached":     cached,
	})
}
