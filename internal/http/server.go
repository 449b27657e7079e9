package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ServerConfig holds the transport settings of the API.
type ServerConfig struct {
	Addr           string
	Verifier       *identity.Verifier
	RateLimit      ratelimit.Config
	TrustedProxies []string
	Logger         *log.Logger
}

type Server struct {
	http.Server
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires the middleware chain and routes, returning a ready-to-run
// http.Server.
func NewServer(cfg ServerConfig, deps Deps) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		limiter:  ratelimit.NewLimiter(cfg.RateLimit),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ClientIP, log.NewStructuredLogger(logger)),
	}
	s.Handler = s.routes(cfg.Verifier, &handlers{Deps: deps}, logger)
	return s, nil
}

func (s *Server) routes(verifier *identity.Verifier, h *handlers, logger *log.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(log.Middleware(logger))
	r.Use(log.RequestIDMiddleware(trace.FromRequest))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
		}))
		r.Use(identity.Middleware(verifier))

		r.Route("/records/{kind}", func(r chi.Router) {
			r.Get("/", h.handleListRecords)
			r.Post("/", h.handleCreateRecord)
			r.Get("/{id}", h.handleGetRecord)
			r.Put("/{id}", h.handleUpdateRecord)
			r.Delete("/{id}", h.handleDeleteRecord)
		})
		r.Route("/loans/{id}/payments", func(r chi.Router) {
			r.Get("/", h.handleListLoanPayments)
			r.Post("/", h.handleAddLoanPayment)
			r.Put("/{paymentID}", h.handleUpdateLoanPayment)
			r.Delete("/{paymentID}", h.handleDeleteLoanPayment)
		})
		r.Post("/payments/{id}/paid", h.handleMarkPaid)

		r.Get("/dashboard", h.handleDashboard)
		r.Get("/reports/categories.csv", h.handleCategoryCSV)
		r.Get("/history", h.handleHistory)
		r.Get("/reports/history.csv", h.handleHistoryCSV)
		r.Get("/rates", h.handleRates)
		r.Get("/convert", h.handleConvert)

		r.Get("/profile", h.handleGetProfile)
		r.Put("/profile", h.handleUpdateProfile)
	})
	return r
}

// Shutdown stops the limiter's cleanup and drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
