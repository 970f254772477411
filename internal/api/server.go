package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/campuserp/abac-core/internal/attribute"
	"github.com/campuserp/abac-core/internal/audit"
	"github.com/campuserp/abac-core/internal/engine"
	"github.com/campuserp/abac-core/internal/metrics"
	"github.com/campuserp/abac-core/internal/policy"
)

// Server is the REST API server.
type Server struct {
	engine     *engine.Engine
	policies   policy.Store
	validator  *policy.Validator
	attrs      attribute.Store
	defs       attribute.DefinitionStore
	auditStore audit.Store
	metrics    *metrics.Metrics
	router     *mux.Router
	httpServer *http.Server
	logger     *zap.Logger
	config     Config
	startTime  time.Time
}

// Config configures the REST API server.
type Config struct {
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	EnableCORS    bool
	EnableAuth    bool
	Authenticator *Authenticator
	Version       string
}

// DefaultConfig returns default REST server configuration.
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		EnableCORS:   true,
		EnableAuth:   false,
		Version:      "1.0.0",
	}
}

// Deps bundles the stores and services the API serves. AuditStore and
// Metrics may be nil; the corresponding endpoints report unavailable.
type Deps struct {
	Engine     *engine.Engine
	Policies   policy.Store
	Attributes attribute.Store
	Defs       attribute.DefinitionStore
	AuditStore audit.Store
	Metrics    *metrics.Metrics
}

// New creates a new REST API server.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Policies == nil {
		return nil, fmt.Errorf("policy store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		engine:     deps.Engine,
		policies:   deps.Policies,
		validator:  policy.NewValidator(),
		attrs:      deps.Attributes,
		defs:       deps.Defs,
		auditStore: deps.AuditStore,
		metrics:    deps.Metrics,
		router:     mux.NewRouter(),
		logger:     logger,
		config:     cfg,
		startTime:  time.Now(),
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

// registerRoutes registers all REST API routes.
func (s *Server) registerRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}

	// Health, status, and metrics endpoints (no auth required)
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	v1 := s.router.PathPrefix("/v1").Subrouter()

	if s.config.EnableAuth && s.config.Authenticator != nil {
		v1.Use(s.config.Authenticator.Middleware)
	}

	v1.HandleFunc("/status", s.statusHandler).Methods("GET")

	// Decision endpoints
	v1.HandleFunc("/evaluate", s.evaluateHandler).Methods("POST")
	v1.HandleFunc("/datascope", s.dataScopeHandler).Methods("POST")
	v1.HandleFunc("/policy-test", s.policyTestHandler).Methods("POST")

	// Policy management endpoints
	policies := v1.PathPrefix("/policies").Subrouter()
	policies.HandleFunc("", s.listPoliciesHandler).Methods("GET")
	policies.HandleFunc("", s.createPolicyHandler).Methods("POST")
	policies.HandleFunc("/{id}", s.getPolicyHandler).Methods("GET")
	policies.HandleFunc("/{id}", s.updatePolicyHandler).Methods("PUT")
	policies.HandleFunc("/{id}", s.deletePolicyHandler).Methods("DELETE")

	// Attribute catalog endpoints
	defs := v1.PathPrefix("/attribute-definitions").Subrouter()
	defs.HandleFunc("", s.listDefinitionsHandler).Methods("GET")
	defs.HandleFunc("", s.saveDefinitionHandler).Methods("POST")
	defs.HandleFunc("/{name}", s.getDefinitionHandler).Methods("GET")
	defs.HandleFunc("/{name}", s.deleteDefinitionHandler).Methods("DELETE")

	// User attribute endpoints
	users := v1.PathPrefix("/users/{id}/attributes").Subrouter()
	users.HandleFunc("", s.listUserAttributesHandler).Methods("GET")
	users.HandleFunc("", s.upsertUserAttributeHandler).Methods("PUT")
	users.HandleFunc("/{name}", s.deactivateUserAttributeHandler).Methods("DELETE")

	// Audit browsing
	v1.HandleFunc("/evaluations", s.listEvaluationsHandler).Methods("GET")
}

// Start starts the REST API server.
func (s *Server) Start() error {
	s.logger.Info("starting REST API server",
		zap.Int("port", s.config.Port),
		zap.Bool("auth_enabled", s.config.EnableAuth),
		zap.Bool("cors_enabled", s.config.EnableCORS),
	)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the REST API server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down REST API server")
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				WriteError(w, http.StatusInternalServerError, "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
