package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/api/handlers"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/apiutil"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/auth"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/config"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/validation"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Dependencies are the services the API serves
type Dependencies struct {
	Ledger    handlers.Ledger
	Catalog   handlers.Catalog
	Quotes    handlers.Quotes
	Validator *validation.Validator
	Auth      auth.AuthorizationConfig
	// Checks are run by GET /health, keyed by dependency name
	Checks map[string]HealthCheck
}

// Server represents the API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
	handler    *handlers.Handler
	deps       Dependencies
	cfg        config.ServerConfig
}

// NewServer creates the API server and registers its routes
func NewServer(cfg config.ServerConfig, serviceName string, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if err := apiutil.RegisterBindingValidators(deps.Validator); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	router := gin.New()

	// Add middleware
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(apiutil.MetricsMiddleware())

	// Configure CORS
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: len(origins) > 0 && origins[0] != "*",
		MaxAge:           12 * time.Hour,
	}))
	router.Use(apiutil.RFC7807ErrorMiddleware())

	s := &Server{
		router:  router,
		logger:  logger,
		handler: handlers.New(deps.Ledger, deps.Catalog, deps.Quotes, deps.Validator, logger),
		deps:    deps,
		cfg:     cfg,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting API server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	h := s.handler

	// Public routes
	public := s.router.Group("/api/v1")
	{
		public.GET("/metrics", gin.WrapH(promhttp.Handler()))
		public.GET("/health", s.healthCheck)
		public.GET("/properties", h.ListProperties)
		public.GET("/properties/:id", h.GetProperty)
		public.GET("/ethrate/eth-inr", h.EthInr)
	}

	// Authenticated routes
	authed := s.router.Group("/api/v1", auth.Middleware(s.logger, s.deps.Auth))
	{
		authed.POST("/properties/:id/purchase", h.Purchase)
		authed.POST("/properties/:id/resale", h.ListForResale)
		authed.GET("/portfolio", h.Portfolio)
		authed.POST("/portfolio/repair", h.RepairPortfolio)
	}

	// Admin routes
	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/properties", h.CreateProperty)
		admin.PATCH("/properties/:id", h.UpdateProperty)
		admin.POST("/purchases/:id/retry-index", h.RetryIndex)
	}
}

// healthCheck runs every registered check with a short deadline
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
