package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/invoiceworks/billing-core/internal/api/handlers"
	"github.com/invoiceworks/billing-core/internal/api/middleware"
	"github.com/invoiceworks/billing-core/internal/audit"
	"github.com/invoiceworks/billing-core/internal/auth"
	"github.com/invoiceworks/billing-core/internal/config"
	"github.com/invoiceworks/billing-core/internal/monitoring"
	"github.com/invoiceworks/billing-core/internal/rbac"
	"github.com/invoiceworks/billing-core/internal/repo"
	"github.com/invoiceworks/billing-core/internal/services"
	"github.com/invoiceworks/billing-core/pkg/cache"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.Cache
	gateway    *repo.Gateway
	policy     *rbac.Policy
	audit      *audit.Emitter
	resolver   *auth.Resolver
	db         handlers.Pinger
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	c cache.Cache,
	gateway *repo.Gateway,
	policy *rbac.Policy,
	auditor *audit.Emitter,
	db handlers.Pinger,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:   cfg,
		logger:   log,
		cache:    c,
		gateway:  gateway,
		policy:   policy,
		audit:    auditor,
		resolver: auth.NewResolver(c, cfg.Auth, log),
		db:       db,
		router:   gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(monitoring.HTTPMetricsMiddleware())
	s.router.Use(middleware.AuthMiddleware(s.resolver))
	s.router.Use(middleware.TenantScopeMiddleware())

	monitoring.SetupPrometheusMetrics(s.router)
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.db, s.cache, s.logger)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")

	authSvc := services.NewAuthService(s.gateway, s.cache, s.logger)
	authHandler := handlers.NewAuthHandler(authSvc, s.logger)
	v1.POST("/auth/login", authHandler.Login)
	v1.POST("/auth/logout", authHandler.Logout)
	v1.GET("/auth/user", authHandler.CurrentUser)

	orgHandler := handlers.NewOrganizationHandler(s.gateway, s.policy, s.audit, s.logger)
	v1.GET("/organizations", orgHandler.List)
	v1.POST("/organizations", orgHandler.Create)
	v1.GET("/organizations/:id", orgHandler.Get)
	v1.PUT("/organizations/:id", orgHandler.Update)
	v1.DELETE("/organizations/:id", orgHandler.Delete)

	userHandler := handlers.NewUserHandler(s.gateway, s.policy, s.audit, s.logger)
	v1.GET("/users", userHandler.List)
	v1.POST("/users", userHandler.Create)
	v1.GET("/users/:id", userHandler.Get)
	v1.PUT("/users/:id", userHandler.Update)
	v1.DELETE("/users/:id", userHandler.Delete)

	vendorHandler := handlers.NewVendorHandler(s.gateway, s.policy, s.audit, s.logger)
	v1.GET("/vendors", vendorHandler.List)
	v1.POST("/vendors", vendorHandler.Create)
	v1.GET("/vendors/:id", vendorHandler.Get)
	v1.PUT("/vendors/:id", vendorHandler.Update)
	v1.DELETE("/vendors/:id", vendorHandler.Delete)

	invoiceHandler := handlers.NewInvoiceHandler(s.gateway, s.policy, s.audit, s.logger)
	v1.GET("/invoices", invoiceHandler.List)
	v1.POST("/invoices", invoiceHandler.Create)
	v1.GET("/invoices/status/:status", invoiceHandler.ListByStatus)
	v1.GET("/invoices/:id", invoiceHandler.Get)
	v1.PUT("/invoices/:id", invoiceHandler.Update)
	v1.DELETE("/invoices/:id", invoiceHandler.Delete)
	v1.GET("/invoices/:id/vendor", invoiceHandler.GetVendor)
}

// Router exposes the configured engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("billing-core REST API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down billing-core gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Flush buffered audit events before the process exits.
	s.audit.Close()

	return s.httpServer.Shutdown(shutdownCtx)
}
