// Package http provides the API HTTP server, the metrics server, and
// shared middleware.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	mailqueueHTTP "github.com/goformed/backoffice/internal/mailqueue/http"
	paymentHTTP "github.com/goformed/backoffice/internal/payment/http"
)

// Server is the API HTTP server.
type Server struct {
	server *http.Server
	router *gin.Engine
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates a new API server. The database handle backs the
// readiness check; it may be nil in tests.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// RouterDeps bundles the handlers and middleware the router mounts.
type RouterDeps struct {
	MailQueue        *mailqueueHTTP.MailQueueHandler
	Payment          *paymentHTTP.PaymentHandler
	Diagnostics      gin.HandlerFunc
	AdminLimiter     gin.HandlerFunc
	CORSEnabled      bool
	CORSAllowOrigins string
}

// SetupRouter builds the gin router with middleware and all routes.
func (s *Server) SetupRouter(deps RouterDeps) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(deps.CORSEnabled, deps.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	if deps.MailQueue != nil {
		v1.POST("/email-queue/process", deps.MailQueue.ProcessHandler)
		v1.GET("/email-logs", deps.MailQueue.ListLogsHandler)

		admin := v1.Group("/admin")
		if deps.AdminLimiter != nil {
			admin.Use(deps.AdminLimiter)
		}
		admin.POST("/emails", deps.MailQueue.SendAdminEmailHandler)
	}

	if deps.Payment != nil {
		v1.POST("/webhooks/orders", deps.Payment.WebhookHandler)
		v1.OPTIONS("/webhooks/orders", deps.Payment.WebhookPreflightHandler)
		v1.POST("/requests/:id/payment-status", deps.Payment.CheckPaymentStatusHandler)
	}

	if deps.Diagnostics != nil {
		v1.GET("/diagnostics", deps.Diagnostics)
	}

	s.router = router
}

// GetHandler returns the router for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the API server. Blocks until the listener fails or the
// server is shut down.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the service can reach its database.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}

	if s.db == nil {
		components["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		components["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
