// Package app provides the dependency injection container for assembling
// application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/goformed/backoffice/internal/config"
	"github.com/goformed/backoffice/internal/database"
	"github.com/goformed/backoffice/internal/diagnostics"
	"github.com/goformed/backoffice/internal/http"
	mailqueueHTTP "github.com/goformed/backoffice/internal/mailqueue/http"
	mailqueueRepository "github.com/goformed/backoffice/internal/mailqueue/repository"
	"github.com/goformed/backoffice/internal/mailqueue/smtp"
	mailqueueUsecase "github.com/goformed/backoffice/internal/mailqueue/usecase"
	"github.com/goformed/backoffice/internal/metrics"
	paymentHTTP "github.com/goformed/backoffice/internal/payment/http"
	paymentRepository "github.com/goformed/backoffice/internal/payment/repository"
	"github.com/goformed/backoffice/internal/payment/shopify"
	paymentUsecase "github.com/goformed/backoffice/internal/payment/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	diagnostics     *diagnostics.Service

	// Repositories
	emailJobRepo mailqueueUsecase.EmailJobRepository
	emailLogRepo mailqueueUsecase.EmailLogRepository
	requestRepo  paymentUsecase.CompanyRequestRepository
	webhookRepo  paymentUsecase.WebhookLogRepository
	noteRepo     paymentUsecase.RequestNoteRepository

	// Use Cases
	processorUseCase *mailqueueUsecase.ProcessorUseCase
	dispatchUseCase  *mailqueueUsecase.DispatchUseCase
	webhookUseCase   *paymentUsecase.WebhookUseCase
	pollerRegistry   *paymentUsecase.PollerRegistry

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                   sync.Mutex
	loggerInit           sync.Once
	dbInit               sync.Once
	txManagerInit        sync.Once
	metricsProviderInit  sync.Once
	businessMetricsInit  sync.Once
	diagnosticsInit      sync.Once
	emailJobRepoInit     sync.Once
	emailLogRepoInit     sync.Once
	requestRepoInit      sync.Once
	webhookRepoInit      sync.Once
	noteRepoInit         sync.Once
	processorUseCaseInit sync.Once
	dispatchUseCaseInit  sync.Once
	webhookUseCaseInit   sync.Once
	pollerRegistryInit   sync.Once
	httpServerInit       sync.Once
	metricsServerInit    sync.Once
	initErrors           map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := database.Connect(database.Config{
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			c.initErrors["db"] = fmt.Errorf("failed to connect to database: %w", err)
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder.
// Falls back to a no-op implementation when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["businessMetrics"] = err
			return
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		bm, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["businessMetrics"] = fmt.Errorf("failed to create business metrics: %w", err)
			return
		}
		c.businessMetrics = bm
	})
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// Diagnostics returns the diagnostics event recorder.
func (c *Container) Diagnostics() *diagnostics.Service {
	c.diagnosticsInit.Do(func() {
		c.diagnostics = diagnostics.NewService(c.config.DiagnosticsBufferSize)
	})
	return c.diagnostics
}

// EmailJobRepository returns the email job repository instance.
func (c *Container) EmailJobRepository() (mailqueueUsecase.EmailJobRepository, error) {
	c.emailJobRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["emailJobRepo"] = fmt.Errorf("failed to get database for email job repository: %w", err)
			return
		}
		c.emailJobRepo = mailqueueRepository.NewPostgreSQLEmailJobRepository(db)
	})
	if storedErr, exists := c.initErrors["emailJobRepo"]; exists {
		return nil, storedErr
	}
	return c.emailJobRepo, nil
}

// EmailLogRepository returns the email log repository instance.
func (c *Container) EmailLogRepository() (mailqueueUsecase.EmailLogRepository, error) {
	c.emailLogRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["emailLogRepo"] = fmt.Errorf("failed to get database for email log repository: %w", err)
			return
		}
		c.emailLogRepo = mailqueueRepository.NewPostgreSQLEmailLogRepository(db)
	})
	if storedErr, exists := c.initErrors["emailLogRepo"]; exists {
		return nil, storedErr
	}
	return c.emailLogRepo, nil
}

// CompanyRequestRepository returns the company request repository instance.
func (c *Container) CompanyRequestRepository() (paymentUsecase.CompanyRequestRepository, error) {
	c.requestRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["requestRepo"] = fmt.Errorf("failed to get database for request repository: %w", err)
			return
		}
		c.requestRepo = paymentRepository.NewPostgreSQLCompanyRequestRepository(db)
	})
	if storedErr, exists := c.initErrors["requestRepo"]; exists {
		return nil, storedErr
	}
	return c.requestRepo, nil
}

// WebhookLogRepository returns the webhook log repository instance.
func (c *Container) WebhookLogRepository() (paymentUsecase.WebhookLogRepository, error) {
	c.webhookRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["webhookRepo"] = fmt.Errorf("failed to get database for webhook log repository: %w", err)
			return
		}
		c.webhookRepo = paymentRepository.NewPostgreSQLWebhookLogRepository(db)
	})
	if storedErr, exists := c.initErrors["webhookRepo"]; exists {
		return nil, storedErr
	}
	return c.webhookRepo, nil
}

// RequestNoteRepository returns the request note repository instance.
func (c *Container) RequestNoteRepository() (paymentUsecase.RequestNoteRepository, error) {
	c.noteRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["noteRepo"] = fmt.Errorf("failed to get database for note repository: %w", err)
			return
		}
		c.noteRepo = paymentRepository.NewPostgreSQLRequestNoteRepository(db)
	})
	if storedErr, exists := c.initErrors["noteRepo"]; exists {
		return nil, storedErr
	}
	return c.noteRepo, nil
}

// ProcessorUseCase returns the email queue processor use case.
func (c *Container) ProcessorUseCase() (*mailqueueUsecase.ProcessorUseCase, error) {
	c.processorUseCaseInit.Do(func() {
		jobRepo, err := c.EmailJobRepository()
		if err != nil {
			c.initErrors["processorUseCase"] = err
			return
		}
		logRepo, err := c.EmailLogRepository()
		if err != nil {
			c.initErrors["processorUseCase"] = err
			return
		}
		bm, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["processorUseCase"] = err
			return
		}

		mailer := smtp.NewClient(smtp.Config{
			Host:        c.config.SMTPHost,
			Port:        c.config.SMTPPort,
			Username:    c.config.SMTPUsername,
			Password:    c.config.SMTPPassword,
			FromAddress: c.config.SMTPFromAddress,
			FromName:    c.config.SMTPFromName,
			Timeout:     c.config.SMTPTimeout,
		})

		c.processorUseCase = mailqueueUsecase.NewProcessorUseCase(
			mailqueueUsecase.ProcessorConfig{
				BatchSize:   c.config.MailQueueBatchSize,
				MaxAttempts: c.config.MailQueueMaxAttempts,
				JobDelay:    c.config.MailQueueJobDelay,
			},
			jobRepo, logRepo, mailer, bm, c.Diagnostics(), c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["processorUseCase"]; exists {
		return nil, storedErr
	}
	return c.processorUseCase, nil
}

// DispatchUseCase returns the admin email dispatch use case.
func (c *Container) DispatchUseCase() (*mailqueueUsecase.DispatchUseCase, error) {
	c.dispatchUseCaseInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["dispatchUseCase"] = err
			return
		}
		jobRepo, err := c.EmailJobRepository()
		if err != nil {
			c.initErrors["dispatchUseCase"] = err
			return
		}
		bm, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["dispatchUseCase"] = err
			return
		}

		notifier := mailqueueUsecase.NewHTTPProcessorNotifier(c.config.MailQueueProcessorURL)

		c.dispatchUseCase = mailqueueUsecase.NewDispatchUseCase(
			mailqueueUsecase.DispatchConfig{
				MaxPerHour:    c.config.DispatchMaxPerHour,
				Retries:       uint64(c.config.DispatchRetries),
				RetryInterval: c.config.DispatchRetryInterval,
				DedupWindow:   c.config.DispatchDedupWindow,
			},
			txManager, jobRepo, notifier, bm, c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["dispatchUseCase"]; exists {
		return nil, storedErr
	}
	return c.dispatchUseCase, nil
}

// WebhookUseCase returns the payment webhook use case.
func (c *Container) WebhookUseCase() (*paymentUsecase.WebhookUseCase, error) {
	c.webhookUseCaseInit.Do(func() {
		requestRepo, err := c.CompanyRequestRepository()
		if err != nil {
			c.initErrors["webhookUseCase"] = err
			return
		}
		webhookRepo, err := c.WebhookLogRepository()
		if err != nil {
			c.initErrors["webhookUseCase"] = err
			return
		}
		noteRepo, err := c.RequestNoteRepository()
		if err != nil {
			c.initErrors["webhookUseCase"] = err
			return
		}
		bm, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["webhookUseCase"] = err
			return
		}

		c.webhookUseCase = paymentUsecase.NewWebhookUseCase(
			paymentUsecase.WebhookConfig{
				Secret: c.config.WebhookSecret,
			},
			requestRepo, webhookRepo, noteRepo, bm, c.Diagnostics(), c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["webhookUseCase"]; exists {
		return nil, storedErr
	}
	return c.webhookUseCase, nil
}

// PollerRegistry returns the payment status poller registry.
func (c *Container) PollerRegistry() (*paymentUsecase.PollerRegistry, error) {
	c.pollerRegistryInit.Do(func() {
		requestRepo, err := c.CompanyRequestRepository()
		if err != nil {
			c.initErrors["pollerRegistry"] = err
			return
		}
		bm, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["pollerRegistry"] = err
			return
		}
		dispatch, err := c.DispatchUseCase()
		if err != nil {
			c.initErrors["pollerRegistry"] = err
			return
		}

		provider := shopify.NewClient(shopify.Config{
			APIBaseURL:  c.config.ShopifyAPIBaseURL,
			AccessToken: c.config.ShopifyAccessToken,
		})

		pollerConfig := paymentUsecase.PollerConfig{
			InitialDelay:     c.config.PollerInitialDelay,
			MinCheckInterval: c.config.PollerMinCheckInterval,
			BackoffStart:     c.config.PollerBackoffStart,
			BackoffStep:      c.config.PollerBackoffStep,
			BackoffCeiling:   c.config.PollerBackoffCeiling,
		}

		onPaid := c.paymentNotification(dispatch)

		c.pollerRegistry = paymentUsecase.NewPollerRegistry(func(requestID uuid.UUID) *paymentUsecase.StatusPoller {
			return paymentUsecase.NewStatusPoller(
				pollerConfig, requestID, requestRepo, provider, onPaid,
				bm, c.Diagnostics(), c.Logger(),
			)
		})
	})
	if storedErr, exists := c.initErrors["pollerRegistry"]; exists {
		return nil, storedErr
	}
	return c.pollerRegistry, nil
}

// paymentNotification builds the callback fired when a poller discovers a
// completed payment. Returns nil when no admin notification address is set.
func (c *Container) paymentNotification(dispatch *mailqueueUsecase.DispatchUseCase) func(requestID uuid.UUID) {
	if c.config.AdminNotificationEmail == "" {
		return nil
	}

	return func(requestID uuid.UUID) {
		_, err := dispatch.SendAdminEmail(context.Background(), mailqueueUsecase.DispatchInput{
			Recipients: []string{c.config.AdminNotificationEmail},
			Subject:    fmt.Sprintf("Payment received for request %s", requestID),
			Message:    fmt.Sprintf("Checkout completed for company formation request %s.", requestID),
		})
		if err != nil {
			c.Logger().Warn("failed to enqueue payment notification",
				slog.String("request_id", requestID.String()),
				slog.Any("error", err))
		}
	}
}

// HTTPServer returns the API server instance with all routes mounted.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		processor, err := c.ProcessorUseCase()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		dispatch, err := c.DispatchUseCase()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		webhook, err := c.WebhookUseCase()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		registry, err := c.PollerRegistry()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}

		logger := c.Logger()
		server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)

		deps := http.RouterDeps{
			MailQueue:        mailqueueHTTP.NewMailQueueHandler(processor, dispatch, logger),
			Payment:          paymentHTTP.NewPaymentHandler(webhook, registry, logger),
			Diagnostics:      http.DiagnosticsHandler(c.Diagnostics()),
			CORSEnabled:      c.config.CORSEnabled,
			CORSAllowOrigins: c.config.CORSAllowOrigins,
		}
		if c.config.RateLimitEnabled {
			deps.AdminLimiter = http.RateLimitMiddleware(
				c.config.RateLimitRequestsPerSec,
				c.config.RateLimitBurst,
				logger,
			)
		}
		server.SetupRouter(deps)

		c.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance, or nil when metrics
// are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.pollerRegistry != nil {
		c.pollerRegistry.StopAll()
	}

	if c.diagnostics != nil {
		c.diagnostics.Close()
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}
