package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/firewatch-dev/firewatch/internal/alert"
	mw "github.com/firewatch-dev/firewatch/internal/api/middleware"
	"github.com/firewatch-dev/firewatch/internal/camera"
	"github.com/firewatch-dev/firewatch/internal/dashboard"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/notifier"
	"github.com/firewatch-dev/firewatch/internal/observability"
	"github.com/firewatch-dev/firewatch/internal/reading"
	"github.com/firewatch-dev/firewatch/internal/secrets"
	"github.com/firewatch-dev/firewatch/internal/subscription"
)

// Scanner runs one alert scan.
type Scanner interface {
	Scan(ctx context.Context) (*alert.Report, error)
}

// Subscriptions is the subscription service the REST routes use.
type Subscriptions interface {
	Subscribe(ctx context.Context, cameraID, phoneNumber, userID string) (*subscription.Created, error)
	Unsubscribe(ctx context.Context, id string) error
	List(ctx context.Context) ([]subscription.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]subscription.Subscription, error)
}

// Dashboard builds the dashboard summary.
type Dashboard interface {
	Summary(ctx context.Context) (*dashboard.Summary, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server is the FireWatch HTTP server.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	// Dependencies
	scanner       Scanner
	subscriptions Subscriptions
	notifiers     *notifier.Set
	readings      reading.Store
	cameras       *camera.Catalog
	dashboard     Dashboard
	secrets       secrets.Source
	metrics       *observability.Metrics
	checks        map[string]HealthCheck

	version   string
	startTime time.Time
	wg        sync.WaitGroup
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithScanner sets the alert scanner behind check-fire-alerts.
func WithScanner(sc Scanner) ServerOption {
	return func(s *Server) { s.scanner = sc }
}

// WithSubscriptions sets the subscription service.
func WithSubscriptions(subs Subscriptions) ServerOption {
	return func(s *Server) { s.subscriptions = subs }
}

// WithNotifiers sets the notifier set used by the send endpoints.
func WithNotifiers(set *notifier.Set) ServerOption {
	return func(s *Server) { s.notifiers = set }
}

// WithReadings sets the reading store behind get-camera-data.
func WithReadings(store reading.Store) ServerOption {
	return func(s *Server) { s.readings = store }
}

// WithCameras sets the camera catalog.
func WithCameras(c *camera.Catalog) ServerOption {
	return func(s *Server) { s.cameras = c }
}

// WithDashboard sets the dashboard service.
func WithDashboard(d Dashboard) ServerOption {
	return func(s *Server) { s.dashboard = d }
}

// WithSecrets sets the source behind get-secret. Only names listed in
// Config.ExposedSecrets are served.
func WithSecrets(src secrets.Source) ServerOption {
	return func(s *Server) { s.secrets = src }
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(s *Server) { s.checks[name] = check }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) ServerOption {
	return func(s *Server) { s.version = v }
}

// New creates a new HTTP server with the given configuration and options.
func New(config *Config, opts ...ServerOption) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		log:       GetLogger(),
		checks:    make(map[string]HealthCheck),
		version:   "dev",
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.secrets != nil {
		s.secrets = secrets.Allowed(s.secrets, config.ExposedSecrets)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized", logger.String("address", config.Listen), logger.Bool("debug", config.Debug))
	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, func(c echo.Context) bool {
		return c.Path() == "/health" || c.Path() == "/metrics"
	}))
	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins
	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	fn := s.echo.Group("/functions/v1")
	fn.POST("/check-fire-alerts", s.checkFireAlerts)
	fn.POST("/send-sms", s.sendSMS)
	fn.POST("/send-sms-via-email", s.sendSMSViaEmail)
	fn.POST("/send-alert", s.sendAlert)
	fn.POST("/get-camera-data", s.getCameraData)
	fn.POST("/get-secret", s.getSecret)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/subscriptions", s.listSubscriptions)
	v1.POST("/subscriptions", s.createSubscription)
	v1.DELETE("/subscriptions/:id", s.deleteSubscription)
	v1.GET("/cameras", s.listCameras)
	v1.GET("/cameras/:id/readings", s.cameraReadings)
	v1.GET("/dashboard", s.getDashboard)
}

// healthCheck reports uptime and the state of each registered dependency.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	status := http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			deps[name] = "unhealthy: " + logger.RedactSensitiveData(err.Error())
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	return c.JSON(status, map[string]any{
		"status":         state,
		"version":        s.version,
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
		"dependencies":   deps,
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	s.wg.Go(func() {
		s.log.Info("HTTP server starting", logger.String("address", s.config.Listen))
		if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	})

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("Error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.wg.Wait()
	s.log.Info("Server shutdown complete")
	return nil
}
