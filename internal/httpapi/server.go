package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/kvstore/internal/health"
	"github.com/p-blackswan/kvstore/internal/kvstore"
	"github.com/p-blackswan/kvstore/internal/metrics"
	"github.com/p-blackswan/kvstore/internal/perf"
	"github.com/p-blackswan/kvstore/internal/requestid"
)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	ListenAddr  string
	CORSOrigins string
}

// Server is the store's HTTP Fiber application.
type Server struct {
	app    *fiber.App
	logger zerolog.Logger
	config ServerConfig
}

// NewServer creates and configures the store's HTTP server.
func NewServer(
	cfg ServerConfig,
	store *kvstore.Store,
	checker *health.Checker,
	metricsCollector *metrics.Metrics,
	tracker *perf.Tracker,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	handlers := NewHandlers(store, checker, metricsCollector, tracker, logger)

	s := &Server{
		app:    app,
		logger: logger.With().Str("component", "httpapi_server").Logger(),
		config: cfg,
	}

	s.setupMiddleware(cfg, logger)
	s.setupRoutes(handlers, metricsCollector)

	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
			AllowMethods: "GET, POST, DELETE, OPTIONS",
		}))
	}

	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/health" || path == "/ready" || path == "/metrics" {
			return c.Next()
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("request_id", fmt.Sprintf("%v", c.Locals("request_id"))).
			Msg("kvstore api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, metricsCollector *metrics.Metrics) {
	s.app.Post("/set", h.Set)
	s.app.Get("/get/:key", h.Get)
	s.app.Delete("/delete/:key", h.Delete)

	s.app.Get("/namespaces", h.ListNamespaces)
	s.app.Get("/namespaces/:ns/keys", h.NamespaceSize)
	s.app.Delete("/namespaces/:ns", h.ClearNamespace)

	s.app.Get("/stats", h.Stats)
	s.app.Get("/health", h.Health)
	s.app.Get("/ready", h.Ready)
	s.app.Post("/compact", h.Compact)
	s.app.Get("/performance", h.Performance)

	if metricsCollector != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(metricsCollector.Handler()))
	}
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("http server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("http server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   err.Error(),
			Instance: c.Path(),
		})
	}
}
