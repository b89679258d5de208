// Package api exposes the classification engine and the rule store over
// HTTP using fiber.
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/fintalk/iecat/internal/engine"
	"github.com/fintalk/iecat/internal/service"
)

// Dependencies are the components the HTTP handlers serve.
type Dependencies struct {
	Rules       service.RuleAdmin
	Categorizer *engine.Categorizer
	Logger      *slog.Logger
	Version     string
}

// Server bundles the fiber app with its handlers.
type Server struct {
	app      *fiber.App
	rules    service.RuleAdmin
	engine   *engine.Categorizer
	analyzer *engine.Analyzer
	logger   *slog.Logger
	version  string
}

// NewServer builds the HTTP surface.
func NewServer(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		rules:    deps.Rules,
		engine:   deps.Categorizer,
		analyzer: engine.NewAnalyzer(deps.Categorizer, logger),
		logger:   logger,
		version:  deps.Version,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "iecat",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          2 * time.Minute,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(s.requestLogger)
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		return s.app.ShutdownWithTimeout(10 * time.Second)
	}
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.health)

	v1 := s.app.Group("/api/v1")
	v1.Post("/classify", s.classify)
	v1.Post("/categorize/:docType", s.categorize)
	v1.Post("/analyze", s.analyze)

	rules := v1.Group("/rules")
	rules.Get("/", s.listRules)
	rules.Get("/lookup", s.lookupRule)
	rules.Post("/", s.createRule)
	rules.Delete("/:id", s.deleteRule)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start))
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return errorResponse(c, fe.Code, fe.Message)
	}
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Path(), "error", err)
	}
	return errorResponse(c, status, err.Error())
}
