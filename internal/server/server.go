package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/votewise/votewise/internal/config"
	"github.com/votewise/votewise/internal/jobs"
	"github.com/votewise/votewise/internal/metrics"
	"github.com/votewise/votewise/internal/middleware"
	"github.com/votewise/votewise/internal/routes"
)

// Stores holds the optional backing connections. Only the one matching
// cfg.StoreDriver is required; Cache is always optional.
type Stores struct {
	DB    *pgxpool.Pool
	Mongo *mongo.Client
	Cache *redis.Client
}

// Server wraps the Fiber application and its background jobs.
type Server struct {
	app       *fiber.App
	cfg       config.Config
	scheduler *jobs.Scheduler
	logger    *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, st Stores, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler(logger),
	})

	scheduler, err := routes.Setup(app, routes.Deps{
		Cfg:     cfg,
		DB:      st.DB,
		Mongo:   st.Mongo,
		Cache:   st.Cache,
		Logger:  logger,
		Metrics: metrics.New(),
	})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, scheduler: scheduler, logger: logger}, nil
}

// App exposes the Fiber application, mainly for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the background jobs and then the HTTP server.
func (s *Server) Listen() error {
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	s.logger.Info("server listening", slog.String("addr", s.cfg.Address()), slog.String("store", s.cfg.StoreDriver))
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and the scheduler.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.scheduler.Stop(ctx)
	return err
}

// errorHandler renders fiber errors as {"error": msg} and hides anything
// else behind a generic 500.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		logger.ErrorContext(c.UserContext(), "unhandled error",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("request_id", middleware.RequestIDFrom(c)),
			slog.Any("error", err),
		)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "server error"})
	}
}
