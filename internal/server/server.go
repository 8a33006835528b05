// Package server contains the HTTP and WebSocket handlers of the lending API.
package server

import (
	"context"
	"sync"
	"time"

	_ "github.com/Jayriel04/MCCAsset2.0/docs" // swagger docs
	"github.com/Jayriel04/MCCAsset2.0/internal/bootstrap"
	"github.com/Jayriel04/MCCAsset2.0/internal/cache"
	"github.com/Jayriel04/MCCAsset2.0/internal/config"
	"github.com/Jayriel04/MCCAsset2.0/internal/database"
	"github.com/Jayriel04/MCCAsset2.0/internal/featureflags"
	"github.com/Jayriel04/MCCAsset2.0/internal/middleware"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/notifications"
	"github.com/Jayriel04/MCCAsset2.0/internal/repository"
	"github.com/Jayriel04/MCCAsset2.0/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "mcc-asset-api"

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// httpMetrics returns the process-wide Prometheus middleware. Collectors live
// in the default registry, so they can only be registered once.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.NewWithDefaultRegistry(serviceName)
	})
	return prom
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	borrowService  *service.BorrowService
	assetService   *service.AssetService
}

// NewServer connects to the database and Redis named in cfg and builds a
// Server on top of them. Redis is optional: without it caching and rate
// limiting are off and lifecycle events only reach this instance's clients.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedBuiltIns: cfg.SeedBuiltInAssets})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	flags := featureflags.NewManager(cfg.FeatureFlags)

	var store *cache.Store
	if redisClient != nil && flags.EnabledOr(featureflags.AssetCache, "", true) {
		store = cache.NewStore(redisClient)
	}

	hub := notifications.NewHub()
	var notifier *notifications.Notifier
	if redisClient != nil {
		notifier = notifications.NewNotifier(redisClient, nil)
	} else {
		notifier = notifications.NewNotifier(nil, hub.Dispatch)
	}

	lending := repository.NewLendingRepository(db, store)
	assets := repository.NewAssetRepository(db, store)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: httpMetrics(),
		notifier:       notifier,
		hub:            hub,
		featureFlags:   flags,
		borrowService:  service.NewBorrowService(lending, notifier, flags),
		assetService:   service.NewAssetService(assets, lending, notifier),
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Get("/features", s.GetFeatureFlags)

	timeout := requestTimeout(s.config.DBQueryTimeout)
	createLimit := middleware.RateLimit(s.redis, s.config.BorrowRateLimit, time.Minute, "borrow_create")

	// Define specific /:id/:action routes BEFORE generic /:id routes
	borrow := api.Group("/borrow", timeout)
	borrow.Post("/", createLimit, s.CreateBorrowRequest)
	borrow.Get("/", s.ListBorrowRequests)
	borrow.Get("/stats", s.GetBorrowStats)
	borrow.Post("/:id/approve", s.ApproveBorrowRequest)
	borrow.Post("/:id/reject", s.RejectBorrowRequest)
	borrow.Post("/:id/return", s.ReturnBorrowRequest)
	borrow.Get("/:id", s.GetBorrowRequest)
	borrow.Put("/:id", s.UpdateBorrowRequest)
	borrow.Delete("/:id", s.DeleteBorrowRequest)

	assets := api.Group("/assets", timeout)
	assets.Post("/", s.CreateAsset)
	assets.Get("/", s.ListAssets)
	assets.Get("/stats", s.GetAssetStats)
	assets.Patch("/:serial/status", s.UpdateAssetStatus)
	assets.Get("/:serial", s.GetAsset)

	api.Get("/ws/events", s.EventStreamHandler())

	// Legacy paths used by the original inventory pages.
	legacy := app.Group("/borrow", timeout)
	legacy.Post("/", createLimit, s.CreateBorrowRequest)
	legacy.Get("/", s.ListBorrowRequests)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so
// only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": serviceName,
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// GetFeatureFlags returns the evaluated flags for ?department=.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"department": c.Query("department"),
		"evaluated":  s.featureFlags.Snapshot(c.Query("department")),
	})
}

// NewApp builds the Fiber app with the JSON codec and error handler the
// handlers rely on, plus all middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start wires the event hub and serves HTTP on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start lending hub wiring", "error", err.Error())
			}
		}()
	}

	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err.Error())
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down lending hub", "error", err.Error())
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr.Error())
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr.Error())
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
