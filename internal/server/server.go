// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "pettit/docs" // swagger docs
	"pettit/internal/cache"
	"pettit/internal/config"
	"pettit/internal/database"
	"pettit/internal/featureflags"
	"pettit/internal/middleware"
	"pettit/internal/models"
	"pettit/internal/notifications"
	"pettit/internal/repository"
	"pettit/internal/service"
	"pettit/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	verifier       *middleware.TokenVerifier
	featureFlags   *featureflags.Manager
	media          storage.MediaStore
	publisher      notifications.Publisher
	closePublisher func() error
	notifier       *notifications.Notifier
	feedHub        *notifications.FeedHub

	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	communityRepo  repository.CommunityRepository
	membershipRepo repository.MembershipRepository

	voteService       *service.VoteService
	membershipService *service.MembershipService
	feedService       *service.FeedService
	trendingService   *service.TrendingService
	searchService     *service.SearchService
	postService       *service.PostService
	communityService  *service.CommunityService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
// redisClient may be nil; caching, rate limiting and the realtime feed are
// then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	media, err := storage.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("media store: %w", err)
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("pettit-api"),
		verifier:       middleware.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		media:          media,
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		communityRepo:  repository.NewCommunityRepository(db),
		membershipRepo: repository.NewMembershipRepository(db),
	}

	if redisClient != nil || cfg.EventsBackend == "kafka" {
		server.publisher, server.closePublisher = notifications.NewPublisher(cfg, redisClient)
	} else {
		server.publisher, server.closePublisher = notifications.NopPublisher{}, func() error { return nil }
	}
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.feedHub = notifications.NewFeedHub()
	}

	maxUpload := int64(cfg.MediaMaxUploadSizeMB) << 20
	server.voteService = service.NewVoteService(server.postRepo, server.publisher, server.featureFlags)
	server.membershipService = service.NewMembershipService(server.communityRepo, server.membershipRepo, server.publisher, server.featureFlags)
	server.feedService = service.NewFeedService(server.postRepo, server.communityRepo)
	server.trendingService = service.NewTrendingService(server.postRepo, server.featureFlags)
	server.searchService = service.NewSearchService(server.postRepo, server.communityRepo, server.userRepo)
	server.postService = service.NewPostService(server.postRepo, server.communityRepo, server.membershipRepo,
		server.media, maxUpload, server.publisher, server.featureFlags)
	server.communityService = service.NewCommunityService(server.communityRepo, server.membershipRepo)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID, User ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if s.config.MediaBackend == "" || s.config.MediaBackend == "local" {
		app.Static("/uploads", s.config.MediaUploadDir, fiber.Static{MaxAge: 3600})
	}

	api := app.Group("/api", middleware.OptionalAuth(s.verifier))
	api.Get("/", s.HealthCheck)
	api.Get("/features", s.GetFeatureFlags)

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	requireAuth := middleware.RequireAuth(s.verifier)

	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/trending", s.GetTrendingPosts)
	posts.Get("/search", middleware.RateLimit(s.redis, middleware.SearchLimit), s.SearchPosts)
	posts.Get("/saved", requireAuth, s.GetSavedPosts)
	posts.Get("/user/:userId", s.GetUserPosts)
	posts.Get("/:id", s.GetPost)
	posts.Post("/", requireAuth, middleware.RateLimit(s.redis, middleware.CreatePostLimit), s.CreatePost)
	posts.Put("/:id", requireAuth, s.UpdatePost)
	posts.Delete("/:id", requireAuth, s.DeletePost)
	posts.Post("/:id/vote", requireAuth, middleware.RateLimit(s.redis, middleware.VoteLimit), s.VotePost)
	posts.Post("/:id/save", requireAuth, s.SavePost)
	posts.Post("/:id/report", requireAuth, middleware.RateLimit(s.redis, middleware.ReportLimit), s.ReportPost)
	posts.Post("/:id/moderate", requireAuth, s.ModeratePost)

	communities := api.Group("/communities")
	communities.Get("/", s.GetCommunities)
	communities.Get("/popular", s.GetPopularCommunities)
	communities.Get("/categories/:category", s.GetCommunitiesByCategory)
	communities.Get("/user/:userId", s.GetUserCommunities)
	communities.Get("/:name", s.GetCommunity)
	communities.Get("/:name/posts", s.GetCommunityPosts)
	communities.Get("/:name/members", s.GetCommunityMembers)
	communities.Post("/", requireAuth, middleware.RateLimit(s.redis, middleware.CreateCommunityLimit), s.CreateCommunity)
	communities.Put("/:name", requireAuth, s.UpdateCommunity)
	communities.Delete("/:name", requireAuth, s.DeleteCommunity)
	communities.Post("/:name/join", requireAuth, s.JoinCommunity)
	communities.Post("/:name/leave", requireAuth, s.LeaveCommunity)
	communities.Post("/:name/members", requireAuth, s.InviteMember)
	communities.Put("/:name/members/:userId", requireAuth, s.UpdateMemberRole)
	communities.Delete("/:name/members/:userId", requireAuth, s.RemoveMember)

	// Realtime feed
	api.Get("/ws/feed", s.FeedWebSocketUpgrade, s.WebSocketFeedHandler())
}

// App builds the Fiber app with middleware, routes and the error handler.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "pettit API",
		BodyLimit: (s.config.MediaMaxUploadSizeMB*storage.MaxUploadsPerPost + 1) << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
				return models.RespondWithError(c, fe.Code, err)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.notifier != nil && s.feedHub != nil {
		go func() {
			if err := s.feedHub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start feed hub wiring", slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the wiring goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.feedHub != nil {
		if err := s.feedHub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down feed hub", slog.String("error", err.Error()))
		}
	}

	if s.closePublisher != nil {
		if err := s.closePublisher(); err != nil {
			middleware.Logger.Error("error closing event publisher", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}

// HealthCheck reports the API name and version.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "pettit",
		"version": "1.0.0",
	})
}

// GetFeatureFlags lists the configured flags and their state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"flags":   s.featureFlags.Names(),
		"enabled": s.featureFlags.Snapshot(viewerID(c)),
	})
}

// LivenessCheck handles GET /health/live
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles GET /health/ready. The database is required; Redis
// is reported but only makes the instance unready when it is configured and
// failing.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}
