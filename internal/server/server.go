// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"agora/internal/config"
	"agora/internal/identity"
	"agora/internal/media"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/realtime"
	"agora/internal/service"
	"agora/internal/storage"
	"agora/internal/suggest"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	identity       *identity.Service
	blobs          storage.Store
	redis          *redis.Client
	hub            *realtime.Hub
	notifier       *realtime.Notifier
	uploader       media.Uploader
	localMedia     *media.LocalUploader
	generator      suggest.Generator
	promMiddleware *fiberprometheus.FiberPrometheus

	mu       sync.Mutex
	sessions map[string]*service.Coordinator
}

// NewServer creates a new server instance with all dependencies.
func NewServer(cfg *config.Config) (*Server, error) {
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cancel()
			if cfg.StorageBackend == "redis" {
				return nil, fmt.Errorf("redis connection failed: %w", err)
			}
			// Optional for other backends: realtime push and rate limiting
			// degrade gracefully without it.
			redisClient = nil
		} else {
			cancel()
		}
	}

	var blobs storage.Store
	switch cfg.StorageBackend {
	case "memory":
		blobs = storage.NewMemoryStore()
	case "redis":
		blobs = storage.NewRedisStoreWithClient(redisClient)
	default:
		st, err := storage.NewSQLiteStore(cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("opening blob store: %w", err)
		}
		blobs = st
	}

	idp, err := identity.NewService(context.Background(), blobs, cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("identity service: %w", err)
	}

	var uploader media.Uploader
	var local *media.LocalUploader
	if cfg.UploadURL != "" {
		uploader = media.NewRemoteUploader(cfg.UploadURL, cfg.UploadPreset)
	} else {
		local, err = media.NewLocalUploader(cfg.MediaDir, "/api/media")
		if err != nil {
			return nil, fmt.Errorf("media dir: %w", err)
		}
		uploader = local
	}

	var generator suggest.Generator
	if cfg.OpenAIAPIKey != "" {
		generator = suggest.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}

	prom := fiberprometheus.New("agora-api")

	server := &Server{
		config:         cfg,
		identity:       idp,
		blobs:          blobs,
		redis:          redisClient,
		uploader:       uploader,
		localMedia:     local,
		generator:      generator,
		promMiddleware: prom,
		sessions:       make(map[string]*service.Coordinator),
	}

	if redisClient != nil {
		server.notifier = realtime.NewNotifier(redisClient)
		server.hub = realtime.NewHub()
	}

	return server, nil
}

// NewServerWithDeps creates a server with injected collaborators, for tests.
func NewServerWithDeps(cfg *config.Config, idp *identity.Service, blobs storage.Store,
	redisClient *redis.Client, uploader media.Uploader, generator suggest.Generator) *Server {
	s := &Server{
		config:    cfg,
		identity:  idp,
		blobs:     blobs,
		redis:     redisClient,
		uploader:  uploader,
		generator: generator,
		sessions:  make(map[string]*service.Coordinator),
	}
	if lu, ok := uploader.(*media.LocalUploader); ok {
		s.localMedia = lu
	}
	if redisClient != nil {
		s.notifier = realtime.NewNotifier(redisClient)
		s.hub = realtime.NewHub()
	}
	return s
}

// StartHubWiring subscribes the WebSocket hub to Redis pub/sub so that
// notifications recorded by any session reach connected recipients.
func (s *Server) StartHubWiring(ctx context.Context) error {
	if s.hub == nil || s.notifier == nil {
		return nil
	}
	return s.hub.StartWiring(ctx, s.notifier)
}

// Shutdown ends every active session, flushing pending persistence, and
// closes the WebSocket hub.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	coords := make([]*service.Coordinator, 0, len(s.sessions))
	for _, coord := range s.sessions {
		coords = append(coords, coord)
	}
	s.sessions = make(map[string]*service.Coordinator)
	s.mu.Unlock()

	for _, coord := range coords {
		coord.EndSession(ctx)
		coord.Close()
	}
	if s.hub != nil {
		_ = s.hub.Shutdown(ctx)
	}
	if closer, ok := s.blobs.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
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

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)

	// Media is served publicly; uploads require auth below.
	api.Get("/media/:name", s.ServeMedia)

	protected := api.Group("", s.AuthRequired())

	session := protected.Group("/session")
	session.Post("/", s.StartSession)
	session.Get("/", s.GetSession)
	session.Delete("/", s.EndSession)

	protected.Get("/feed", s.GetFeed)
	protected.Get("/search", middleware.RateLimit(
		s.redis, 30, time.Minute, "search"), s.SearchEverything)

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/comments", middleware.RateLimit(
		s.redis, 20, time.Minute, "create_comment"), s.CreateComment)
	posts.Post("/:id/like", s.LikePost)
	posts.Post("/:id/share", s.SharePost)

	users := protected.Group("/users")
	users.Get("/suggested", s.GetSuggestedUsers)
	users.Put("/me", s.UpdateMyProfile)
	users.Put("/me/avatar", s.UpdateMyAvatar)
	users.Post("/:id/follow", s.ToggleFollow)
	users.Get("/:id", s.GetProfile)

	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadCount)
	notifs.Post("/read-all", s.MarkAllNotificationsRead)
	notifs.Post("/:id/read", s.MarkNotificationRead)
	notifs.Post("/:id/open", s.OpenNotification)

	generate := protected.Group("/generate", middleware.RateLimit(
		s.redis, 5, time.Minute, "generate"))
	generate.Post("/sample-posts", s.GenerateSamplePosts)
	generate.Post("/post", s.GeneratePostDraft)
	protected.Post("/media", s.UploadMedia)
	protected.Delete("/account", s.DeleteAccount)

	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/", s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	probe := fmt.Sprintf("healthcheck_%d", time.Now().UnixNano())
	if _, err := s.blobs.Load(ctx, probe); err != nil && !errors.Is(err, storage.ErrNoValue) {
		storeStatus = "unhealthy"
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
	overall := "healthy"
	if storeStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"storage": storeStatus,
			"redis":   redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware. It accepts a Bearer
// token, falling back to a token query parameter for WebSocket upgrades
// where custom headers are unavailable.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""
		if authHeader := c.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Missing authentication token"))
		}

		account, err := s.identity.Verify(c.Context(), tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		c.Locals("userID", account.UserID)
		c.Locals("displayName", account.DisplayName)
		ctx := observability.WithUserID(c.UserContext(), account.UserID)
		c.SetUserContext(ctx)
		return c.Next()
	}
}
