// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"campushub/internal/cache"
	"campushub/internal/config"
	"campushub/internal/database"
	"campushub/internal/media"
	"campushub/internal/menuai"
	"campushub/internal/middleware"
	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/realtime"
	"campushub/internal/repository"
	"campushub/internal/service"
	"campushub/internal/session"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
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
	feed           realtime.Feed
	hub            *realtime.Hub
	sessions       *session.Manager
	guard          *service.Guard

	profileService      *service.ProfileService
	postService         *service.PostService
	commentService      *service.CommentService
	savedService        *service.SavedService
	storyService        *service.StoryService
	conversationService *service.ConversationService
	circleService       *service.CircleService
	pollService         *service.PollService
	confessionService   *service.ConfessionService
	marketplaceService  *service.MarketplaceService
	menuService         *service.MenuService
	settingService      *service.SettingService
	notificationService *service.NotificationService
	uploadService       *service.UploadService
}

// Option overrides a collaborator that NewServerWithDeps would otherwise build from config.
type Option func(*deps)

type deps struct {
	feed        realtime.Feed
	host        media.Host
	parser      menuai.Parser
	limiters    *ratelimit.Limiters
	sessionOpts []session.Option
}

// WithFeed sets the change feed.
func WithFeed(feed realtime.Feed) Option {
	return func(d *deps) { d.feed = feed }
}

// WithMediaHost sets the host uploads are stored on.
func WithMediaHost(host media.Host) Option {
	return func(d *deps) { d.host = host }
}

// WithMenuParser sets the menu image parser.
func WithMenuParser(p menuai.Parser) Option {
	return func(d *deps) { d.parser = p }
}

// WithLimiters sets the per-user action limiters.
func WithLimiters(l *ratelimit.Limiters) Option {
	return func(d *deps) { d.limiters = l }
}

// WithSessionOptions passes options through to the session manager.
func WithSessionOptions(opts ...session.Option) Option {
	return func(d *deps) { d.sessionOpts = append(d.sessionOpts, opts...) }
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	feed, err := newFeed(cfg, redisClient)
	if err != nil {
		return nil, fmt.Errorf("change feed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, WithFeed(feed))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	s, err := newServer(cfg, db, redisClient, opts...)
	if err != nil {
		return nil, err
	}
	s.promMiddleware = middleware.InitMetrics("campushub-api")
	return s, nil
}

func newServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	d := deps{}
	for _, opt := range opts {
		opt(&d)
	}
	if d.feed == nil {
		d.feed = realtime.NewMemoryFeed()
	}
	if d.limiters == nil {
		rules, err := ratelimit.LoadRules(cfg.RateLimitPresetsFile)
		if err != nil {
			return nil, fmt.Errorf("rate limit presets: %w", err)
		}
		d.limiters = ratelimit.New(rules)
	}
	if d.host == nil {
		d.host = media.NewCloudinaryHost(cfg.MediaUploadEndpoint, cfg.MediaCloudName,
			cfg.MediaUploadPreset, cfg.MediaUploadTimeout())
	}
	if d.parser == nil {
		d.parser = menuai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel,
			cfg.GeminiEndpoint, cfg.GeminiTimeout())
	}

	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	conversationRepo := repository.NewConversationRepository(db)

	authorizer := session.NewAuthorizer(cfg.AdminEmailList(), cfg.AdminUsernameList(), profileRepo)
	sessionOpts := append([]session.Option{session.WithFeed(d.feed)}, d.sessionOpts...)
	guard := service.NewGuard(d.limiters, authorizer.IsAdmin)

	pipeline := media.NewPipeline(d.host, media.Config{
		MaxBytes:      cfg.MediaMaxUploadSizeMB << 20,
		CompressAbove: cfg.MediaCompressAboveKB << 10,
	})
	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), d.feed)

	s := &Server{
		config:   cfg,
		db:       db,
		redis:    redisClient,
		feed:     d.feed,
		sessions: session.NewManager(cfg.JWTSecret, profileRepo, authorizer, redisClient, sessionOpts...),
		guard:    guard,

		profileService:      service.NewProfileService(profileRepo, guard),
		postService:         service.NewPostService(postRepo, notifier, d.feed, guard),
		commentService:      service.NewCommentService(commentRepo, postRepo, notifier, d.feed, guard),
		savedService:        service.NewSavedService(repository.NewSavedRepository(db)),
		storyService:        service.NewStoryService(repository.NewStoryRepository(db), guard),
		conversationService: service.NewConversationService(conversationRepo, profileRepo, postRepo, d.feed, guard),
		circleService:       service.NewCircleService(repository.NewCircleRepository(db), notifier, d.feed, guard),
		pollService:         service.NewPollService(repository.NewPollRepository(db), d.feed, guard),
		confessionService:   service.NewConfessionService(repository.NewConfessionRepository(db), guard),
		marketplaceService:  service.NewMarketplaceService(repository.NewMarketplaceRepository(db), guard),
		menuService:         service.NewMenuService(repository.NewMenuRepository(db), pipeline, d.parser, guard),
		settingService:      service.NewSettingService(repository.NewSettingRepository(db), guard),
		notificationService: notifier,
		uploadService:       service.NewUploadService(pipeline, guard),
	}
	s.hub = realtime.NewHub(d.feed, s.buildView, realtime.WithAuraToggler(s.toggleAura))
	return s, nil
}

// newFeed picks the change feed transport. Without Redis the redis driver degrades
// to an in-process feed, which only reaches clients of this instance.
func newFeed(cfg *config.Config, rdb *redis.Client) (realtime.Feed, error) {
	switch strings.ToLower(cfg.ChangeFeedDriver) {
	case "nats":
		nf, err := realtime.ConnectNats(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		return nf, nil
	case "memory":
		return realtime.NewMemoryFeed(), nil
	default:
		if rdb == nil {
			middleware.Logger.Warn("redis unavailable, using in-process change feed")
			return realtime.NewMemoryFeed(), nil
		}
		return realtime.NewRedisFeed(rdb), nil
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Propagates request id and trace id into the user context for slog.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected browser requests still carry CORS headers.
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

	// Global rate limiting (300 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        300,
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
				"code":  models.CodeRateLimited,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "CampusHub Metrics Dashboard",
	}))

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/session", s.AuthRequired(), s.GetSession)
	auth.Put("/password", s.AuthRequired(), middleware.RateLimit(s.redis, 5, 10*time.Minute, "password"), s.UpdatePassword)

	// WebSocket ticket issuance and live views. Registered ahead of the grouped
	// middleware so a ticket is consumed exactly once.
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())

	// Public reads; a valid bearer token personalizes them (liked_by_me, my_role, my vote).
	public := api.Group("", s.OptionalAuth())
	public.Get("/posts", s.GetPosts)
	public.Get("/posts/search", s.SearchPosts)
	public.Get("/posts/:id/comments", s.GetComments)
	public.Get("/posts/:id", s.GetPost)
	public.Get("/stories", s.GetStories)
	public.Get("/circles", s.GetCircles)
	public.Get("/circles/:idOrSlug", s.GetCircle)
	public.Get("/polls", s.GetPolls)
	public.Get("/polls/:id", s.GetPoll)
	public.Get("/confessions", s.GetConfessions)
	public.Get("/confessions/:id/comments", s.GetConfessionComments)
	public.Get("/marketplace", s.GetListings)
	public.Get("/marketplace/:id", s.GetListing)
	public.Get("/leaderboard", s.GetLeaderboard)
	public.Get("/menu", s.GetMenu)
	public.Get("/settings", s.GetSettings)
	public.Get("/settings/:key", s.GetSetting)
	public.Get("/profiles/username/:username", s.GetProfileByUsername)

	protected := api.Group("", s.AuthRequired())

	// Profiles. Specific routes before the generic /:id.
	profiles := protected.Group("/profiles")
	profiles.Get("/me", s.GetMyProfile)
	profiles.Put("/me", s.UpdateMyProfile)
	profiles.Get("/search", s.SearchProfiles)
	profiles.Get("/:id/posts", s.GetProfilePosts)
	profiles.Get("/:id", s.GetProfile)
	protected.Post("/onboarding", s.Onboard)

	// Posts and comments
	posts := protected.Group("/posts")
	posts.Post("/", s.CreatePost)
	posts.Post("/:id/aura", s.TogglePostAura)
	posts.Post("/:id/comments", s.CreateComment)
	posts.Delete("/:id/comments/:commentId", s.DeleteComment)
	posts.Post("/:id/save", s.SavePost)
	posts.Delete("/:id/save", s.UnsavePost)
	posts.Delete("/:id", s.DeletePost)

	// Saved posts
	saved := protected.Group("/saved")
	saved.Get("/", s.GetSavedPosts)
	saved.Get("/collections", s.GetCollections)
	saved.Post("/collections", s.CreateCollection)

	// Stories
	stories := protected.Group("/stories")
	stories.Post("/", s.CreateStory)
	stories.Delete("/:id", s.DeleteStory)

	// Direct conversations
	conversations := protected.Group("/conversations")
	conversations.Get("/", s.GetConversations)
	conversations.Post("/", s.StartConversation)
	conversations.Get("/:id/messages", s.GetMessages)
	conversations.Post("/:id/messages", s.SendMessage)
	conversations.Post("/:id/read", s.MarkConversationRead)

	// Circles. Join request review is keyed by request id.
	circles := protected.Group("/circles")
	circles.Post("/", s.CreateCircle)
	circles.Post("/requests/:requestId/approve", s.ApproveJoinRequest)
	circles.Post("/requests/:requestId/reject", s.RejectJoinRequest)
	circles.Post("/:id/join", s.JoinCircle)
	circles.Post("/:id/leave", s.LeaveCircle)
	circles.Get("/:id/requests", s.GetJoinRequests)
	circles.Get("/:id/members", s.GetCircleMembers)
	circles.Put("/:id/members/:userId/role", s.SetCircleMemberRole)
	circles.Get("/:id/posts", s.GetCirclePosts)
	circles.Post("/:id/posts", s.CreateCirclePost)
	circles.Get("/:id/messages", s.GetCircleMessages)
	circles.Post("/:id/messages", s.SendCircleMessage)
	circles.Delete("/:id", s.DeleteCircle)

	// Polls
	polls := protected.Group("/polls")
	polls.Post("/", s.CreatePoll)
	polls.Post("/:id/vote", s.VotePoll)
	polls.Delete("/:id", s.DeletePoll)

	// Confessions
	confessions := protected.Group("/confessions")
	confessions.Post("/", s.CreateConfession)
	confessions.Post("/:id/aura", s.ToggleConfessionAura)
	confessions.Post("/:id/comments", s.CreateConfessionComment)
	confessions.Delete("/:id", s.DeleteConfession)

	// Marketplace
	marketplace := protected.Group("/marketplace")
	marketplace.Post("/", s.CreateListing)
	marketplace.Post("/:id/sold", s.MarkListingSold)
	marketplace.Delete("/:id", s.DeleteListing)

	// Notifications
	notifications := protected.Group("/notifications")
	notifications.Get("/", s.GetNotifications)
	notifications.Post("/read", s.MarkNotificationsRead)

	// Uploads
	protected.Post("/uploads", s.Upload)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Put("/profiles/:id/role", s.SetProfileRole)
	admin.Put("/profiles/:id/verification", s.SetProfileVerification)
	admin.Put("/settings/:key", s.UpsertSetting)
	admin.Post("/menu/upload", s.UploadMenu)
	admin.Put("/menu", s.UpdateMenu)
	admin.Post("/stories/purge", s.PurgeStories)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it the service runs without cache and revocation.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
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

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the session is available.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := session.FromContext(c.UserContext())
		if !ok || !sess.IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// AuthRequired returns the authentication middleware. WebSocket paths accept a
// single-use ticket; everything else requires a bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws") && c.Path() != "/api/ws/ticket"

		if ticket := c.Query("ticket"); ticket != "" && isWSPath {
			userID, err := s.consumeWSTicket(c.UserContext(), ticket)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			s.bindUser(c, userID)
			return c.Next()
		}

		// Already resolved by OptionalAuth earlier in the chain.
		if _, ok := c.Locals("claims").(*session.Claims); ok {
			return c.Next()
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.sessions.Authenticate(c.UserContext(), tokenString)
		if err != nil {
			return models.RespondWithError(c, models.StatusFor(err), err)
		}
		sess := s.sessions.Resolve(c.UserContext(), claims)

		c.Locals("claims", claims)
		c.SetUserContext(session.WithSession(c.UserContext(), sess))
		s.bindUser(c, sess.UserID)
		return c.Next()
	}
}

// OptionalAuth resolves a bearer token when one is sent and valid, and otherwise
// lets the request through anonymously.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return c.Next()
		}
		claims, err := s.sessions.Authenticate(c.UserContext(), tokenString)
		if err != nil {
			return c.Next()
		}
		sess := s.sessions.Resolve(c.UserContext(), claims)
		c.Locals("claims", claims)
		c.SetUserContext(session.WithSession(c.UserContext(), sess))
		s.bindUser(c, sess.UserID)
		return c.Next()
	}
}

func (s *Server) bindUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
}

func (s *Server) consumeWSTicket(ctx context.Context, ticket string) (uint, error) {
	if s.redis == nil {
		return 0, errors.New("websocket tickets need redis")
	}
	raw, err := s.redis.GetDel(ctx, cache.WSTicketKey(ticket)).Result()
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("bad ticket payload %q", raw)
	}
	return uint(id), nil
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// errorHandler renders errors that escape handlers. Fiber errors keep their status.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// App builds the Fiber app with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "CampusHub API",
		BodyLimit:    maxUploadBody(s.config),
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.App()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down live views", slog.String("error", err.Error()))
	}
	if s.feed != nil {
		if err := s.feed.Close(); err != nil {
			middleware.Logger.Error("error closing change feed", slog.String("error", err.Error()))
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

// maxUploadBody leaves room for a full batch of uploads plus multipart overhead.
func maxUploadBody(cfg *config.Config) int {
	perFile := cfg.MediaMaxUploadSizeMB << 20
	if perFile <= 0 {
		perFile = media.DefaultMaxUploadBytes
	}
	return perFile + 4<<20
}
