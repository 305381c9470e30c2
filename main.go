package main

import (
	"context"
	"database/sql"
	"fmt"

	"barangay-portal/cache"
	"barangay-portal/config"
	"barangay-portal/database"
	"barangay-portal/handlers"
	"barangay-portal/middleware"
	"barangay-portal/services"
	"barangay-portal/utils/email"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Database connection
	db, err := setupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize database schema
	log.Info("Initializing database schema and running migrations...")
	if err := database.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	// Snapshot store: Redis when configured, in-memory otherwise.
	snapshots, err := setupSnapshotStore(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to snapshot store: %v", err)
	}
	defer snapshots.Close()

	// Services
	users := database.NewUserService(db, cfg.JWTSecret)
	reports := database.NewReportService(db, snapshots)
	engagement := database.NewEngagementService(db)

	// Live feed hub, fed by snapshot publishes
	hub := services.NewHub()
	go hub.Start()
	if err := snapshots.Subscribe(context.Background(), hub.BroadcastSnapshot); err != nil {
		log.Fatalf("Failed to subscribe to snapshot updates: %v", err)
	}

	// Optional report event publisher
	var events *services.EventPublisher
	if cfg.RabbitMQURL != "" {
		events, err = services.NewEventPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.RabbitMQRouting)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer events.Close()
	}

	// Optional password-reset mailer
	var emailSender *email.Sender
	if cfg.SendGridAPIKey != "" {
		emailSender = email.NewSender(cfg.SendGridAPIKey, cfg.EmailFromName, cfg.EmailFromAddr)
	}

	h := handlers.NewHandlers(users, reports, engagement, snapshots, hub, events,
		emailSender, cfg.GoogleOAuthConfig(), cfg.FrontendURL)

	router := setupRouter(h, users, cfg)

	log.Infof("Barangay portal starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func setupDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/barangay?parseTime=true&multiStatements=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func setupSnapshotStore(cfg *config.Config) (cache.Store, error) {
	if cfg.RedisURL != "" {
		return cache.NewRedisStore(cfg.RedisURL)
	}
	log.Info("REDIS_URL not set, using in-memory snapshot store")
	return cache.NewMemoryStore(), nil
}

func setupRouter(h *handlers.Handlers, users *database.UserService, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.SetTrustedProxies(cfg.TrustedProxies)

	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.MetricsMiddleware())

	// Root level endpoints
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/api/login", h.VerifyLogin)
	router.GET("/ws/reports", h.ReportFeed)

	// Public routes
	public := router.Group("/api/v3")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/guest", h.GuestSession)
			auth.POST("/refresh", h.RefreshToken)
			auth.POST("/forgot-password", h.ForgotPassword)
			auth.POST("/reset-password", h.ResetPassword)
			auth.GET("/google", h.GoogleAuth)
			auth.GET("/google/callback", h.GoogleCallback)
		}

		public.GET("/reports", h.ListReports)
		public.GET("/reports/:id", h.GetReport)
		public.GET("/reports/:id/comments", h.ListComments)
		public.GET("/reports/:id/reactions", h.GetReactions)
	}

	// Protected routes
	protected := router.Group("/api/v3")
	protected.Use(middleware.AuthMiddleware(users))
	{
		protected.POST("/auth/logout", h.Logout)
		protected.GET("/users/me", h.GetMe)

		protected.POST("/reports", h.SubmitReport)
		protected.GET("/reports/mine", h.MyReports)
		protected.PUT("/reports/:id", h.UpdateReport)
		protected.DELETE("/reports/:id", h.DeleteReport)

		protected.POST("/reports/:id/reactions", h.React)
		protected.POST("/reports/:id/comments", h.AddComment)

		protected.GET("/notifications", h.Notifications)
		protected.POST("/notifications/read", h.MarkNotificationsRead)
	}

	// Admin routes
	admin := router.Group("/api/v3/admin")
	admin.Use(middleware.AuthMiddleware(users), middleware.AdminMiddleware())
	{
		admin.GET("/reports", h.AdminListReports)
		admin.PUT("/reports/:id/status", h.SetReportStatus)
		admin.POST("/reports/:id/archive", h.ArchiveReport)
		admin.POST("/reports/:id/restore", h.RestoreReport)
		admin.GET("/reports/archive", h.ListArchivedReports)

		admin.GET("/users", h.ListUsers)
		admin.GET("/users/archive", h.ListArchivedUsers)
		admin.POST("/users/:id/deactivate", h.DeactivateUser)
		admin.POST("/users/:id/restore", h.RestoreUser)
	}

	return router
}
