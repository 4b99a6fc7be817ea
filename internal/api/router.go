package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/vitotech/website-api/internal/app"
	iauth "github.com/vitotech/website-api/internal/auth"
	"github.com/vitotech/website-api/internal/handlers"
	"github.com/vitotech/website-api/internal/middleware"
	"github.com/vitotech/website-api/internal/notify"
	"github.com/vitotech/website-api/internal/permissions"
	"github.com/vitotech/website-api/internal/storage"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, files *storage.Store, notifier *notify.Notifier, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if files == nil {
		return nil, fmt.Errorf("file store must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	checker, err := permissions.NewChecker(db)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Identify(jwt))

	r.NoRoute(middleware.NotFoundHandler)

	// Monitoring surface
	r.GET("/health", handlers.Health(db))
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}
	notificationHandler, err := handlers.NewNotificationHandler(db, files, notifier)
	if err != nil {
		return nil, err
	}
	userHandler, err := handlers.NewUserHandler(db)
	if err != nil {
		return nil, err
	}
	mediaHandler := handlers.NewMediaHandler(files)

	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.RequireAuth(), authHandler.Me)
	}

	notifications := r.Group("/api/notifications")
	{
		create := middleware.RequireAction(checker, permissions.ActionNotificationCreate)
		view := middleware.RequireAction(checker, permissions.ActionNotificationView)
		manage := middleware.RequireAction(checker, permissions.ActionNotificationManage)

		notifications.POST("", create, notificationHandler.Create)
		notifications.GET("", view, notificationHandler.List)
		notifications.GET("/stats", view, notificationHandler.Stats)
		notifications.GET("/:id", view, notificationHandler.Get)
		notifications.PATCH("/:id", manage, notificationHandler.Update)
		notifications.PUT("/:id", manage, notificationHandler.Update)
		notifications.DELETE("/:id", manage, notificationHandler.Delete)
		notifications.POST("/:id/mark_read", manage, notificationHandler.MarkRead)
		notifications.POST("/:id/mark_unread", manage, notificationHandler.MarkUnread)
	}

	users := r.Group("/api/users")
	{
		self := middleware.RequireAction(checker, permissions.ActionUserSelf)
		users.POST("/change-password", self, userHandler.ChangePassword)
		users.POST("/change-username", self, userHandler.ChangeUsername)
		users.POST("/create-admin", middleware.RequireAction(checker, permissions.ActionUserCreateAdmin), userHandler.CreateAdmin)
	}

	// Stored attachments are staff-only
	r.GET("/media/attachments/:name", middleware.RequireAction(checker, permissions.ActionMediaView), mediaHandler.Attachment)

	return r, nil
}
