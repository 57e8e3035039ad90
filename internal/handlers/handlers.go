package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ataryouth/internal/config"
	"ataryouth/internal/middleware"
	"ataryouth/internal/models"
	"ataryouth/internal/service"
)

// Check probes one dependency. A nil Check means the dependency is disabled.
type Check func(ctx context.Context) error

type HealthChecks struct {
	Database Check
	Cache    Check
	Storage  Check
}

type Services struct {
	Auth     *service.AuthService
	Profiles *service.ProfileService
	Admin    *service.AdminService
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	auth     *service.AuthService
	profiles *service.ProfileService
	admin    *service.AdminService
	health   HealthChecks
	now      func() time.Time
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, services Services, health HealthChecks) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		auth:     services.Auth,
		profiles: services.Profiles,
		admin:    services.Admin,
		health:   health,
		now:      time.Now,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/health", h.Health)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.RegisterAccount)
		auth.POST("/login", h.Login)

		protected := auth.Group("")
		protected.Use(middleware.Auth(h.auth))
		protected.GET("/me", h.Me)
		protected.PUT("/profile", h.UpdateProfile)
		protected.PUT("/password", h.UpdatePassword)
	}

	admin := router.Group("/admin")
	admin.Use(
		middleware.Auth(middleware.AuthenticatorFunc(h.auth.AuthenticateAccount)),
		middleware.RequireRoles(models.UserRoleAdmin),
	)
	admin.GET("/dashboard/stats", h.DashboardStats)
	admin.GET("/users", h.ListUsers)
	admin.PUT("/users/:id/status", h.SetUserStatus)
}

func (h HandlerSet) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
}
