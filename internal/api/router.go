package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/carepulse/backend/internal/app"
	"github.com/carepulse/backend/internal/auth"
	"github.com/carepulse/backend/internal/handlers"
	"github.com/carepulse/backend/internal/middleware"
	"github.com/carepulse/backend/internal/notify"
	"github.com/carepulse/backend/internal/realtime"
	"github.com/carepulse/backend/internal/services"
)

// Deps bundles the collaborators the router exposes over HTTP.
type Deps struct {
	DB      *gorm.DB
	JWT     *auth.JWTService
	System  *notify.System
	Hub     *realtime.Hub
	History *services.HistoryService
	Audit   *services.AuditService
}

// NewRouter builds the Gin engine, wires middleware and registers the
// notification routes.
func NewRouter(cfg *app.Config, deps Deps) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.System == nil {
		return nil, fmt.Errorf("notification system must be provided")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(deps.DB, deps.System))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requireAuth := middleware.RequireAuth(deps.JWT)

	api := r.Group("/api")
	api.Use(requireAuth)

	notificationHandler := handlers.NewNotificationHandler(deps.System, deps.Hub, deps.History)

	notifications := api.Group("/notifications")
	{
		notifications.POST("", notificationHandler.Create)
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.GET("/history", notificationHandler.History)
		notifications.GET("/ws", notificationHandler.Stream)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
		notifications.DELETE("", notificationHandler.ClearAll)
	}

	if deps.Audit != nil {
		auditHandler := handlers.NewAuditHandler(deps.Audit)
		api.GET("/audit", auditHandler.List)
	}

	return r, nil
}
