package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/service"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/logger"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/metrics"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/middleware"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/websocket"
)

// Deps carries everything the router mounts.
type Deps struct {
	Emergencies   *service.EmergencyService
	Securities    *service.SecurityService
	Notifications *service.NotificationService
	Hub           *websocket.Hub
	SOSRate       string
}

// NewRouter assembles the gin engine: API routes, websocket endpoints and
// the metrics handler.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	r.GET("/metrics", metrics.Handler())
	if deps.Hub != nil {
		websocket.NewHandler(deps.Hub).RegisterRoutes(r)
	}

	sosRate := deps.SOSRate
	if sosRate == "" {
		sosRate = "10-M"
	}
	sosLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       sosRate,
		AddHeaders: true,
	}, nil)

	em := NewEmergencyHandler(deps.Emergencies)
	sec := NewSecurityHandler(deps.Securities)
	notif := NewNotificationHandler(deps.Notifications)

	api := r.Group("/api")
	{
		api.POST("/emergencies", sosLimiter.Middleware(), em.Create)
		api.GET("/emergencies", em.GetAll)
		api.GET("/emergencies/active", em.GetActive)
		api.GET("/emergencies/stats", em.GetStats)
		api.GET("/emergencies/type/:type", em.GetByType)
		api.GET("/emergencies/:id", em.GetByID)
		api.PATCH("/emergencies/:id/status", em.UpdateStatus)
		api.PATCH("/emergencies/:id/volunteer", em.ToggleNeedVolunteer)
		api.POST("/emergencies/:id/volunteers", em.RegisterVolunteer)
		api.PATCH("/volunteers/:id/status", em.UpdateVolunteerStatus)
		api.POST("/emergencies/:id/resolve", em.Resolve)
		api.POST("/emergencies/:id/cancel", em.Cancel)
		api.POST("/emergencies/:id/accept", em.Accept)
		api.POST("/emergencies/:id/arrive", em.Arrive)
		api.POST("/emergencies/:id/complete", em.Complete)

		api.GET("/securities/active", sec.ActiveRoster)
		api.POST("/securities/:id/check-in", sec.CheckIn)
		api.POST("/securities/:id/check-out", sec.CheckOut)
		api.PATCH("/securities/:id/location", sec.UpdateLocation)
		api.PUT("/securities/:id/device-token", sec.SetDeviceToken)
		api.GET("/securities/:id/logs", sec.Logs)
		api.GET("/securities/:id/emergencies", em.GetSecurityEmergencies)
		api.GET("/securities/:id/stats", em.GetSecurityStats)

		api.GET("/notifications", notif.List)
		api.GET("/notifications/unread-count", notif.UnreadCount)
		api.GET("/notifications/stats", notif.Stats)
		api.POST("/notifications/read", notif.MarkManyAsRead)
		api.POST("/notifications/read-all", notif.MarkAllAsRead)
		api.POST("/notifications/:id/read", notif.MarkAsRead)
		api.POST("/notifications/:id/archive", notif.Archive)
		api.DELETE("/notifications/:id", notif.Delete)
		api.POST("/announcements", notif.Announce)
	}

	return r
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()))
	}
}
