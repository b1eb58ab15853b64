package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notification-relay/internal/gateway"
	"notification-relay/internal/handlers"
	"notification-relay/internal/middleware"
)

// Deps collects everything the router mounts. The composition root builds
// each component explicitly; nothing here is a singleton.
type Deps struct {
	Gateway        *gateway.Gateway
	Notify         *handlers.NotifyHandler
	Health         *handlers.HealthHandler
	AllowedOrigins []string
	Log            *zap.Logger
}

// Setup assembles the gin router: health, the websocket endpoint, and the
// trusted ingress group.
func Setup(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.CORS(d.AllowedOrigins))

	r.GET("/health", d.Health.Status)
	r.GET("/ws", d.Gateway.HandleWS)

	notify := r.Group("/notify")
	{
		notify.POST("/message", d.Notify.Message)
		notify.POST("/notification", d.Notify.Notification)
		notify.POST("/grade", d.Notify.Grade)
		notify.POST("/absence", d.Notify.Absence)
		notify.POST("/event", d.Notify.CalendarEvent)
	}

	return r
}
