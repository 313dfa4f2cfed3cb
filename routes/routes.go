package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"resqlink/controllers"
	"resqlink/middleware"
	"resqlink/utils"
)

// Dependencies collects everything route registration needs. The
// composition root in main builds it; nothing here is constructed.
type Dependencies struct {
	Emergency    *controllers.EmergencyController
	Message      *controllers.MessageController
	Notification *controllers.NotificationController
	User         *controllers.UserController
	WebSocket    *controllers.WebSocketController
	Health       *controllers.HealthController

	JWT            *utils.JWTService
	Redis          *redis.Client
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))
	router.Use(middleware.RateLimitMiddleware(deps.Redis, deps.RateLimit, deps.RateWindow))

	router.GET("/health", deps.Health.Health)
	router.GET("/ws", deps.WebSocket.HandleWebSocket)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(deps.JWT))

	setupEmergencyRoutes(v1, deps)
	setupMessageRoutes(v1, deps)
	setupNotificationRoutes(v1, deps)
	setupUserRoutes(v1, deps)
}
