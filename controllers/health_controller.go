package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"

	"resqlink/utils"
	"resqlink/websocket"
)

type HealthController struct {
	db        *mongo.Database
	redis     *redis.Client
	hub       *websocket.Hub
	startedAt time.Time
}

func NewHealthController(db *mongo.Database, redisClient *redis.Client, hub *websocket.Hub) *HealthController {
	return &HealthController{
		db:        db,
		redis:     redisClient,
		hub:       hub,
		startedAt: time.Now(),
	}
}

// Health reports the status of the backing services
func (hc *HealthController) Health(c *gin.Context) {
	statuses := make(map[string]string)

	if err := hc.db.Client().Ping(c.Request.Context(), nil); err != nil {
		statuses["mongodb"] = "unhealthy"
	} else {
		statuses["mongodb"] = "healthy"
	}

	if hc.redis != nil {
		if err := hc.redis.Ping(c.Request.Context()).Err(); err != nil {
			statuses["redis"] = "unhealthy"
		} else {
			statuses["redis"] = "healthy"
		}
	}

	statuses["websocket"] = "healthy"

	uptime := time.Since(hc.startedAt).Round(time.Second).String()
	c.JSON(200, utils.HealthCheckResponse(statuses, "1.0.0", uptime))
}
