package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"resqlink/utils"
	"resqlink/websocket"
)

type WebSocketController struct {
	hub        *websocket.Hub
	jwtService *utils.JWTService
	upgrader   gorillaws.Upgrader
}

func NewWebSocketController(hub *websocket.Hub, jwtService *utils.JWTService) *WebSocketController {
	return &WebSocketController{
		hub:        hub,
		jwtService: jwtService,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the connection and starts the read and write
// pumps. The token rides the query string because browser websocket
// clients cannot set headers.
func (wsc *WebSocketController) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		utils.UnauthorizedResponse(c, "Authentication token is required")
		return
	}

	claims, err := wsc.jwtService.ValidateToken(token)
	if err != nil {
		logrus.Errorf("WebSocket authentication failed: %v", err)
		utils.UnauthorizedResponse(c, "Invalid authentication token")
		return
	}

	conn, err := wsc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(wsc.hub, conn, claims.UserID)
	go client.WritePump()
	go client.ReadPump()
}
