package routes

import "github.com/gin-gonic/gin"

func setupMessageRoutes(rg *gin.RouterGroup, deps Dependencies) {
	messages := rg.Group("/emergencies/:emergencyId/messages")
	{
		messages.POST("", deps.Message.PostMessage)
		messages.GET("", deps.Message.GetMessages)
		messages.POST("/read", deps.Message.MarkMessagesRead)
	}
}
