package routes

import "github.com/gin-gonic/gin"

func setupNotificationRoutes(rg *gin.RouterGroup, deps Dependencies) {
	notifications := rg.Group("/notifications")
	{
		notifications.GET("", deps.Notification.GetNotifications)
		notifications.GET("/unread-count", deps.Notification.GetUnreadCount)
		notifications.POST("/read", deps.Notification.MarkNotificationsRead)
	}
}
