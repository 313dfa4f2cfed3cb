package controllers

import (
	"github.com/gin-gonic/gin"

	"resqlink/models"
	"resqlink/services"
	"resqlink/utils"
)

type NotificationController struct {
	notificationService *services.NotificationService
}

func NewNotificationController(notificationService *services.NotificationService) *NotificationController {
	return &NotificationController{
		notificationService: notificationService,
	}
}

// GetNotifications returns a page of the caller's notifications
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid query parameters", nil)
		return
	}

	notifications, meta, err := nc.notificationService.List(c.Request.Context(), userID, req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponseWithMeta(c, "Notifications retrieved", notifications, meta)
}

// MarkNotificationsRead flips the given notifications to read
func (nc *NotificationController) MarkNotificationsRead(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.MarkNotificationsReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	modified, err := nc.notificationService.MarkRead(c.Request.Context(), userID, req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Notifications marked read", gin.H{"modified": modified})
}

// GetUnreadCount returns the caller's unread notification total
func (nc *NotificationController) GetUnreadCount(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	count, err := nc.notificationService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Unread count retrieved", gin.H{"unread": count})
}
