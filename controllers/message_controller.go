package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"resqlink/models"
	"resqlink/services"
	"resqlink/utils"
)

type MessageController struct {
	chatService *services.ChatService
}

func NewMessageController(chatService *services.ChatService) *MessageController {
	return &MessageController{
		chatService: chatService,
	}
}

// PostMessage appends a message to an emergency's chat
func (mc *MessageController) PostMessage(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	message, err := mc.chatService.PostMessage(c.Request.Context(), c.Param("emergencyId"), userID, req)
	if err != nil {
		logrus.Errorf("Post message failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, "Message sent", message)
}

// GetMessages returns a page of chat messages in chronological order
func (mc *MessageController) GetMessages(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid query parameters", nil)
		return
	}

	messages, err := mc.chatService.ListMessages(c.Request.Context(), c.Param("emergencyId"), userID, req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Messages retrieved", messages)
}

// MarkMessagesRead records the caller as a reader of the given messages
func (mc *MessageController) MarkMessagesRead(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.MarkMessagesReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	if err := mc.chatService.MarkRead(c.Request.Context(), c.Param("emergencyId"), userID, req); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Messages marked read", nil)
}
