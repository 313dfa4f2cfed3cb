package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"resqlink/models"
	"resqlink/services"
	"resqlink/utils"
)

type UserController struct {
	userService *services.UserService
}

func NewUserController(userService *services.UserService) *UserController {
	return &UserController{
		userService: userService,
	}
}

// GetMe returns the caller's profile
func (uc *UserController) GetMe(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	user, err := uc.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Profile retrieved", user)
}

// UpdateLocation records a fresh location report for the caller
func (uc *UserController) UpdateLocation(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	if err := uc.userService.UpdateLocation(c.Request.Context(), userID, req); err != nil {
		logrus.Errorf("Update location failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Location updated", nil)
}

// UpdateAvailability toggles whether the caller can be alerted
func (uc *UserController) UpdateAvailability(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	if err := uc.userService.UpdateAvailability(c.Request.Context(), userID, req); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Availability updated", nil)
}

// RegisterPushToken stores a device token for the caller
func (uc *UserController) RegisterPushToken(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.RegisterPushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	if err := uc.userService.RegisterPushToken(c.Request.Context(), userID, req); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Push token registered", nil)
}

// RemovePushToken deletes a device token for the caller
func (uc *UserController) RemovePushToken(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.RemovePushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	if err := uc.userService.RemovePushToken(c.Request.Context(), userID, req); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Push token removed", nil)
}

// UpdatePreferences merges notification preference toggles
func (uc *UserController) UpdatePreferences(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	prefs, err := uc.userService.UpdatePreferences(c.Request.Context(), userID, req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Preferences updated", prefs)
}
