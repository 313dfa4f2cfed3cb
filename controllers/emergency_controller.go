package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"resqlink/models"
	"resqlink/services"
	"resqlink/utils"
)

type EmergencyController struct {
	emergencyService *services.EmergencyService
}

func NewEmergencyController(emergencyService *services.EmergencyService) *EmergencyController {
	return &EmergencyController{
		emergencyService: emergencyService,
	}
}

// CreateEmergency reports a new emergency
func (ec *EmergencyController) CreateEmergency(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.CreateEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	result, err := ec.emergencyService.CreateEmergency(c.Request.Context(), userID, req)
	if err != nil {
		logrus.Errorf("Create emergency failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Emergency reported", result)
}

// GetEmergency returns one emergency by ID
func (ec *EmergencyController) GetEmergency(c *gin.Context) {
	emergency, err := ec.emergencyService.GetEmergency(c.Request.Context(), c.Param("emergencyId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Emergency retrieved", emergency)
}

// GetActiveEmergencies lists emergencies still in progress
func (ec *EmergencyController) GetActiveEmergencies(c *gin.Context) {
	emergencies, err := ec.emergencyService.GetActiveEmergencies(c.Request.Context())
	if err != nil {
		logrus.Errorf("List active emergencies failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Active emergencies retrieved", emergencies)
}

// GetNearbyEmergencies lists in-progress emergencies around a point
func (ec *EmergencyController) GetNearbyEmergencies(c *gin.Context) {
	var req models.NearbyEmergenciesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid query parameters", nil)
		return
	}

	emergencies, err := ec.emergencyService.GetNearbyEmergencies(c.Request.Context(), req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Nearby emergencies retrieved", emergencies)
}

// Respond registers the caller as a responder or advances their status
func (ec *EmergencyController) Respond(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	emergency, err := ec.emergencyService.Respond(c.Request.Context(), c.Param("emergencyId"), userID)
	if err != nil {
		logrus.Errorf("Respond to emergency failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Response recorded", emergency)
}

// UpdateStatus moves the emergency to a new lifecycle status
func (ec *EmergencyController) UpdateStatus(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateEmergencyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	emergency, err := ec.emergencyService.UpdateStatus(c.Request.Context(), c.Param("emergencyId"), userID, req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Emergency status updated", emergency)
}

// SubmitFeedback stores a responder's rating after resolution
func (ec *EmergencyController) SubmitFeedback(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.ResponderFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	if err := ec.emergencyService.SubmitFeedback(c.Request.Context(), c.Param("emergencyId"), userID, req); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, "Feedback submitted", nil)
}
