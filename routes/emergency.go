package routes

import "github.com/gin-gonic/gin"

func setupEmergencyRoutes(rg *gin.RouterGroup, deps Dependencies) {
	emergencies := rg.Group("/emergencies")
	{
		emergencies.POST("", deps.Emergency.CreateEmergency)
		emergencies.GET("/active", deps.Emergency.GetActiveEmergencies)
		emergencies.GET("/nearby", deps.Emergency.GetNearbyEmergencies)
		emergencies.GET("/:emergencyId", deps.Emergency.GetEmergency)
		emergencies.POST("/:emergencyId/respond", deps.Emergency.Respond)
		emergencies.PATCH("/:emergencyId/status", deps.Emergency.UpdateStatus)
		emergencies.POST("/:emergencyId/feedback", deps.Emergency.SubmitFeedback)
	}
}
