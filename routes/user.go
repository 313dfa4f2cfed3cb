package routes

import "github.com/gin-gonic/gin"

func setupUserRoutes(rg *gin.RouterGroup, deps Dependencies) {
	users := rg.Group("/users/me")
	{
		users.GET("", deps.User.GetMe)
		users.PUT("/location", deps.User.UpdateLocation)
		users.PUT("/availability", deps.User.UpdateAvailability)
		users.POST("/push-tokens", deps.User.RegisterPushToken)
		users.DELETE("/push-tokens", deps.User.RemovePushToken)
		users.PUT("/preferences", deps.User.UpdatePreferences)
	}
}
