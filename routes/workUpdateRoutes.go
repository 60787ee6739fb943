package routes

import (
	"urbanfix-be/controllers"
	"urbanfix-be/middlewares"

	"github.com/gin-gonic/gin"
)

// WorkUpdateRoutes sets up the field-progress routes
func WorkUpdateRoutes(r *gin.Engine) {
	update := r.Group("/api/workupdate")
	update.Use(middlewares.AuthMiddleware())
	{
		update.POST("", controllers.CreateWorkUpdate)
		update.GET("/issue/:id", controllers.GetWorkUpdatesForIssue)
		update.PUT("/:id/verify", controllers.VerifyWorkUpdate)
	}
}
