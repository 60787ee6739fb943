package routes

import (
	"urbanfix-be/controllers"
	"urbanfix-be/middlewares"

	"github.com/gin-gonic/gin"
)

func UserRoutes(r *gin.Engine) {
	user := r.Group("/api/user")
	{
		user.GET("/workers", middlewares.AuthMiddleware(), controllers.ListWorkers)
	}
}
