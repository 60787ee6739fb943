package routes

import (
	"urbanfix-be/controllers"
	"urbanfix-be/middlewares"

	"github.com/gin-gonic/gin"
)

// BidRoutes sets up the contractor bid routes
func BidRoutes(r *gin.Engine) {
	bid := r.Group("/api/bid")
	bid.Use(middlewares.AuthMiddleware())
	{
		bid.POST("", controllers.CreateBid)
		bid.GET("/issue/:id", controllers.GetBidsForIssue)
		bid.PUT("/:id/review", controllers.ReviewBid)
	}
}
