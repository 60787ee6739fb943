package routes

import (
	"urbanfix-be/controllers"
	"urbanfix-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine) {
	issue := r.Group("/api/issue")
	{
		issue.POST("/create", middlewares.AuthMiddleware(), middlewares.IssueRateLimiter(10), controllers.CreateIssue)
		issue.GET("", middlewares.AuthMiddleware(), controllers.GetAllIssues)
		issue.GET("/mine", middlewares.AuthMiddleware(), controllers.GetIssuesByUser)
		issue.GET("/recent", controllers.RecentIssues)
		issue.GET("/analytics", controllers.GetIssueAnalytics)
		issue.GET("/:id", middlewares.AuthMiddleware(), controllers.GetIssue)
		issue.PATCH("/:id/transition", middlewares.AuthMiddleware(), controllers.TransitionIssue)
		issue.GET("/:id/transitions", middlewares.AuthMiddleware(), controllers.AvailableTransitions)
		issue.POST("/:id/upvote", middlewares.AuthMiddleware(), controllers.HandleUpvoteIssue)
		issue.POST("/:id/comments", middlewares.AuthMiddleware(), controllers.AddComment)
		issue.PUT("/:id/priority", middlewares.AuthMiddleware(), controllers.UpdatePriority)
	}
}
