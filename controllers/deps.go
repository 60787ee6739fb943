package controllers

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"urbanfix-be/config"
	"urbanfix-be/detection"
	"urbanfix-be/lifecycle"
	"urbanfix-be/models"
	"urbanfix-be/repositories"
	"urbanfix-be/services"
)

// Core wiring shared by the handlers. Built lazily on first use so the
// environment is loaded and connections are established before anything
// touches Mongo or Redis.
var (
	depsOnce       sync.Once
	issueRepo      *repositories.IssueRepository
	bidRepo        *repositories.BidRepository
	workUpdateRepo *repositories.WorkUpdateRepository
	capacity       *services.RedisCapacityTracker
	machine        *lifecycle.Machine
	bidWorkflow    *lifecycle.BidWorkflow
	pipeline       *detection.Pipeline
)

func initDeps() {
	depsOnce.Do(func() {
		issueRepo = repositories.NewIssueRepository()
		bidRepo = repositories.NewBidRepository()
		workUpdateRepo = repositories.NewWorkUpdateRepository()
		capacity = services.NewRedisCapacityTracker(config.RedisClient)
		notifier := services.NewRedisNotifier(config.RedisClient)
		machine = lifecycle.NewMachine(issueRepo, workUpdateRepo, capacity, notifier)
		bidWorkflow = lifecycle.NewBidWorkflow(bidRepo, issueRepo, capacity, notifier)
		pipeline = detection.NewPipeline(config.DetectionConfig(), issueRepo, services.NewHTTPBlobStore())
	})
}

// currentActor builds the lifecycle actor from the auth middleware's
// context values. Tokens without a role claim act as citizens.
func currentActor(c *gin.Context) (lifecycle.Actor, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return lifecycle.Actor{}, false
	}

	objID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return lifecycle.Actor{}, false
	}

	role := models.RoleCitizen
	if roleVal, exists := c.Get("role"); exists {
		if parsed, ok := models.ParseRole(roleVal.(string)); ok {
			role = parsed
		}
	}
	return lifecycle.Actor{ID: objID, Role: role}, true
}

// lifecycleErrorStatus maps the lifecycle error taxonomy to HTTP statuses.
func lifecycleErrorStatus(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrPreconditionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, mongo.ErrNoDocuments):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
