package controllers

import (
	"context"
	"net/http"
	"time"

	"urbanfix-be/config"
	"urbanfix-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

// ListWorkers returns workers and contractors with their current load,
// for the admin assignment view.
func ListWorkers(c *gin.Context) {
	initDeps()

	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if actor.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only admins may list workers"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userCollection := config.GetCollection("users")
	cursor, err := userCollection.Find(ctx, bson.M{
		"role": bson.M{"$in": []models.UserRole{models.RoleWorker, models.RoleContractor}},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve workers"})
		return
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode workers"})
		return
	}

	type workerWithLoad struct {
		models.User
		CurrentLoad int64 `json:"currentLoad"`
	}

	workers := make([]workerWithLoad, 0, len(users))
	for _, user := range users {
		load, err := capacity.GetLoad(ctx, user.ID)
		if err != nil {
			load = 0
		}
		workers = append(workers, workerWithLoad{User: user, CurrentLoad: load})
	}

	c.JSON(http.StatusOK, gin.H{"workers": workers})
}
