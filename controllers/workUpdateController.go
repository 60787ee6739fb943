package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"urbanfix-be/lifecycle"
	"urbanfix-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// CreateWorkUpdate records field progress against an assigned issue. A
// COMPLETED update also moves the issue to PENDING_INSPECTION through the
// state machine.
func CreateWorkUpdate(c *gin.Context) {
	initDeps()

	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if actor.Role != models.RoleWorker && actor.Role != models.RoleContractor {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only assigned workers may submit work updates"})
		return
	}

	var input struct {
		IssueID     string            `json:"issueId" binding:"required"`
		Type        string            `json:"type" binding:"required"`
		Description string            `json:"description" binding:"required,max=2000"`
		Progress    int               `json:"progress" binding:"min=0,max=100"`
		HoursWorked float64           `json:"hoursWorked" binding:"min=0"`
		Materials   []models.Material `json:"materials,omitempty"`
		Photos      []string          `json:"photos,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updateType, ok := models.ParseWorkUpdateType(input.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update type"})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(input.IssueID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := issueRepo.Get(ctx, issueID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}
	if issue.AssignedTo == nil || *issue.AssignedTo != actor.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Issue is not assigned to this user"})
		return
	}
	if issue.Status != models.InProgress {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Work updates require the issue to be IN_PROGRESS"})
		return
	}

	update := models.WorkUpdate{
		Issue:        issueID,
		Worker:       actor.ID,
		Type:         updateType,
		Description:  input.Description,
		Progress:     input.Progress,
		HoursWorked:  input.HoursWorked,
		Materials:    input.Materials,
		Photos:       input.Photos,
		Verification: models.VerificationPending,
		CreatedAt:    time.Now(),
	}

	if err := workUpdateRepo.Create(ctx, &update); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create work update"})
		return
	}

	response := gin.H{"workUpdate": update}

	// A terminal update hands the issue over for inspection.
	if updateType == models.UpdateCompleted {
		transitioned, err := machine.Apply(ctx, lifecycle.Request{
			IssueID:        issueID,
			ExpectedStatus: models.InProgress,
			NewStatus:      models.PendingInspection,
		}, actor)
		if err != nil {
			response["transitionError"] = err.Error()
		} else {
			response["issue"] = transitioned
		}
	}

	c.JSON(http.StatusCreated, response)
}

// GetWorkUpdatesForIssue lists the work updates on an issue
func GetWorkUpdatesForIssue(c *gin.Context) {
	initDeps()

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	updates, err := workUpdateRepo.ListByIssue(ctx, issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve work updates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"workUpdates": updates})
}

// VerifyWorkUpdate records the inspector decision on a completed work
// update and advances the parent issue accordingly: APPROVED resolves it,
// REJECTED sends it back to work. The verification write is conditional
// on PENDING, so two racing inspectors resolve to exactly one decision.
func VerifyWorkUpdate(c *gin.Context) {
	initDeps()

	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if actor.Role != models.RoleInspector {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only inspectors may verify work updates"})
		return
	}

	updateID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid work update ID"})
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
		Notes  string `json:"notes,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var decision models.VerificationStatus
	var nextStatus models.IssueStatus
	switch strings.ToUpper(strings.TrimSpace(input.Status)) {
	case "APPROVED":
		decision = models.VerificationApproved
		nextStatus = models.Resolved
	case "REJECTED":
		decision = models.VerificationRejected
		nextStatus = models.InProgress
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be APPROVED or REJECTED"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	update, err := workUpdateRepo.Get(ctx, updateID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Work update not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve work update"})
		}
		return
	}
	if update.Type != models.UpdateCompleted {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Only COMPLETED work updates are verified"})
		return
	}

	verified, err := workUpdateRepo.Verify(ctx, updateID, actor.ID, decision, input.Notes)
	if err != nil {
		c.JSON(lifecycleErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	issue, err := machine.Apply(ctx, lifecycle.Request{
		IssueID:        verified.Issue,
		ExpectedStatus: models.PendingInspection,
		NewStatus:      nextStatus,
		Notes:          input.Notes,
	}, actor)
	if err != nil {
		c.JSON(lifecycleErrorStatus(err), gin.H{
			"error":      err.Error(),
			"workUpdate": verified,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"workUpdate": verified, "issue": issue})
}
