package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"urbanfix-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateBid submits a contractor bid against an issue open for bidding
func CreateBid(c *gin.Context) {
	initDeps()

	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var input struct {
		IssueID       string  `json:"issueId" binding:"required"`
		Amount        float64 `json:"amount" binding:"required"`
		EstimatedDays float64 `json:"estimatedDays" binding:"required"`
		Proposal      string  `json:"proposal" binding:"max=2000"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(input.IssueID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	bid := models.Bid{
		Issue:         issueID,
		Amount:        input.Amount,
		EstimatedDays: input.EstimatedDays,
		Proposal:      input.Proposal,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := bidWorkflow.Submit(ctx, &bid, actor); err != nil {
		c.JSON(lifecycleErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bid": bid})
}

// GetBidsForIssue lists the bids on an issue. Admins see everything;
// contractors see only their own bids.
func GetBidsForIssue(c *gin.Context) {
	initDeps()

	actor, ok := currentActor(c)
	if !ok {
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bids, err := bidRepo.ListByIssue(ctx, issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve bids"})
		return
	}

	if actor.Role != models.RoleAdmin {
		own := make([]models.Bid, 0, len(bids))
		for _, bid := range bids {
			if bid.Contractor == actor.ID {
				own = append(own, bid)
			}
		}
		bids = own
	}

	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// ReviewBid applies the admin decision on a bid. Accepting a bid awards
// the issue to that contractor and rejects every other pending bid in the
// same transaction.
func ReviewBid(c *gin.Context) {
	initDeps()

	actor, ok := currentActor(c)
	if !ok {
		return
	}

	bidID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bid ID"})
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

	var decision models.BidStatus
	switch strings.ToUpper(strings.TrimSpace(input.Status)) {
	case "ACCEPTED":
		decision = models.BidAccepted
	case "REJECTED":
		decision = models.BidRejected
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be ACCEPTED or REJECTED"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bid, err := bidWorkflow.Review(ctx, bidID, decision, input.Notes, actor)
	if err != nil {
		c.JSON(lifecycleErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bid": bid})
}
