package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"urbanfix-be/config"
	"urbanfix-be/detection"
	"urbanfix-be/lifecycle"
	"urbanfix-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const maxPhotosPerIssue = 5

// CreateIssue handles a draft submission. The detection pipeline runs
// first; a non-empty verdict is returned for user confirmation unless the
// caller forces creation with ?ignoreDuplicates=true.
func CreateIssue(c *gin.Context) {
	initDeps()

	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var input struct {
		Title              string   `json:"title" binding:"required,max=200"`
		Description        string   `json:"description" binding:"required,max=2000"`
		Category           string   `json:"category" binding:"required"`
		Address            string   `json:"address" binding:"required,max=200"`
		Latitude           float64  `json:"latitude" binding:"required"`
		Longitude          float64  `json:"longitude" binding:"required"`
		Photos             []string `json:"photos,omitempty"`
		Priority           *string  `json:"priority,omitempty"`
		ContractorEligible bool     `json:"contractorEligible,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, ok := models.ParseCategory(input.Category)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}
	if len(input.Photos) > maxPhotosPerIssue {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At most 5 photos are allowed"})
		return
	}

	priority := models.Medium
	if input.Priority != nil {
		parsed, ok := models.ParsePriority(*input.Priority)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return
		}
		priority = parsed
	}

	ignoreDuplicates := c.Query("ignoreDuplicates") == "true"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	draft := detection.Draft{
		Title:       input.Title,
		Description: input.Description,
		Category:    category,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Photos:      input.Photos,
	}

	// The pipeline also computes the photo hashes we persist, so it runs
	// even when the caller is overriding the duplicate check.
	photos := make([]models.Photo, 0, len(input.Photos))
	verdict := models.DuplicateVerdict{}
	result, err := pipeline.Check(ctx, draft)
	if err != nil {
		// Letting the report through with a warning beats stalling it.
		slog.Warn("issue: duplicate check skipped", "error", err)
		verdict.CheckSkipped = true
		for _, url := range input.Photos {
			photos = append(photos, models.Photo{URL: url})
		}
	} else {
		verdict = result.Verdict
		photos = result.Photos
	}

	if !verdict.Empty() && !ignoreDuplicates {
		c.JSON(http.StatusAccepted, gin.H{
			"status":  "duplicate_check",
			"verdict": verdict,
		})
		return
	}

	issue := models.Issue{
		ID:                 primitive.NewObjectID(),
		Title:              input.Title,
		Description:        input.Description,
		Category:           category,
		Address:            input.Address,
		Latitude:           input.Latitude,
		Longitude:          input.Longitude,
		Photos:             photos,
		Status:             models.Reported,
		Priority:           priority,
		ContractorEligible: input.ContractorEligible,
		ReportedBy:         actor.ID,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	if err := issueRepo.Create(ctx, &issue); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create issue"})
		return
	}

	response := gin.H{"status": "created", "issue": issue}
	if verdict.CheckSkipped {
		response["warning"] = "duplicate checking was skipped"
	}
	c.JSON(http.StatusCreated, response)
}

// TransitionIssue applies one status transition through the state
// machine. A stale expected status that turns out to already match the
// requested target is treated as idempotent success; any other conflict
// is surfaced for the caller to retry with fresh state.
func TransitionIssue(c *gin.Context) {
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

	var input struct {
		ExpectedStatus string  `json:"expectedStatus" binding:"required"`
		NewStatus      string  `json:"newStatus" binding:"required"`
		AssignTo       *string `json:"assignTo,omitempty"`
		Reason         string  `json:"reason,omitempty"`
		Notes          string  `json:"notes,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expected, ok := models.ParseStatus(input.ExpectedStatus)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expectedStatus"})
		return
	}
	newStatus, ok := models.ParseStatus(input.NewStatus)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid newStatus"})
		return
	}

	req := lifecycle.Request{
		IssueID:        issueID,
		ExpectedStatus: expected,
		NewStatus:      newStatus,
		Reason:         input.Reason,
		Notes:          input.Notes,
	}
	if input.AssignTo != nil {
		assignee, err := primitive.ObjectIDFromHex(*input.AssignTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assignTo"})
			return
		}
		req.AssignTo = &assignee
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := machine.Apply(ctx, req, actor)
	if errors.Is(err, lifecycle.ErrConcurrencyConflict) {
		current, getErr := issueRepo.Get(ctx, issueID)
		if getErr == nil && current.Status == newStatus {
			c.JSON(http.StatusOK, gin.H{"issue": current, "note": "transition already applied"})
			return
		}
	}
	if err != nil {
		c.JSON(lifecycleErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"issue": issue})
}

// AvailableTransitions reports which statuses the caller could move the
// issue to. The transition table is the single source of truth; the UI
// only reflects this list.
func AvailableTransitions(c *gin.Context) {
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

	issue, err := issueRepo.Get(ctx, issueID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	transitions := machine.ListAvailable(ctx, issue, actor)
	if transitions == nil {
		transitions = []models.IssueStatus{}
	}
	c.JSON(http.StatusOK, gin.H{"status": issue.Status, "transitions": transitions})
}

// issueWithMeta is an issue enriched with upvote counts and reporter info
type issueWithMeta struct {
	models.Issue
	Upvotes      int64                  `json:"upvotes"`
	UserHasVoted bool                   `json:"userHasVoted"`
	ReportedBy   map[string]interface{} `json:"reportedBy"`
}

// enrichIssue attaches the upvote count, the caller's vote and the
// reporter's profile to one issue.
func enrichIssue(ctx context.Context, issue models.Issue, currentUserID *primitive.ObjectID) issueWithMeta {
	upvoteCollection := config.GetCollection("upvotes")
	userCollection := config.GetCollection("users")

	upvotes, err := upvoteCollection.CountDocuments(ctx, bson.M{"issue": issue.ID})
	if err != nil {
		upvotes = 0
	}

	userHasVoted := false
	if currentUserID != nil {
		count, err := upvoteCollection.CountDocuments(ctx, bson.M{
			"issue": issue.ID,
			"user":  *currentUserID,
		})
		if err == nil && count > 0 {
			userHasVoted = true
		}
	}

	var reporter models.User
	reportedByMap := map[string]interface{}{
		"id": issue.ReportedBy,
	}
	if err := userCollection.FindOne(ctx, bson.M{"_id": issue.ReportedBy}).Decode(&reporter); err == nil {
		reportedByMap["name"] = reporter.Name
		reportedByMap["email"] = reporter.Email
	}

	return issueWithMeta{
		Issue:        issue,
		Upvotes:      upvotes,
		UserHasVoted: userHasVoted,
		ReportedBy:   reportedByMap,
	}
}

// GetAllIssues handles retrieving all issues with filtering, pagination, and upvote counts
func GetAllIssues(c *gin.Context) {
	initDeps()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issueCollection := config.GetCollection("issues")

	// Parse query parameters
	category := c.Query("category")
	status := c.Query("status")
	search := c.Query("search")
	sortOrder := c.DefaultQuery("sort", "newest")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	// Build query filter
	filter := bson.M{}

	if category != "" && category != "all" {
		if parsed, ok := models.ParseCategory(category); ok {
			filter["category"] = parsed
		}
	}

	if status != "" && status != "all" {
		if parsed, ok := models.ParseStatus(status); ok {
			filter["status"] = parsed
		}
	}

	if search != "" {
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": search, "$options": "i"}},
			{"description": bson.M{"$regex": search, "$options": "i"}},
		}
	}

	// Calculate pagination
	skip := (page - 1) * limit

	// Sort options
	var sortOptions bson.D
	switch sortOrder {
	case "oldest":
		sortOptions = bson.D{{Key: "createdAt", Value: 1}}
	case "newest":
		fallthrough
	default:
		sortOptions = bson.D{{Key: "createdAt", Value: -1}}
	}

	// Get total count for pagination
	totalCount, err := issueCollection.CountDocuments(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count issues"})
		return
	}

	findOptions := options.Find().
		SetSort(sortOptions).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := issueCollection.Find(ctx, filter, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode issues"})
		return
	}

	// Get current user ID for upvote checking (if authenticated)
	var currentUserID *primitive.ObjectID
	if userIDStr, exists := c.Get("user_id"); exists {
		if objID, err := primitive.ObjectIDFromHex(userIDStr.(string)); err == nil {
			currentUserID = &objID
		}
	}

	enriched := make([]issueWithMeta, 0, len(issues))
	for _, issue := range issues {
		enriched = append(enriched, enrichIssue(ctx, issue, currentUserID))
	}

	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"issues":      enriched,
		"totalIssues": totalCount,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

// GetIssue retrieves an issue by its ID with upvote information
func GetIssue(c *gin.Context) {
	initDeps()

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
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

	var currentUserID *primitive.ObjectID
	if userIDStr, exists := c.Get("user_id"); exists {
		if objID, err := primitive.ObjectIDFromHex(userIDStr.(string)); err == nil {
			currentUserID = &objID
		}
	}

	c.JSON(http.StatusOK, enrichIssue(ctx, *issue, currentUserID))
}

// GetIssuesByUser retrieves all issues created by the authenticated user
func GetIssuesByUser(c *gin.Context) {
	initDeps()

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issueCollection := config.GetCollection("issues")
	cursor, err := issueCollection.Find(ctx, bson.M{"reportedBy": userObjID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode issues"})
		return
	}

	enriched := make([]issueWithMeta, 0, len(issues))
	for _, issue := range issues {
		enriched = append(enriched, enrichIssue(ctx, issue, &userObjID))
	}

	c.JSON(http.StatusOK, enriched)
}

// HandleUpvoteIssue toggles the user's upvote on an issue
func HandleUpvoteIssue(c *gin.Context) {
	initDeps()

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := issueRepo.Get(ctx, issueID); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	upvoteCollection := config.GetCollection("upvotes")

	count, err := upvoteCollection.CountDocuments(ctx, bson.M{
		"issue": issueID,
		"user":  userObjID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing upvotes"})
		return
	}

	if count > 0 {
		// User has already upvoted, remove the upvote
		_, err = upvoteCollection.DeleteOne(ctx, bson.M{
			"issue": issueID,
			"user":  userObjID,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove upvote"})
			return
		}

		updatedCount, err := upvoteCollection.CountDocuments(ctx, bson.M{"issue": issueID})
		if err != nil {
			updatedCount = 0
		}

		c.JSON(http.StatusOK, gin.H{
			"message":      "Upvote removed successfully",
			"voted":        false,
			"upvotes":      updatedCount,
			"userHasVoted": false,
		})
	} else {
		upvote := models.Upvote{
			ID:        primitive.NewObjectID(),
			Issue:     issueID,
			User:      userObjID,
			CreatedAt: time.Now(),
		}

		_, err = upvoteCollection.InsertOne(ctx, upvote)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cast upvote"})
			return
		}

		updatedCount, err := upvoteCollection.CountDocuments(ctx, bson.M{"issue": issueID})
		if err != nil {
			updatedCount = 1 // At least the upvote we just added
		}

		c.JSON(http.StatusOK, gin.H{
			"message":      "Upvote cast successfully",
			"voted":        true,
			"upvotes":      updatedCount,
			"userHasVoted": true,
		})
	}
}

// AddComment appends a comment to an issue
func AddComment(c *gin.Context) {
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

	var input struct {
		Text string `json:"text" binding:"required,max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment := models.Comment{
		Author:    actor.ID,
		Text:      input.Text,
		CreatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issueCollection := config.GetCollection("issues")
	result, err := issueCollection.UpdateOne(ctx,
		bson.M{"_id": issueID},
		bson.M{
			"$push": bson.M{"comments": comment},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add comment"})
		return
	}
	if result.MatchedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// UpdatePriority lets staff re-assess an issue's priority
func UpdatePriority(c *gin.Context) {
	initDeps()

	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if actor.Role == models.RoleCitizen || actor.Role == models.RoleContractor {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only staff may change priority"})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	var input struct {
		Priority string `json:"priority" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	priority, ok := models.ParsePriority(input.Priority)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issueCollection := config.GetCollection("issues")
	result, err := issueCollection.UpdateOne(ctx,
		bson.M{"_id": issueID},
		bson.M{"$set": bson.M{"priority": priority, "updatedAt": time.Now()}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update priority"})
		return
	}
	if result.MatchedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Priority updated successfully", "priority": priority})
}

// GetIssueAnalytics returns analytical data about issues
func GetIssueAnalytics(c *gin.Context) {
	initDeps()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issueCollection := config.GetCollection("issues")
	upvoteCollection := config.GetCollection("upvotes")

	// Get issues by category using aggregation
	categoryPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$category",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
	}

	categoryCursor, err := issueCollection.Aggregate(ctx, categoryPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get category analytics"})
		return
	}
	defer categoryCursor.Close(ctx)

	var issuesByCategory []bson.M
	if err := categoryCursor.All(ctx, &issuesByCategory); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode category analytics"})
		return
	}

	// Get issues by status using aggregation
	statusPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$status",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
	}

	statusCursor, err := issueCollection.Aggregate(ctx, statusPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get status analytics"})
		return
	}
	defer statusCursor.Close(ctx)

	var issuesByStatus []bson.M
	if err := statusCursor.All(ctx, &issuesByStatus); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode status analytics"})
		return
	}

	// Get last 7 days data
	var last7Days []gin.H
	for i := 6; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

		nextDate := date.AddDate(0, 0, 1)

		count, err := issueCollection.CountDocuments(ctx, bson.M{
			"createdAt": bson.M{
				"$gte": date,
				"$lt":  nextDate,
			},
		})
		if err != nil {
			count = 0
		}

		last7Days = append(last7Days, gin.H{
			"date":  date.Format("2006-01-02"),
			"count": count,
		})
	}

	// Get top upvoted issues from the most recent 50
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(50)

	cursor, err := issueCollection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues for upvote analysis"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode issues"})
		return
	}

	type issueWithUpvotes struct {
		ID       primitive.ObjectID `json:"id"`
		Title    string             `json:"title"`
		Category string             `json:"category"`
		Upvotes  int64              `json:"upvotes"`
	}

	var topIssues []issueWithUpvotes
	for _, issue := range issues {
		upvotes, err := upvoteCollection.CountDocuments(ctx, bson.M{"issue": issue.ID})
		if err != nil {
			upvotes = 0
		}

		topIssues = append(topIssues, issueWithUpvotes{
			ID:       issue.ID,
			Title:    issue.Title,
			Category: string(issue.Category),
			Upvotes:  upvotes,
		})
	}

	sort.Slice(topIssues, func(i, j int) bool {
		return topIssues[i].Upvotes > topIssues[j].Upvotes
	})

	if len(topIssues) > 5 {
		topIssues = topIssues[:5]
	}

	totalIssues, err := issueCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalIssues = 0
	}

	totalUpvotes, err := upvoteCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalUpvotes = 0
	}

	openIssues, err := issueCollection.CountDocuments(ctx, bson.M{
		"status": bson.M{"$nin": []models.IssueStatus{models.Resolved, models.Rejected}},
	})
	if err != nil {
		openIssues = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"issuesByCategory": issuesByCategory,
		"issuesByStatus":   issuesByStatus,
		"last7Days":        last7Days,
		"topVotedIssues":   topIssues,
		"totalIssues":      totalIssues,
		"totalUpvotes":     totalUpvotes,
		"openIssues":       openIssues,
	})
}

// RecentIssues returns the most recent issues for the map view
func RecentIssues(c *gin.Context) {
	initDeps()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	limit := 19

	issueCollection := config.GetCollection("issues")

	projection := bson.M{
		"_id":       1,
		"title":     1,
		"latitude":  1,
		"longitude": 1,
		"address":   1,
		"category":  1,
		"status":    1,
		"createdAt": 1,
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(projection)

	cursor, err := issueCollection.Find(ctx, bson.M{"status": bson.M{"$ne": models.Rejected}}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve recent issues"})
		return
	}
	defer cursor.Close(ctx)

	type issuePin struct {
		ID        primitive.ObjectID `bson:"_id" json:"id"`
		Title     string             `bson:"title" json:"title"`
		Latitude  float64            `bson:"latitude" json:"latitude"`
		Longitude float64            `bson:"longitude" json:"longitude"`
		Address   string             `bson:"address" json:"address"`
		Category  string             `bson:"category" json:"category"`
		Status    string             `bson:"status" json:"status"`
		CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	}

	var pins []issuePin
	if err := cursor.All(ctx, &pins); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode recent issues"})
		return
	}

	c.JSON(http.StatusOK, pins)
}
