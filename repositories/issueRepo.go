package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"urbanfix-be/config"
	"urbanfix-be/detection"
	"urbanfix-be/lifecycle"
	"urbanfix-be/models"
)

// IssueRepository is the MongoDB implementation of the lifecycle's issue
// store and the detection pipeline's candidate source.
type IssueRepository struct {
	coll *mongo.Collection
}

func NewIssueRepository() *IssueRepository {
	return &IssueRepository{coll: config.GetCollection("issues")}
}

func (r *IssueRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, issue)
	return err
}

// transitionTimestamps maps each target status to the audit timestamp it
// stamps on the issue.
var transitionTimestamps = map[models.IssueStatus]string{
	models.OpenForBidding:    "biddingOpenedAt",
	models.Assigned:          "assignedAt",
	models.InProgress:        "startedAt",
	models.PendingInspection: "completedAt",
	models.Resolved:          "resolvedAt",
	models.Rejected:          "rejectedAt",
}

// CompareAndTransition applies the status change and patch in a single
// conditional write. The filter on the expected status is what makes two
// racing transitions resolve to exactly one winner.
func (r *IssueRepository) CompareAndTransition(ctx context.Context, id primitive.ObjectID, expected, next models.IssueStatus, patch models.IssuePatch) (*models.Issue, error) {
	now := time.Now()
	set := bson.M{"status": next, "updatedAt": now}
	if field, ok := transitionTimestamps[next]; ok {
		set[field] = now
	}
	if patch.AssignedTo != nil {
		set["assignedTo"] = *patch.AssignedTo
	}
	if patch.RejectionReason != nil {
		set["rejectionReason"] = *patch.RejectionReason
	}
	if patch.VerificationNotes != nil {
		set["verificationNotes"] = *patch.VerificationNotes
	}

	var updated models.Issue
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": expected},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		// Either the issue is gone or someone else transitioned it first.
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: issue is %s, expected %s", lifecycle.ErrConcurrencyConflict, current.Status, expected)
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// FindCandidates returns the bounded duplicate-detection pool: same
// category, inside the box, recent, and not already rejected.
func (r *IssueRepository) FindCandidates(ctx context.Context, category models.IssueCategory, box detection.GeoBox, since time.Time, limit int64) ([]models.Issue, error) {
	filter := bson.M{
		"category":  category,
		"status":    bson.M{"$ne": models.Rejected},
		"createdAt": bson.M{"$gte": since},
		"latitude":  bson.M{"$gte": box.MinLat, "$lte": box.MaxLat},
		"longitude": bson.M{"$gte": box.MinLng, "$lte": box.MaxLng},
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}
