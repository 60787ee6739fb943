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
	"urbanfix-be/lifecycle"
	"urbanfix-be/models"
)

// WorkUpdateRepository stores field-progress records.
type WorkUpdateRepository struct {
	coll *mongo.Collection
}

func NewWorkUpdateRepository() *WorkUpdateRepository {
	return &WorkUpdateRepository{coll: config.GetCollection("workupdates")}
}

func (r *WorkUpdateRepository) Create(ctx context.Context, update *models.WorkUpdate) error {
	if update.ID.IsZero() {
		update.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, update)
	return err
}

func (r *WorkUpdateRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.WorkUpdate, error) {
	var update models.WorkUpdate
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&update); err != nil {
		return nil, err
	}
	return &update, nil
}

func (r *WorkUpdateRepository) ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.WorkUpdate, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"issue": issueID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var updates []models.WorkUpdate
	if err := cursor.All(ctx, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// LatestCompleted returns the most recent COMPLETED update for the issue,
// or nil when none exists yet.
func (r *WorkUpdateRepository) LatestCompleted(ctx context.Context, issueID primitive.ObjectID) (*models.WorkUpdate, error) {
	var update models.WorkUpdate
	err := r.coll.FindOne(ctx,
		bson.M{"issue": issueID, "type": models.UpdateCompleted},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	).Decode(&update)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &update, nil
}

// Verify records the inspector decision on a pending work update. The
// filter on PENDING verification means two racing inspectors resolve to
// one winner.
func (r *WorkUpdateRepository) Verify(ctx context.Context, id, inspector primitive.ObjectID, status models.VerificationStatus, notes string) (*models.WorkUpdate, error) {
	var verified models.WorkUpdate
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "verification": models.VerificationPending},
		bson.M{"$set": bson.M{
			"verification":   status,
			"inspectorNotes": notes,
			"verifiedBy":     inspector,
			"verifiedAt":     time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&verified)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: work update was already verified", lifecycle.ErrConcurrencyConflict)
	}
	if err != nil {
		return nil, err
	}
	return &verified, nil
}
