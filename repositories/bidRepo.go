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

// BidRepository is the MongoDB implementation of the bid workflow's store.
type BidRepository struct {
	bids   *mongo.Collection
	issues *mongo.Collection
	client *mongo.Client
}

func NewBidRepository() *BidRepository {
	return &BidRepository{
		bids:   config.GetCollection("bids"),
		issues: config.GetCollection("issues"),
		client: config.Client(),
	}
}

func (r *BidRepository) Create(ctx context.Context, bid *models.Bid) error {
	if bid.ID.IsZero() {
		bid.ID = primitive.NewObjectID()
	}
	_, err := r.bids.InsertOne(ctx, bid)
	return err
}

func (r *BidRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.Bid, error) {
	var bid models.Bid
	if err := r.bids.FindOne(ctx, bson.M{"_id": id}).Decode(&bid); err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *BidRepository) ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Bid, error) {
	return r.list(ctx, bson.M{"issue": issueID})
}

func (r *BidRepository) ListPending(ctx context.Context, issueID primitive.ObjectID) ([]models.Bid, error) {
	return r.list(ctx, bson.M{"issue": issueID, "status": models.BidPending})
}

func (r *BidRepository) list(ctx context.Context, filter bson.M) ([]models.Bid, error) {
	cursor, err := r.bids.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bids []models.Bid
	if err := cursor.All(ctx, &bids); err != nil {
		return nil, err
	}
	return bids, nil
}

// Reject moves a single bid PENDING -> REJECTED. The filter on PENDING
// makes a bid reviewed twice lose cleanly.
func (r *BidRepository) Reject(ctx context.Context, bidID, reviewer primitive.ObjectID, notes string) (*models.Bid, error) {
	var rejected models.Bid
	err := r.bids.FindOneAndUpdate(ctx,
		bson.M{"_id": bidID, "status": models.BidPending},
		bson.M{"$set": bson.M{
			"status":      models.BidRejected,
			"reviewNotes": notes,
			"reviewedBy":  reviewer,
			"reviewedAt":  time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rejected)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: bid was already reviewed", lifecycle.ErrConcurrencyConflict)
	}
	if err != nil {
		return nil, err
	}
	return &rejected, nil
}

// AcceptAndRejectOthers commits a bid award as one transaction: the
// winning bid becomes ACCEPTED, every other pending bid on the issue
// becomes REJECTED, and the issue moves OPEN_FOR_BIDDING -> ASSIGNED with
// the winning contractor. Conditional filters inside the transaction make
// concurrent accepts resolve to exactly one winner; the loser sees a
// concurrency conflict and nothing is partially applied.
func (r *BidRepository) AcceptAndRejectOthers(ctx context.Context, bidID, issueID, reviewer primitive.ObjectID, notes string) (*models.Bid, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	now := time.Now()
	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var accepted models.Bid
		err := r.bids.FindOneAndUpdate(sc,
			bson.M{"_id": bidID, "issue": issueID, "status": models.BidPending},
			bson.M{"$set": bson.M{
				"status":      models.BidAccepted,
				"reviewNotes": notes,
				"reviewedBy":  reviewer,
				"reviewedAt":  now,
			}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&accepted)
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: bid was already reviewed", lifecycle.ErrConcurrencyConflict)
		}
		if err != nil {
			return nil, err
		}

		_, err = r.bids.UpdateMany(sc,
			bson.M{"issue": issueID, "status": models.BidPending, "_id": bson.M{"$ne": bidID}},
			bson.M{"$set": bson.M{
				"status":      models.BidRejected,
				"reviewNotes": "another bid was accepted",
				"reviewedBy":  reviewer,
				"reviewedAt":  now,
			}},
		)
		if err != nil {
			return nil, err
		}

		issueUpdate := r.issues.FindOneAndUpdate(sc,
			bson.M{"_id": issueID, "status": models.OpenForBidding},
			bson.M{"$set": bson.M{
				"status":     models.Assigned,
				"assignedTo": accepted.Contractor,
				"assignedAt": now,
				"updatedAt":  now,
			}},
		)
		if issueUpdate.Err() == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: issue is no longer open for bidding", lifecycle.ErrConcurrencyConflict)
		}
		if issueUpdate.Err() != nil {
			return nil, issueUpdate.Err()
		}
		return &accepted, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Bid), nil
}
