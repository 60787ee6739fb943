package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BidStatus enum
type BidStatus string

const (
	BidPending  BidStatus = "PENDING"
	BidAccepted BidStatus = "ACCEPTED"
	BidRejected BidStatus = "REJECTED"
)

// Bid is a contractor's proposal against an issue open for bidding.
// At most one bid per issue is ever ACCEPTED.
type Bid struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Issue         primitive.ObjectID `bson:"issue" json:"issue"`
	Contractor    primitive.ObjectID `bson:"contractor" json:"contractor"`
	Amount        float64            `bson:"amount" json:"amount"`
	EstimatedDays float64            `bson:"estimatedDays" json:"estimatedDays"`
	Proposal      string             `bson:"proposal" json:"proposal"`
	Status        BidStatus          `bson:"status" json:"status"`
	ReviewNotes   string             `bson:"reviewNotes,omitempty" json:"reviewNotes,omitempty"`
	ReviewedBy    *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt    *time.Time         `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}
