package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkUpdateType enum
type WorkUpdateType string

const (
	UpdateStarted    WorkUpdateType = "STARTED"
	UpdateInProgress WorkUpdateType = "IN_PROGRESS"
	UpdateCompleted  WorkUpdateType = "COMPLETED"
	UpdateBlocked    WorkUpdateType = "BLOCKED"
)

// ParseWorkUpdateType normalizes an external update type string.
func ParseWorkUpdateType(s string) (WorkUpdateType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STARTED":
		return UpdateStarted, true
	case "IN_PROGRESS", "IN PROGRESS":
		return UpdateInProgress, true
	case "COMPLETED":
		return UpdateCompleted, true
	case "BLOCKED":
		return UpdateBlocked, true
	}
	return "", false
}

// VerificationStatus enum
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// Material used during field work
type Material struct {
	Name     string  `bson:"name" json:"name"`
	Quantity float64 `bson:"quantity" json:"quantity"`
	Unit     string  `bson:"unit" json:"unit"`
}

// WorkUpdate is a field-progress record submitted by a worker against an
// assigned issue. A COMPLETED update is the precondition for moving the
// issue out of IN_PROGRESS; the inspector's verification of it drives the
// issue to RESOLVED or back to IN_PROGRESS.
type WorkUpdate struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Issue          primitive.ObjectID  `bson:"issue" json:"issue"`
	Worker         primitive.ObjectID  `bson:"worker" json:"worker"`
	Type           WorkUpdateType      `bson:"type" json:"type"`
	Description    string              `bson:"description" json:"description"`
	Progress       int                 `bson:"progress" json:"progress"`
	HoursWorked    float64             `bson:"hoursWorked" json:"hoursWorked"`
	Materials      []Material          `bson:"materials,omitempty" json:"materials,omitempty"`
	Photos         []string            `bson:"photos,omitempty" json:"photos,omitempty"`
	Verification   VerificationStatus  `bson:"verification" json:"verification"`
	InspectorNotes string              `bson:"inspectorNotes,omitempty" json:"inspectorNotes,omitempty"`
	VerifiedBy     *primitive.ObjectID `bson:"verifiedBy,omitempty" json:"verifiedBy,omitempty"`
	VerifiedAt     *time.Time          `bson:"verifiedAt,omitempty" json:"verifiedAt,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
}
