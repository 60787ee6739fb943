package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Roads      IssueCategory = "ROADS"
	Utilities  IssueCategory = "UTILITIES"
	Parks      IssueCategory = "PARKS"
	Traffic    IssueCategory = "TRAFFIC"
	Sanitation IssueCategory = "SANITATION"
	Health     IssueCategory = "HEALTH"
	Other      IssueCategory = "OTHER"
)

var categories = map[string]IssueCategory{
	"ROADS":      Roads,
	"UTILITIES":  Utilities,
	"PARKS":      Parks,
	"TRAFFIC":    Traffic,
	"SANITATION": Sanitation,
	"HEALTH":     Health,
	"OTHER":      Other,
}

// ParseCategory normalizes an external category string to the canonical enum.
func ParseCategory(s string) (IssueCategory, bool) {
	cat, ok := categories[strings.ToUpper(strings.TrimSpace(s))]
	return cat, ok
}

// IssueStatus enum. This is the single canonical status vocabulary;
// external spellings are translated at the boundary by ParseStatus.
type IssueStatus string

const (
	Reported          IssueStatus = "REPORTED"
	OpenForBidding    IssueStatus = "OPEN_FOR_BIDDING"
	Assigned          IssueStatus = "ASSIGNED"
	InProgress        IssueStatus = "IN_PROGRESS"
	PendingInspection IssueStatus = "PENDING_INSPECTION"
	Resolved          IssueStatus = "RESOLVED"
	Rejected          IssueStatus = "REJECTED"
)

var statusAliases = map[string]IssueStatus{
	"REPORTED":           Reported,
	"OPEN_FOR_BIDDING":   OpenForBidding,
	"ASSIGNED":           Assigned,
	"IN_PROGRESS":        InProgress,
	"PENDING_INSPECTION": PendingInspection,
	"RESOLVED":           Resolved,
	"REJECTED":           Rejected,
	// Legacy spellings still sent by older clients.
	"PENDING":   Reported,
	"COMPLETED": PendingInspection,
}

// ParseStatus normalizes an external status string (any case, spaces or
// hyphens instead of underscores) to the canonical enum.
func ParseStatus(s string) (IssueStatus, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	status, ok := statusAliases[key]
	return status, ok
}

// Terminal reports whether no further transitions can leave this status.
func (s IssueStatus) Terminal() bool {
	return s == Resolved || s == Rejected
}

// IssuePriority enum
type IssuePriority string

const (
	Low      IssuePriority = "LOW"
	Medium   IssuePriority = "MEDIUM"
	High     IssuePriority = "HIGH"
	Critical IssuePriority = "CRITICAL"
)

// ParsePriority normalizes an external priority string to the canonical enum.
func ParsePriority(s string) (IssuePriority, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return Low, true
	case "MEDIUM":
		return Medium, true
	case "HIGH":
		return High, true
	case "CRITICAL":
		return Critical, true
	}
	return "", false
}

// Photo is a stored photo reference plus its perceptual hash. The hash is
// computed once at submission so duplicate checks against this issue never
// have to refetch its photos.
type Photo struct {
	URL   string `bson:"url" json:"url"`
	PHash uint64 `bson:"phash,omitempty" json:"-"`
}

// Comment is embedded on an issue
type Comment struct {
	Author    primitive.ObjectID `bson:"author" json:"author"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Issue represents a civic issue reported by a user
type Issue struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title              string              `bson:"title" json:"title"`
	Description        string              `bson:"description" json:"description"`
	Category           IssueCategory       `bson:"category" json:"category"`
	Address            string              `bson:"address" json:"address"`
	Latitude           float64             `bson:"latitude" json:"latitude"`
	Longitude          float64             `bson:"longitude" json:"longitude"`
	Photos             []Photo             `bson:"photos,omitempty" json:"photos,omitempty"`
	Status             IssueStatus         `bson:"status" json:"status"`
	Priority           IssuePriority       `bson:"priority" json:"priority"`
	ContractorEligible bool                `bson:"contractorEligible" json:"contractorEligible"`
	AssignedTo         *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	ReportedBy         primitive.ObjectID  `bson:"reportedBy" json:"reportedBy"`
	Comments           []Comment           `bson:"comments,omitempty" json:"comments,omitempty"`
	RejectionReason    string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	VerificationNotes  string              `bson:"verificationNotes,omitempty" json:"verificationNotes,omitempty"`
	BiddingOpenedAt    *time.Time          `bson:"biddingOpenedAt,omitempty" json:"biddingOpenedAt,omitempty"`
	AssignedAt         *time.Time          `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`
	StartedAt          *time.Time          `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt        *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	ResolvedAt         *time.Time          `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	RejectedAt         *time.Time          `bson:"rejectedAt,omitempty" json:"rejectedAt,omitempty"`
	CreatedAt          time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// IssuePatch carries the optional fields a transition may set alongside the
// status change. Repositories apply it in the same atomic write as the
// compare-and-set on status.
type IssuePatch struct {
	AssignedTo        *primitive.ObjectID
	RejectionReason   *string
	VerificationNotes *string
}
