package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"urbanfix-be/models"
)

// BidRepository persists contractor bids. AcceptAndRejectOthers is the
// atomic commit for an award: accept the winning bid, reject every other
// pending bid on the issue, and move the issue to ASSIGNED with the
// winning contractor — all in one transaction. Partial application must
// never be observable.
type BidRepository interface {
	Create(ctx context.Context, bid *models.Bid) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Bid, error)
	ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Bid, error)
	ListPending(ctx context.Context, issueID primitive.ObjectID) ([]models.Bid, error)
	Reject(ctx context.Context, bidID, reviewer primitive.ObjectID, notes string) (*models.Bid, error)
	AcceptAndRejectOthers(ctx context.Context, bidID, issueID, reviewer primitive.ObjectID, notes string) (*models.Bid, error)
}

// BidWorkflow is the nested state machine for contractor bids. Each bid
// moves PENDING -> ACCEPTED | REJECTED; acceptance feeds the parent
// issue's OPEN_FOR_BIDDING -> ASSIGNED transition.
type BidWorkflow struct {
	bids     BidRepository
	issues   IssueRepository
	capacity CapacityTracker
	notifier Notifier
}

func NewBidWorkflow(bids BidRepository, issues IssueRepository, capacity CapacityTracker, notifier Notifier) *BidWorkflow {
	return &BidWorkflow{bids: bids, issues: issues, capacity: capacity, notifier: notifier}
}

// Submit records a new PENDING bid. Only contractors may bid and only
// while the parent issue is OPEN_FOR_BIDDING.
func (w *BidWorkflow) Submit(ctx context.Context, bid *models.Bid, actor Actor) error {
	if actor.Role != models.RoleContractor {
		return fmt.Errorf("%w: only contractors may submit bids", ErrForbidden)
	}
	if bid.Amount <= 0 {
		return fmt.Errorf("%w: bid amount must be positive", ErrValidation)
	}
	if bid.EstimatedDays <= 0 {
		return fmt.Errorf("%w: estimated days must be positive", ErrValidation)
	}

	issue, err := w.issues.Get(ctx, bid.Issue)
	if err != nil {
		return err
	}
	if issue.Status != models.OpenForBidding {
		return fmt.Errorf("%w: issue is %s, bids are only accepted while OPEN_FOR_BIDDING", ErrPreconditionFailed, issue.Status)
	}

	bid.Contractor = actor.ID
	bid.Status = models.BidPending
	bid.CreatedAt = time.Now()
	return w.bids.Create(ctx, bid)
}

// Review applies an admin decision to a pending bid. Rejection requires
// non-empty notes so contractors get actionable feedback and leaves the
// issue open for bidding. Acceptance awards the issue to the bid's
// contractor and rejects all other pending bids atomically.
func (w *BidWorkflow) Review(ctx context.Context, bidID primitive.ObjectID, decision models.BidStatus, notes string, actor Actor) (*models.Bid, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins may review bids", ErrForbidden)
	}

	bid, err := w.bids.Get(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Status != models.BidPending {
		return nil, fmt.Errorf("%w: bid is already %s", ErrPreconditionFailed, bid.Status)
	}

	switch decision {
	case models.BidRejected:
		if notes == "" {
			return nil, fmt.Errorf("%w: rejecting a bid requires review notes", ErrPreconditionFailed)
		}
		rejected, err := w.bids.Reject(ctx, bidID, actor.ID, notes)
		if err != nil {
			return nil, err
		}
		w.notifier.Notify(ctx, rejected.Contractor, EventBidRejected, map[string]any{
			"bidId":   rejected.ID.Hex(),
			"issueId": rejected.Issue.Hex(),
			"notes":   notes,
		})
		return rejected, nil

	case models.BidAccepted:
		return w.accept(ctx, bid, actor, notes)

	default:
		return nil, fmt.Errorf("%w: review decision must be ACCEPTED or REJECTED", ErrValidation)
	}
}

func (w *BidWorkflow) accept(ctx context.Context, bid *models.Bid, actor Actor, notes string) (*models.Bid, error) {
	issue, err := w.issues.Get(ctx, bid.Issue)
	if err != nil {
		return nil, err
	}
	if issue.Status != models.OpenForBidding {
		return nil, fmt.Errorf("%w: issue is %s, expected OPEN_FOR_BIDDING", ErrConcurrencyConflict, issue.Status)
	}

	// Snapshot the losers before the commit so they can be notified after.
	pending, err := w.bids.ListPending(ctx, bid.Issue)
	if err != nil {
		return nil, err
	}

	accepted, err := w.bids.AcceptAndRejectOthers(ctx, bid.ID, bid.Issue, actor.ID, notes)
	if err != nil {
		return nil, err
	}

	if err := w.capacity.IncrementLoad(ctx, accepted.Contractor); err != nil {
		slog.Error("bids: failed to increment contractor load", "contractor", accepted.Contractor.Hex(), "error", err)
	}
	w.notifier.Notify(ctx, accepted.Contractor, EventBidAccepted, map[string]any{
		"bidId":   accepted.ID.Hex(),
		"issueId": accepted.Issue.Hex(),
	})
	for _, loser := range pending {
		if loser.ID == accepted.ID {
			continue
		}
		w.notifier.Notify(ctx, loser.Contractor, EventBidRejected, map[string]any{
			"bidId":   loser.ID.Hex(),
			"issueId": loser.Issue.Hex(),
			"notes":   "another bid was accepted",
		})
	}
	return accepted, nil
}
