package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"urbanfix-be/models"
)

// memBids mirrors the transactional award commit: the winning bid, the
// losing bids and the issue all change together or not at all.
type memBids struct {
	mu     sync.Mutex
	bids   map[primitive.ObjectID]*models.Bid
	issues *memIssues
}

func newMemBids(issues *memIssues, bids ...*models.Bid) *memBids {
	m := &memBids{bids: map[primitive.ObjectID]*models.Bid{}, issues: issues}
	for _, bid := range bids {
		if bid.ID.IsZero() {
			bid.ID = primitive.NewObjectID()
		}
		cp := *bid
		m.bids[bid.ID] = &cp
	}
	return m
}

func (m *memBids) Create(ctx context.Context, bid *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bid.ID.IsZero() {
		bid.ID = primitive.NewObjectID()
	}
	cp := *bid
	m.bids[bid.ID] = &cp
	return nil
}

func (m *memBids) Get(ctx context.Context, id primitive.ObjectID) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bid, ok := m.bids[id]
	if !ok {
		return nil, errors.New("bid not found")
	}
	cp := *bid
	return &cp, nil
}

func (m *memBids) ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Bid
	for _, bid := range m.bids {
		if bid.Issue == issueID {
			out = append(out, *bid)
		}
	}
	return out, nil
}

func (m *memBids) ListPending(ctx context.Context, issueID primitive.ObjectID) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Bid
	for _, bid := range m.bids {
		if bid.Issue == issueID && bid.Status == models.BidPending {
			out = append(out, *bid)
		}
	}
	return out, nil
}

func (m *memBids) Reject(ctx context.Context, bidID, reviewer primitive.ObjectID, notes string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bid, ok := m.bids[bidID]
	if !ok {
		return nil, errors.New("bid not found")
	}
	if bid.Status != models.BidPending {
		return nil, fmt.Errorf("%w: bid is already %s", ErrConcurrencyConflict, bid.Status)
	}
	now := time.Now()
	bid.Status = models.BidRejected
	bid.ReviewNotes = notes
	bid.ReviewedBy = &reviewer
	bid.ReviewedAt = &now
	cp := *bid
	return &cp, nil
}

func (m *memBids) AcceptAndRejectOthers(ctx context.Context, bidID, issueID, reviewer primitive.ObjectID, notes string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bid, ok := m.bids[bidID]
	if !ok {
		return nil, errors.New("bid not found")
	}
	if bid.Issue != issueID {
		return nil, errors.New("bid does not belong to this issue")
	}
	if bid.Status != models.BidPending {
		return nil, fmt.Errorf("%w: bid is already %s", ErrConcurrencyConflict, bid.Status)
	}

	// Commit the issue side first; if it lost the race, nothing changes.
	contractor := bid.Contractor
	if _, err := m.issues.CompareAndTransition(ctx, issueID, models.OpenForBidding, models.Assigned, models.IssuePatch{AssignedTo: &contractor}); err != nil {
		return nil, err
	}

	now := time.Now()
	bid.Status = models.BidAccepted
	bid.ReviewNotes = notes
	bid.ReviewedBy = &reviewer
	bid.ReviewedAt = &now
	for _, other := range m.bids {
		if other.Issue == issueID && other.ID != bidID && other.Status == models.BidPending {
			other.Status = models.BidRejected
			other.ReviewNotes = "another bid was accepted"
			other.ReviewedBy = &reviewer
			other.ReviewedAt = &now
		}
	}
	cp := *bid
	return &cp, nil
}

type bidHarness struct {
	workflow *BidWorkflow
	bids     *memBids
	issues   *memIssues
	capacity *memCapacity
	notifier *memNotifier
}

func newBidHarness(issue *models.Issue, bids ...*models.Bid) *bidHarness {
	h := &bidHarness{
		issues:   newMemIssues(issue),
		capacity: newMemCapacity(),
		notifier: &memNotifier{},
	}
	h.bids = newMemBids(h.issues, bids...)
	h.workflow = NewBidWorkflow(h.bids, h.issues, h.capacity, h.notifier)
	return h
}

func TestSubmitRequiresContractorRole(t *testing.T) {
	issue := &models.Issue{Status: models.OpenForBidding, ContractorEligible: true}
	h := newBidHarness(issue)

	err := h.workflow.Submit(context.Background(), &models.Bid{Issue: issue.ID, Amount: 1200, EstimatedDays: 3}, Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for a citizen, got %v", err)
	}
}

func TestSubmitValidatesAmountAndDays(t *testing.T) {
	issue := &models.Issue{Status: models.OpenForBidding, ContractorEligible: true}
	h := newBidHarness(issue)
	contractor := Actor{ID: primitive.NewObjectID(), Role: models.RoleContractor}

	if err := h.workflow.Submit(context.Background(), &models.Bid{Issue: issue.ID, Amount: 0, EstimatedDays: 3}, contractor); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for a zero amount, got %v", err)
	}
	if err := h.workflow.Submit(context.Background(), &models.Bid{Issue: issue.ID, Amount: 1200, EstimatedDays: -1}, contractor); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for negative days, got %v", err)
	}
}

func TestSubmitRequiresOpenIssue(t *testing.T) {
	issue := &models.Issue{Status: models.Reported, ContractorEligible: true}
	h := newBidHarness(issue)

	err := h.workflow.Submit(context.Background(), &models.Bid{Issue: issue.ID, Amount: 1200, EstimatedDays: 3}, Actor{ID: primitive.NewObjectID(), Role: models.RoleContractor})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed while not open for bidding, got %v", err)
	}
}

func TestSubmitRecordsPendingBid(t *testing.T) {
	issue := &models.Issue{Status: models.OpenForBidding, ContractorEligible: true}
	h := newBidHarness(issue)
	contractor := Actor{ID: primitive.NewObjectID(), Role: models.RoleContractor}

	bid := &models.Bid{Issue: issue.ID, Amount: 1200, EstimatedDays: 3, Proposal: "patch and reseal"}
	if err := h.workflow.Submit(context.Background(), bid, contractor); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	stored, err := h.bids.Get(context.Background(), bid.ID)
	if err != nil {
		t.Fatalf("Stored bid not found: %v", err)
	}
	if stored.Status != models.BidPending {
		t.Errorf("Expected PENDING, got %s", stored.Status)
	}
	if stored.Contractor != contractor.ID {
		t.Errorf("Expected contractor %s, got %s", contractor.ID.Hex(), stored.Contractor.Hex())
	}
}

func TestReviewRequiresAdminRole(t *testing.T) {
	issue := &models.Issue{Status: models.OpenForBidding}
	h := newBidHarness(issue)
	bid := &models.Bid{Issue: issue.ID, Contractor: primitive.NewObjectID(), Status: models.BidPending}
	if err := h.bids.Create(context.Background(), bid); err != nil {
		t.Fatal(err)
	}

	_, err := h.workflow.Review(context.Background(), bid.ID, models.BidAccepted, "", Actor{ID: primitive.NewObjectID(), Role: models.RoleContractor})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for a contractor reviewer, got %v", err)
	}
}

func TestReviewRejectsInvalidDecision(t *testing.T) {
	issue := &models.Issue{Status: models.OpenForBidding}
	h := newBidHarness(issue)
	bid := &models.Bid{Issue: issue.ID, Contractor: primitive.NewObjectID(), Status: models.BidPending}
	if err := h.bids.Create(context.Background(), bid); err != nil {
		t.Fatal(err)
	}

	_, err := h.workflow.Review(context.Background(), bid.ID, models.BidPending, "", Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for a PENDING decision, got %v", err)
	}
}

func TestRejectRequiresNotes(t *testing.T) {
	issue := &models.Issue{Status: models.OpenForBidding}
	h := newBidHarness(issue)
	bid := &models.Bid{Issue: issue.ID, Contractor: primitive.NewObjectID(), Status: models.BidPending}
	if err := h.bids.Create(context.Background(), bid); err != nil {
		t.Fatal(err)
	}

	_, err := h.workflow.Review(context.Background(), bid.ID, models.BidRejected, "", Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed without notes, got %v", err)
	}
}

func TestRejectLeavesIssueOpen(t *testing.T) {
	issue := &models.Issue{Status: models.OpenForBidding}
	h := newBidHarness(issue)
	contractor := primitive.NewObjectID()
	bid := &models.Bid{Issue: issue.ID, Contractor: contractor, Status: models.BidPending}
	if err := h.bids.Create(context.Background(), bid); err != nil {
		t.Fatal(err)
	}

	rejected, err := h.workflow.Review(context.Background(), bid.ID, models.BidRejected, "quote is far above the estimate", Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if rejected.Status != models.BidRejected || rejected.ReviewNotes == "" {
		t.Errorf("Unexpected rejected bid: %+v", rejected)
	}

	current, err := h.issues.Get(context.Background(), issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.Status != models.OpenForBidding {
		t.Errorf("Rejecting one bid must leave the issue open, got %s", current.Status)
	}
	if !h.notifier.received(contractor, EventBidRejected) {
		t.Error("Expected the contractor to be notified of the rejection")
	}
}

func TestAcceptAwardsAtomically(t *testing.T) {
	issue := &models.Issue{Status: models.OpenForBidding, ContractorEligible: true}
	h := newBidHarness(issue)
	c1, c2, c3 := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	b1 := &models.Bid{Issue: issue.ID, Contractor: c1, Status: models.BidPending}
	b2 := &models.Bid{Issue: issue.ID, Contractor: c2, Status: models.BidPending}
	b3 := &models.Bid{Issue: issue.ID, Contractor: c3, Status: models.BidPending}
	for _, bid := range []*models.Bid{b1, b2, b3} {
		if err := h.bids.Create(context.Background(), bid); err != nil {
			t.Fatal(err)
		}
	}

	accepted, err := h.workflow.Review(context.Background(), b1.ID, models.BidAccepted, "best proposal", Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if accepted.Status != models.BidAccepted {
		t.Errorf("Expected ACCEPTED, got %s", accepted.Status)
	}

	all, err := h.bids.ListByIssue(context.Background(), issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, bid := range all {
		switch bid.ID {
		case b1.ID:
			if bid.Status != models.BidAccepted {
				t.Errorf("Winner should be ACCEPTED, got %s", bid.Status)
			}
		default:
			if bid.Status != models.BidRejected {
				t.Errorf("Loser %s should be REJECTED, got %s", bid.ID.Hex(), bid.Status)
			}
		}
	}

	current, err := h.issues.Get(context.Background(), issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.Status != models.Assigned {
		t.Errorf("Expected the issue ASSIGNED, got %s", current.Status)
	}
	if current.AssignedTo == nil || *current.AssignedTo != c1 {
		t.Errorf("Expected assignee %s, got %v", c1.Hex(), current.AssignedTo)
	}
	if got := h.capacity.load(c1); got != 1 {
		t.Errorf("Expected winner load 1, got %d", got)
	}
	if !h.notifier.received(c1, EventBidAccepted) {
		t.Error("Expected the winner to be notified")
	}
	if !h.notifier.received(c2, EventBidRejected) || !h.notifier.received(c3, EventBidRejected) {
		t.Error("Expected both losers to be notified")
	}
}

func TestAcceptAlreadyReviewedBid(t *testing.T) {
	issue := &models.Issue{Status: models.OpenForBidding}
	h := newBidHarness(issue)
	bid := &models.Bid{Issue: issue.ID, Contractor: primitive.NewObjectID(), Status: models.BidRejected}
	if err := h.bids.Create(context.Background(), bid); err != nil {
		t.Fatal(err)
	}

	_, err := h.workflow.Review(context.Background(), bid.ID, models.BidAccepted, "", Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed for an already reviewed bid, got %v", err)
	}
}

func TestConcurrentAcceptsHaveSingleWinner(t *testing.T) {
	issue := &models.Issue{Status: models.OpenForBidding, ContractorEligible: true}
	h := newBidHarness(issue)
	admin := Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}

	bids := make([]*models.Bid, 4)
	for i := range bids {
		bids[i] = &models.Bid{Issue: issue.ID, Contractor: primitive.NewObjectID(), Status: models.BidPending}
		if err := h.bids.Create(context.Background(), bids[i]); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(bids))
	for _, bid := range bids {
		wg.Add(1)
		go func(bidID primitive.ObjectID) {
			defer wg.Done()
			_, err := h.workflow.Review(context.Background(), bidID, models.BidAccepted, "", admin)
			errs <- err
		}(bid.ID)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrConcurrencyConflict) && !errors.Is(err, ErrPreconditionFailed) {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("Expected exactly one accepted bid, got %d", wins)
	}

	all, err := h.bids.ListByIssue(context.Background(), issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	acceptedCount := 0
	for _, bid := range all {
		if bid.Status == models.BidAccepted {
			acceptedCount++
		}
	}
	if acceptedCount != 1 {
		t.Errorf("Invariant violated: %d ACCEPTED bids on one issue", acceptedCount)
	}

	current, err := h.issues.Get(context.Background(), issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.Status != models.Assigned || current.AssignedTo == nil {
		t.Errorf("Expected the issue ASSIGNED to the single winner, got %+v", current)
	}
}
