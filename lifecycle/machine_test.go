package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"urbanfix-be/models"
)

// In-memory fakes with the same compare-and-set semantics as the Mongo
// repositories, shared by the machine and bid workflow tests.

type memIssues struct {
	mu     sync.Mutex
	issues map[primitive.ObjectID]*models.Issue
}

func newMemIssues(issues ...*models.Issue) *memIssues {
	m := &memIssues{issues: map[primitive.ObjectID]*models.Issue{}}
	for _, issue := range issues {
		if issue.ID.IsZero() {
			issue.ID = primitive.NewObjectID()
		}
		cp := *issue
		m.issues[issue.ID] = &cp
	}
	return m
}

func (m *memIssues) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue, ok := m.issues[id]
	if !ok {
		return nil, errors.New("issue not found")
	}
	cp := *issue
	return &cp, nil
}

func (m *memIssues) Create(ctx context.Context, issue *models.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	cp := *issue
	m.issues[issue.ID] = &cp
	return nil
}

func (m *memIssues) CompareAndTransition(ctx context.Context, id primitive.ObjectID, expected, next models.IssueStatus, patch models.IssuePatch) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue, ok := m.issues[id]
	if !ok {
		return nil, errors.New("issue not found")
	}
	if issue.Status != expected {
		return nil, fmt.Errorf("%w: issue is %s, expected %s", ErrConcurrencyConflict, issue.Status, expected)
	}
	issue.Status = next
	if patch.AssignedTo != nil {
		issue.AssignedTo = patch.AssignedTo
	}
	if patch.RejectionReason != nil {
		issue.RejectionReason = *patch.RejectionReason
	}
	if patch.VerificationNotes != nil {
		issue.VerificationNotes = *patch.VerificationNotes
	}
	cp := *issue
	return &cp, nil
}

type memWorkUpdates struct {
	latest *models.WorkUpdate
}

func (m *memWorkUpdates) LatestCompleted(ctx context.Context, issueID primitive.ObjectID) (*models.WorkUpdate, error) {
	if m.latest == nil || m.latest.Issue != issueID {
		return nil, nil
	}
	cp := *m.latest
	return &cp, nil
}

type memCapacity struct {
	mu    sync.Mutex
	loads map[primitive.ObjectID]int
}

func newMemCapacity() *memCapacity {
	return &memCapacity{loads: map[primitive.ObjectID]int{}}
}

func (m *memCapacity) IncrementLoad(ctx context.Context, workerID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads[workerID]++
	return nil
}

func (m *memCapacity) DecrementLoad(ctx context.Context, workerID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loads[workerID] > 0 {
		m.loads[workerID]--
	}
	return nil
}

func (m *memCapacity) load(workerID primitive.ObjectID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads[workerID]
}

type sentNote struct {
	user  primitive.ObjectID
	event string
}

type memNotifier struct {
	mu    sync.Mutex
	notes []sentNote
}

func (m *memNotifier) Notify(ctx context.Context, userID primitive.ObjectID, event string, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, sentNote{user: userID, event: event})
}

func (m *memNotifier) received(userID primitive.ObjectID, event string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notes {
		if n.user == userID && n.event == event {
			return true
		}
	}
	return false
}

type machineHarness struct {
	machine  *Machine
	issues   *memIssues
	updates  *memWorkUpdates
	capacity *memCapacity
	notifier *memNotifier
}

func newMachineHarness(issues ...*models.Issue) *machineHarness {
	h := &machineHarness{
		issues:   newMemIssues(issues...),
		updates:  &memWorkUpdates{},
		capacity: newMemCapacity(),
		notifier: &memNotifier{},
	}
	h.machine = NewMachine(h.issues, h.updates, h.capacity, h.notifier)
	return h
}

func TestApplyRejectsUnknownEdge(t *testing.T) {
	issue := &models.Issue{Status: models.Reported}
	h := newMachineHarness(issue)

	_, err := h.machine.Apply(context.Background(), Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.Reported,
		NewStatus:      models.InProgress,
	}, Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestApplyRejectsTerminalStatus(t *testing.T) {
	issue := &models.Issue{Status: models.Resolved}
	h := newMachineHarness(issue)

	_, err := h.machine.Apply(context.Background(), Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.Resolved,
		NewStatus:      models.InProgress,
	}, Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition out of a terminal status, got %v", err)
	}
}

func TestApplyRejectsDisallowedRole(t *testing.T) {
	issue := &models.Issue{Status: models.Reported}
	h := newMachineHarness(issue)
	worker := primitive.NewObjectID()

	_, err := h.machine.Apply(context.Background(), Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.Reported,
		NewStatus:      models.Assigned,
		AssignTo:       &worker,
	}, Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for a citizen, got %v", err)
	}
}

func TestAssignRequiresAssignee(t *testing.T) {
	issue := &models.Issue{Status: models.Reported}
	h := newMachineHarness(issue)

	_, err := h.machine.Apply(context.Background(), Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.Reported,
		NewStatus:      models.Assigned,
	}, Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed without an assignee, got %v", err)
	}
}

func TestAssignIncrementsWorkerLoad(t *testing.T) {
	issue := &models.Issue{Status: models.Reported}
	h := newMachineHarness(issue)
	worker := primitive.NewObjectID()

	updated, err := h.machine.Apply(context.Background(), Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.Reported,
		NewStatus:      models.Assigned,
		AssignTo:       &worker,
	}, Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated.Status != models.Assigned {
		t.Errorf("Expected ASSIGNED, got %s", updated.Status)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != worker {
		t.Errorf("Expected assignee %s, got %v", worker.Hex(), updated.AssignedTo)
	}
	if got := h.capacity.load(worker); got != 1 {
		t.Errorf("Expected worker load 1, got %d", got)
	}
}

func TestOpenForBiddingRequiresEligibility(t *testing.T) {
	ineligible := &models.Issue{Status: models.Reported}
	eligible := &models.Issue{Status: models.Reported, ContractorEligible: true}
	h := newMachineHarness(ineligible, eligible)
	admin := Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}

	_, err := h.machine.Apply(context.Background(), Request{
		IssueID:        ineligible.ID,
		ExpectedStatus: models.Reported,
		NewStatus:      models.OpenForBidding,
	}, admin)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed for an ineligible issue, got %v", err)
	}

	updated, err := h.machine.Apply(context.Background(), Request{
		IssueID:        eligible.ID,
		ExpectedStatus: models.Reported,
		NewStatus:      models.OpenForBidding,
	}, admin)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated.Status != models.OpenForBidding {
		t.Errorf("Expected OPEN_FOR_BIDDING, got %s", updated.Status)
	}
}

func TestRejectRequiresReasonAndNotifies(t *testing.T) {
	reporter := primitive.NewObjectID()
	issue := &models.Issue{Status: models.Reported, ReportedBy: reporter, Title: "Pothole on Main St"}
	h := newMachineHarness(issue)
	admin := Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}

	_, err := h.machine.Apply(context.Background(), Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.Reported,
		NewStatus:      models.Rejected,
	}, admin)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed without a reason, got %v", err)
	}

	updated, err := h.machine.Apply(context.Background(), Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.Reported,
		NewStatus:      models.Rejected,
		Reason:         "duplicate of an existing report",
	}, admin)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated.RejectionReason != "duplicate of an existing report" {
		t.Errorf("Rejection reason not persisted: %q", updated.RejectionReason)
	}
	if !h.notifier.received(reporter, EventIssueRejected) {
		t.Error("Expected the reporter to be notified of the rejection")
	}
}

func TestStartForbiddenForNonAssignee(t *testing.T) {
	assignee := primitive.NewObjectID()
	issue := &models.Issue{Status: models.Assigned, AssignedTo: &assignee}
	h := newMachineHarness(issue)

	_, err := h.machine.Apply(context.Background(), Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.Assigned,
		NewStatus:      models.InProgress,
	}, Actor{ID: primitive.NewObjectID(), Role: models.RoleWorker})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for a non-assignee worker, got %v", err)
	}
}

func TestCompleteRequiresCompletedWorkUpdate(t *testing.T) {
	assignee := primitive.NewObjectID()
	issue := &models.Issue{Status: models.InProgress, AssignedTo: &assignee}
	h := newMachineHarness(issue)
	worker := Actor{ID: assignee, Role: models.RoleWorker}

	req := Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.InProgress,
		NewStatus:      models.PendingInspection,
	}
	if _, err := h.machine.Apply(context.Background(), req, worker); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed without a COMPLETED update, got %v", err)
	}

	h.updates.latest = &models.WorkUpdate{Issue: issue.ID, Type: models.UpdateCompleted, Verification: models.VerificationPending}
	updated, err := h.machine.Apply(context.Background(), req, worker)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated.Status != models.PendingInspection {
		t.Errorf("Expected PENDING_INSPECTION, got %s", updated.Status)
	}
}

func TestResolveRequiresApprovedVerification(t *testing.T) {
	reporter := primitive.NewObjectID()
	assignee := primitive.NewObjectID()
	issue := &models.Issue{Status: models.PendingInspection, AssignedTo: &assignee, ReportedBy: reporter}
	h := newMachineHarness(issue)
	h.capacity.loads[assignee] = 1
	inspector := Actor{ID: primitive.NewObjectID(), Role: models.RoleInspector}

	h.updates.latest = &models.WorkUpdate{Issue: issue.ID, Type: models.UpdateCompleted, Verification: models.VerificationPending}
	req := Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.PendingInspection,
		NewStatus:      models.Resolved,
		Notes:          "repair verified on site",
	}
	if _, err := h.machine.Apply(context.Background(), req, inspector); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed while verification is pending, got %v", err)
	}

	h.updates.latest.Verification = models.VerificationApproved
	updated, err := h.machine.Apply(context.Background(), req, inspector)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated.Status != models.Resolved {
		t.Errorf("Expected RESOLVED, got %s", updated.Status)
	}
	if updated.VerificationNotes != "repair verified on site" {
		t.Errorf("Verification notes not persisted: %q", updated.VerificationNotes)
	}
	if got := h.capacity.load(assignee); got != 0 {
		t.Errorf("Expected assignee load released to 0, got %d", got)
	}
	if !h.notifier.received(reporter, EventIssueResolved) {
		t.Error("Expected the reporter to be notified of the resolution")
	}
}

func TestInspectionRejectionSendsBackToInProgress(t *testing.T) {
	assignee := primitive.NewObjectID()
	issue := &models.Issue{Status: models.PendingInspection, AssignedTo: &assignee}
	h := newMachineHarness(issue)
	h.updates.latest = &models.WorkUpdate{Issue: issue.ID, Type: models.UpdateCompleted, Verification: models.VerificationRejected}

	updated, err := h.machine.Apply(context.Background(), Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.PendingInspection,
		NewStatus:      models.InProgress,
	}, Actor{ID: primitive.NewObjectID(), Role: models.RoleInspector})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated.Status != models.InProgress {
		t.Errorf("Expected IN_PROGRESS after failed inspection, got %s", updated.Status)
	}
}

func TestStaleExpectedStatusConflicts(t *testing.T) {
	assignee := primitive.NewObjectID()
	issue := &models.Issue{Status: models.InProgress, AssignedTo: &assignee}
	h := newMachineHarness(issue)

	_, err := h.machine.Apply(context.Background(), Request{
		IssueID:        issue.ID,
		ExpectedStatus: models.Assigned,
		NewStatus:      models.InProgress,
	}, Actor{ID: assignee, Role: models.RoleWorker})
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Errorf("Expected ErrConcurrencyConflict on a stale expected status, got %v", err)
	}
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	assignee := primitive.NewObjectID()
	issue := &models.Issue{Status: models.Assigned, AssignedTo: &assignee}
	h := newMachineHarness(issue)
	actor := Actor{ID: assignee, Role: models.RoleWorker}

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.machine.Apply(context.Background(), Request{
				IssueID:        issue.ID,
				ExpectedStatus: models.Assigned,
				NewStatus:      models.InProgress,
			}, actor)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConcurrencyConflict):
			conflicts++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("Expected exactly one winning transition, got %d", wins)
	}
	if conflicts != attempts-1 {
		t.Errorf("Expected %d conflicts, got %d", attempts-1, conflicts)
	}
}

func TestListAvailable(t *testing.T) {
	assignee := primitive.NewObjectID()
	h := newMachineHarness()

	reported := &models.Issue{Status: models.Reported, ContractorEligible: true}
	got := h.machine.ListAvailable(context.Background(), reported, Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	want := map[models.IssueStatus]bool{models.Assigned: true, models.OpenForBidding: true, models.Rejected: true}
	if len(got) != len(want) {
		t.Fatalf("Expected %d admin options on REPORTED, got %v", len(want), got)
	}
	for _, status := range got {
		if !want[status] {
			t.Errorf("Unexpected option %s", status)
		}
	}

	assigned := &models.Issue{Status: models.Assigned, AssignedTo: &assignee}
	if got := h.machine.ListAvailable(context.Background(), assigned, Actor{ID: assignee, Role: models.RoleWorker}); len(got) != 1 || got[0] != models.InProgress {
		t.Errorf("Expected the assignee to see only IN_PROGRESS, got %v", got)
	}
	if got := h.machine.ListAvailable(context.Background(), assigned, Actor{ID: primitive.NewObjectID(), Role: models.RoleWorker}); len(got) != 0 {
		t.Errorf("Expected no options for a non-assignee, got %v", got)
	}
	if got := h.machine.ListAvailable(context.Background(), reported, Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen}); len(got) != 0 {
		t.Errorf("Expected no options for a citizen, got %v", got)
	}
}
