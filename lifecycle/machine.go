package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"urbanfix-be/models"
)

// Actor is the authenticated principal attempting a transition.
type Actor struct {
	ID   primitive.ObjectID
	Role models.UserRole
}

// Request is one attempted status transition. ExpectedStatus is the
// status the caller last observed; the write only applies if it still
// holds (optimistic concurrency).
type Request struct {
	IssueID        primitive.ObjectID
	ExpectedStatus models.IssueStatus
	NewStatus      models.IssueStatus
	AssignTo       *primitive.ObjectID
	Reason         string // rejection reason
	Notes          string // verification notes
}

// IssueRepository is the sole write path for issue status. Every status
// mutation goes through CompareAndTransition; there are no direct field
// writes that bypass the machine.
type IssueRepository interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Create(ctx context.Context, issue *models.Issue) error
	CompareAndTransition(ctx context.Context, id primitive.ObjectID, expected, next models.IssueStatus, patch models.IssuePatch) (*models.Issue, error)
}

// WorkUpdateRepository exposes the machine's view of field progress.
type WorkUpdateRepository interface {
	// LatestCompleted returns the most recent COMPLETED work update for
	// the issue, or nil when none exists.
	LatestCompleted(ctx context.Context, issueID primitive.ObjectID) (*models.WorkUpdate, error)
}

// CapacityTracker tracks how many issues each worker currently carries.
type CapacityTracker interface {
	IncrementLoad(ctx context.Context, workerID primitive.ObjectID) error
	DecrementLoad(ctx context.Context, workerID primitive.ObjectID) error
}

// Notifier dispatches lifecycle events to users. Fire and forget:
// failures are logged, never retried inline.
type Notifier interface {
	Notify(ctx context.Context, userID primitive.ObjectID, event string, payload map[string]any)
}

// Notification event types emitted by the machine and the bid workflow.
const (
	EventIssueResolved = "ISSUE_RESOLVED"
	EventIssueRejected = "ISSUE_REJECTED"
	EventBidAccepted   = "BID_ACCEPTED"
	EventBidRejected   = "BID_REJECTED"
)

// rule is one legal (from, to) edge: which roles may drive it and what
// must hold on the issue before it applies.
type rule struct {
	roles []models.UserRole
	check func(ctx context.Context, m *Machine, issue *models.Issue, req Request, actor Actor) error
}

func (r rule) allows(role models.UserRole) bool {
	for _, allowed := range r.roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// transitions is the single source of truth for which (role, fromStatus)
// pairs are legal. UI role conditionals merely reflect ListAvailable.
var transitions = map[models.IssueStatus]map[models.IssueStatus]rule{
	models.Reported: {
		models.Assigned: {
			roles: []models.UserRole{models.RoleAdmin},
			check: needAssignee,
		},
		models.OpenForBidding: {
			roles: []models.UserRole{models.RoleAdmin},
			check: needContractorEligible,
		},
		models.Rejected: {
			roles: []models.UserRole{models.RoleAdmin},
			check: needReason,
		},
	},
	models.OpenForBidding: {
		models.Assigned: {
			roles: []models.UserRole{models.RoleAdmin},
			check: needAssignee,
		},
	},
	models.Assigned: {
		models.InProgress: {
			roles: []models.UserRole{models.RoleWorker, models.RoleContractor},
			check: actorIsAssignee,
		},
	},
	models.InProgress: {
		models.PendingInspection: {
			roles: []models.UserRole{models.RoleWorker, models.RoleContractor},
			check: needTerminalWorkUpdate,
		},
	},
	models.PendingInspection: {
		models.Resolved: {
			roles: []models.UserRole{models.RoleInspector},
			check: needVerification(models.VerificationApproved),
		},
		models.InProgress: {
			roles: []models.UserRole{models.RoleInspector},
			check: needVerification(models.VerificationRejected),
		},
	},
}

func needAssignee(_ context.Context, _ *Machine, _ *models.Issue, req Request, _ Actor) error {
	if req.AssignTo == nil || req.AssignTo.IsZero() {
		return fmt.Errorf("%w: an assignee is required", ErrPreconditionFailed)
	}
	return nil
}

func needContractorEligible(_ context.Context, _ *Machine, issue *models.Issue, _ Request, _ Actor) error {
	if !issue.ContractorEligible {
		return fmt.Errorf("%w: issue is not contractor-eligible", ErrPreconditionFailed)
	}
	return nil
}

func needReason(_ context.Context, _ *Machine, _ *models.Issue, req Request, _ Actor) error {
	if req.Reason == "" {
		return fmt.Errorf("%w: a rejection reason is required", ErrPreconditionFailed)
	}
	return nil
}

func actorIsAssignee(_ context.Context, _ *Machine, issue *models.Issue, _ Request, actor Actor) error {
	if issue.AssignedTo == nil || *issue.AssignedTo != actor.ID {
		return fmt.Errorf("%w: issue is not assigned to this user", ErrForbidden)
	}
	return nil
}

func needTerminalWorkUpdate(ctx context.Context, m *Machine, issue *models.Issue, req Request, actor Actor) error {
	if err := actorIsAssignee(ctx, m, issue, req, actor); err != nil {
		return err
	}
	update, err := m.workUpdates.LatestCompleted(ctx, issue.ID)
	if err != nil {
		return err
	}
	if update == nil {
		return fmt.Errorf("%w: no COMPLETED work update has been submitted", ErrPreconditionFailed)
	}
	return nil
}

func needVerification(want models.VerificationStatus) func(context.Context, *Machine, *models.Issue, Request, Actor) error {
	return func(ctx context.Context, m *Machine, issue *models.Issue, _ Request, _ Actor) error {
		update, err := m.workUpdates.LatestCompleted(ctx, issue.ID)
		if err != nil {
			return err
		}
		if update == nil || update.Verification != want {
			return fmt.Errorf("%w: the completed work update is not %s", ErrPreconditionFailed, want)
		}
		return nil
	}
}

// Machine validates and applies issue status transitions.
type Machine struct {
	issues      IssueRepository
	workUpdates WorkUpdateRepository
	capacity    CapacityTracker
	notifier    Notifier
}

func NewMachine(issues IssueRepository, workUpdates WorkUpdateRepository, capacity CapacityTracker, notifier Notifier) *Machine {
	return &Machine{issues: issues, workUpdates: workUpdates, capacity: capacity, notifier: notifier}
}

// Apply validates the request against the transition table and commits it
// with a compare-and-set on the expected status. Exactly one of two
// racing requests on the same issue can succeed; the loser gets
// ErrConcurrencyConflict.
func (m *Machine) Apply(ctx context.Context, req Request, actor Actor) (*models.Issue, error) {
	r, ok := transitions[req.ExpectedStatus][req.NewStatus]
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.ExpectedStatus, req.NewStatus)
	}
	if !r.allows(actor.Role) {
		return nil, fmt.Errorf("%w: role %s may not apply %s -> %s", ErrForbidden, actor.Role, req.ExpectedStatus, req.NewStatus)
	}

	issue, err := m.issues.Get(ctx, req.IssueID)
	if err != nil {
		return nil, err
	}
	if issue.Status != req.ExpectedStatus {
		return nil, fmt.Errorf("%w: issue is %s, expected %s", ErrConcurrencyConflict, issue.Status, req.ExpectedStatus)
	}
	if err := r.check(ctx, m, issue, req, actor); err != nil {
		return nil, err
	}

	patch := models.IssuePatch{}
	switch req.NewStatus {
	case models.Assigned:
		patch.AssignedTo = req.AssignTo
	case models.Rejected:
		patch.RejectionReason = &req.Reason
	case models.Resolved:
		patch.VerificationNotes = &req.Notes
	}

	updated, err := m.issues.CompareAndTransition(ctx, req.IssueID, req.ExpectedStatus, req.NewStatus, patch)
	if err != nil {
		return nil, err
	}

	m.applySideEffects(ctx, updated)
	return updated, nil
}

// applySideEffects runs the post-commit effects for the new status.
// Effect failures never roll back the transition; they are logged.
func (m *Machine) applySideEffects(ctx context.Context, issue *models.Issue) {
	switch issue.Status {
	case models.Assigned:
		if issue.AssignedTo != nil {
			if err := m.capacity.IncrementLoad(ctx, *issue.AssignedTo); err != nil {
				slog.Error("lifecycle: failed to increment worker load", "worker", issue.AssignedTo.Hex(), "error", err)
			}
		}
	case models.Resolved:
		m.releaseAssignee(ctx, issue)
		m.notifier.Notify(ctx, issue.ReportedBy, EventIssueResolved, map[string]any{
			"issueId": issue.ID.Hex(),
			"title":   issue.Title,
		})
	case models.Rejected:
		m.releaseAssignee(ctx, issue)
		m.notifier.Notify(ctx, issue.ReportedBy, EventIssueRejected, map[string]any{
			"issueId": issue.ID.Hex(),
			"title":   issue.Title,
			"reason":  issue.RejectionReason,
		})
	}
}

func (m *Machine) releaseAssignee(ctx context.Context, issue *models.Issue) {
	if issue.AssignedTo == nil {
		return
	}
	if err := m.capacity.DecrementLoad(ctx, *issue.AssignedTo); err != nil {
		slog.Error("lifecycle: failed to decrement worker load", "worker", issue.AssignedTo.Hex(), "error", err)
	}
}

// ListAvailable returns the target statuses the actor could move the
// issue to right now. Preconditions needing request fields (assignee,
// reason) are not evaluated here; they are supplied at apply time.
func (m *Machine) ListAvailable(ctx context.Context, issue *models.Issue, actor Actor) []models.IssueStatus {
	var out []models.IssueStatus
	for next, r := range transitions[issue.Status] {
		if !r.allows(actor.Role) {
			continue
		}
		switch issue.Status {
		case models.Assigned, models.InProgress:
			if issue.AssignedTo == nil || *issue.AssignedTo != actor.ID {
				continue
			}
		}
		if next == models.OpenForBidding && !issue.ContractorEligible {
			continue
		}
		out = append(out, next)
	}
	return out
}
