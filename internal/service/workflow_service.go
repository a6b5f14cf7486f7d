package service

import (
	"context"
	"time"

	"github.com/studioflow-io/be-orders/internal/errors"
	"github.com/studioflow-io/be-orders/internal/logger"
	"github.com/studioflow-io/be-orders/internal/notify"
	"github.com/studioflow-io/be-orders/internal/repository"
)

// WorkflowStore is the persistence surface the state machine needs.
type WorkflowStore interface {
	GetByID(ctx context.Context, id string) (*repository.Workflow, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*repository.Workflow, error)
	ApplyTransition(ctx context.Context, id string,
		apply func(w *repository.Workflow) (*repository.WorkflowLog, error),
	) (*repository.Workflow, *repository.WorkflowLog, error)
	Delete(ctx context.Context, id string) error
}

// WorkflowLogStore reads the audit trail.
type WorkflowLogStore interface {
	ListByWorkflowID(ctx context.Context, workflowID string) ([]*repository.WorkflowLog, error)
}

// TransitionDispatcher receives committed transitions for best-effort
// delivery.
type TransitionDispatcher interface {
	DispatchTransition(ev notify.TransitionEvent)
}

// WorkflowService is the workflow state machine. All workflow mutation goes
// through Transition.
type WorkflowService struct {
	workflows  WorkflowStore
	logs       WorkflowLogStore
	dispatcher TransitionDispatcher
	log        *logger.Logger

	now func() time.Time
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(
	workflows WorkflowStore,
	logs WorkflowLogStore,
	dispatcher TransitionDispatcher,
	log *logger.Logger,
) *WorkflowService {
	return &WorkflowService{
		workflows:  workflows,
		logs:       logs,
		dispatcher: dispatcher,
		log:        log,
		now:        time.Now,
	}
}

// TransitionRequest carries one status-transition call.
type TransitionRequest struct {
	WorkflowID   string
	TargetStatus repository.WorkflowStatus
	Actor        string
	Fields       TransitionFields
}

// Transition validates and applies a status transition. The workflow update
// and its audit log row commit as one unit; on an actual status change the
// committed transition is then handed to the dispatcher for best-effort
// notification. Matching the current status is a no-op on the status field,
// but supplied fields still apply.
func (s *WorkflowService) Transition(ctx context.Context, req *TransitionRequest) (*repository.Workflow, error) {
	if !req.TargetStatus.Valid() {
		return nil, errors.InvalidInput("status", "unrecognized workflow status")
	}
	if req.Actor == "" {
		return nil, errors.InvalidInput("actor", "actor is required")
	}
	if err := req.Fields.Validate(); err != nil {
		return nil, err
	}

	var event *notify.TransitionEvent

	workflow, _, err := s.workflows.ApplyTransition(ctx, req.WorkflowID,
		func(w *repository.Workflow) (*repository.WorkflowLog, error) {
			prior := w.Status

			req.Fields.applyTo(w)

			if req.TargetStatus == prior {
				// Field-only update; no log row, no notification.
				return nil, nil
			}
			if prior.Terminal() && req.TargetStatus != prior {
				return nil, errors.Conflict("workflow is in a terminal state")
			}

			w.Status = req.TargetStatus
			stampStatusTimestamp(w, req.TargetStatus, s.now())

			from := prior
			event = &notify.TransitionEvent{
				WorkflowID: w.ID,
				OwnerID:    w.OwnerID,
				Type:       w.Type,
				From:       prior,
				To:         req.TargetStatus,
				Actor:      req.Actor,
				DesignURL:  w.DesignURL,
			}

			return &repository.WorkflowLog{
				FromStatus: &from,
				ToStatus:   req.TargetStatus,
				ChangedBy:  req.Actor,
				Note:       req.Fields.AdminNote,
			}, nil
		})
	if err != nil {
		return nil, err
	}

	if event != nil {
		s.log.Info().
			Str("workflow_id", workflow.ID).
			Str("type", string(workflow.Type)).
			Str("from", string(event.From)).
			Str("to", string(event.To)).
			Str("actor", req.Actor).
			Msg("Workflow transition applied")

		// Committed; delivery failures can no longer affect the result.
		s.dispatcher.DispatchTransition(*event)
	}

	return workflow, nil
}

// GetWorkflow returns one workflow.
func (s *WorkflowService) GetWorkflow(ctx context.Context, id string) (*repository.Workflow, error) {
	return s.workflows.GetByID(ctx, id)
}

// ListByOwner returns all workflows for one client.
func (s *WorkflowService) ListByOwner(ctx context.Context, ownerID string) ([]*repository.Workflow, error) {
	return s.workflows.ListByOwner(ctx, ownerID)
}

// DeleteWorkflow removes a workflow and its logs. Admin cleanup only; normal
// flow ends workflows through terminal statuses.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, id string) error {
	if err := s.workflows.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("workflow_id", id).Msg("Workflow deleted")
	return nil
}

// History returns the canonical audit trail of one workflow, oldest first.
func (s *WorkflowService) History(ctx context.Context, workflowID string) ([]*repository.WorkflowLog, error) {
	if _, err := s.workflows.GetByID(ctx, workflowID); err != nil {
		return nil, err
	}
	return s.logs.ListByWorkflowID(ctx, workflowID)
}
