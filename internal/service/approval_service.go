package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/studioflow-io/be-orders/internal/errors"
	"github.com/studioflow-io/be-orders/internal/logger"
	"github.com/studioflow-io/be-orders/internal/notify"
	"github.com/studioflow-io/be-orders/internal/repository"
)

// DefaultApprovalTypes is the standard production set opened when an approval
// does not name explicit types.
var DefaultApprovalTypes = []repository.WorkflowType{
	repository.WorkflowTypeNamecard,
	repository.WorkflowTypeNametag,
	repository.WorkflowTypeContract,
	repository.WorkflowTypeEnvelope,
	repository.WorkflowTypeWebsite,
}

// SubmissionStore is the persistence surface the orchestrator needs.
type SubmissionStore interface {
	Create(ctx context.Context, sub *repository.Submission) error
	GetByID(ctx context.Context, id string) (*repository.Submission, error)
	Approve(ctx context.Context, submissionID, actor string, channelID *string,
		types []repository.WorkflowType) (*repository.ApprovalResult, error)
	Reject(ctx context.Context, id, actor, reason string) (*repository.Submission, error)
}

// ChannelProvisioner creates a chat-ops channel for a newly approved client.
type ChannelProvisioner interface {
	CreateChannel(ctx context.Context, clientName, contactInfo string) (string, error)
}

// ApprovalDispatcher receives committed approvals for best-effort delivery.
type ApprovalDispatcher interface {
	DispatchApproval(ev notify.ApprovalEvent)
}

// ApprovalService orchestrates submission approval: best-effort channel
// provisioning, the durable approval transaction, then best-effort
// notifications.
type ApprovalService struct {
	submissions SubmissionStore
	provisioner ChannelProvisioner
	dispatcher  ApprovalDispatcher
	timeout     time.Duration
	log         *logger.Logger
}

// NewApprovalService creates a new ApprovalService. timeout bounds the
// channel-provisioning call.
func NewApprovalService(
	submissions SubmissionStore,
	provisioner ChannelProvisioner,
	dispatcher ApprovalDispatcher,
	timeout time.Duration,
	log *logger.Logger,
) *ApprovalService {
	return &ApprovalService{
		submissions: submissions,
		provisioner: provisioner,
		dispatcher:  dispatcher,
		timeout:     timeout,
		log:         log,
	}
}

// ApprovalOutcome is the caller-facing result of one approval. ProvisionNote
// is informational only; a failed channel provisioning never fails the
// approval.
type ApprovalOutcome struct {
	Submission    *repository.Submission
	Workflows     []*repository.Workflow
	ChannelID     *string
	ProvisionNote string
	WorkflowCount int
}

// ApproveSubmission approves a submission and opens one workflow per
// requested type. Re-invoking after a partial notification failure is safe:
// the workflow upsert converges to the same set, and an already-APPROVED
// submission is rejected with a conflict.
func (s *ApprovalService) ApproveSubmission(
	ctx context.Context,
	submissionID, actor string,
	requestedTypes []repository.WorkflowType,
) (*ApprovalOutcome, error) {
	if actor == "" {
		return nil, errors.InvalidInput("actor", "actor is required")
	}
	if len(requestedTypes) == 0 {
		requestedTypes = DefaultApprovalTypes
	}
	for _, wt := range requestedTypes {
		if !wt.Valid() {
			return nil, errors.InvalidInput("types", fmt.Sprintf("unrecognized workflow type %q", wt))
		}
	}

	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == repository.SubmissionApproved {
		return nil, errors.Conflict("submission is already approved")
	}

	// Step 1: best-effort channel provisioning. Failure is logged and
	// swallowed; the approval proceeds with a nil channel id.
	outcome := &ApprovalOutcome{}
	channelID := s.provisionChannel(ctx, sub, &outcome.ProvisionNote)

	// Step 2: the durable transaction.
	result, err := s.submissions.Approve(ctx, submissionID, actor, channelID, requestedTypes)
	if err != nil {
		return nil, err
	}

	outcome.Submission = result.Submission
	outcome.Workflows = result.Workflows
	outcome.ChannelID = result.Submission.ChannelID
	outcome.WorkflowCount = len(result.Workflows)

	s.log.Info().
		Str("submission_id", submissionID).
		Str("owner_id", result.Submission.OwnerID).
		Str("actor", actor).
		Int("workflow_count", outcome.WorkflowCount).
		Msg("Submission approved")

	// Step 3: best-effort notifications, after commit.
	s.dispatcher.DispatchApproval(notify.ApprovalEvent{
		SubmissionID:  submissionID,
		OwnerID:       result.Submission.OwnerID,
		BrandName:     result.Submission.BrandName,
		ChannelID:     result.Submission.ChannelID,
		Actor:         actor,
		WorkflowCount: outcome.WorkflowCount,
	})

	return outcome, nil
}

// RejectSubmission marks a submission REJECTED with a reason. A rejected
// submission may later be re-approved; only APPROVED is guarded.
func (s *ApprovalService) RejectSubmission(ctx context.Context, submissionID, actor, reason string) (*repository.Submission, error) {
	if actor == "" {
		return nil, errors.InvalidInput("actor", "actor is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, errors.InvalidInput("reason", "rejection reason is required")
	}

	sub, err := s.submissions.Reject(ctx, submissionID, actor, reason)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("submission_id", submissionID).
		Str("actor", actor).
		Msg("Submission rejected")

	return sub, nil
}

// CreateSubmissionRequest registers a new client intake submission.
type CreateSubmissionRequest struct {
	OwnerID      string
	BrandName    string
	ContactName  *string
	ContactPhone *string
	ContactEmail *string
}

// CreateSubmission registers a PENDING submission awaiting review.
func (s *ApprovalService) CreateSubmission(ctx context.Context, req *CreateSubmissionRequest) (*repository.Submission, error) {
	if req.OwnerID == "" {
		return nil, errors.InvalidInput("owner_id", "owner_id is required")
	}
	if strings.TrimSpace(req.BrandName) == "" {
		return nil, errors.InvalidInput("brand_name", "brand_name is required")
	}

	sub := &repository.Submission{
		OwnerID:      req.OwnerID,
		BrandName:    req.BrandName,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("submission_id", sub.ID).
		Str("owner_id", sub.OwnerID).
		Msg("Submission created")

	return sub, nil
}

// GetSubmission returns one submission.
func (s *ApprovalService) GetSubmission(ctx context.Context, id string) (*repository.Submission, error) {
	return s.submissions.GetByID(ctx, id)
}

// provisionChannel attempts channel creation with a bounded timeout and
// returns nil on any failure.
func (s *ApprovalService) provisionChannel(ctx context.Context, sub *repository.Submission, note *string) *string {
	if s.provisioner == nil {
		*note = "channel provisioning disabled"
		return nil
	}

	provCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contact := contactSummary(sub)
	channelID, err := s.provisioner.CreateChannel(provCtx, sub.BrandName, contact)
	if err != nil {
		s.log.Warn().Err(err).
			Str("submission_id", sub.ID).
			Msg("Channel provisioning failed; approving without channel")
		*note = "channel provisioning failed"
		return nil
	}
	return &channelID
}

func contactSummary(sub *repository.Submission) string {
	parts := make([]string, 0, 3)
	if sub.ContactName != nil {
		parts = append(parts, *sub.ContactName)
	}
	if sub.ContactPhone != nil {
		parts = append(parts, *sub.ContactPhone)
	}
	if sub.ContactEmail != nil {
		parts = append(parts, *sub.ContactEmail)
	}
	return strings.Join(parts, " / ")
}
