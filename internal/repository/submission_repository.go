package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/studioflow-io/be-orders/internal/database"
	"github.com/studioflow-io/be-orders/internal/errors"
)

const submissionColumns = `
	id, owner_id, status, brand_name,
	contact_name, contact_phone, contact_email,
	rejection_reason, reviewed_by, reviewed_at, channel_id,
	created_at, updated_at`

// ApprovalResult is everything the approval transaction produced.
type ApprovalResult struct {
	Submission *Submission
	Workflows  []*Workflow
	Logs       []*WorkflowLog
}

// SubmissionRepository manages client intake records. Approval is a single
// transaction covering the submission update, the per-type workflow upserts
// and their creation log entries.
type SubmissionRepository struct {
	db *database.DB
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(db *database.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a PENDING submission.
func (r *SubmissionRepository) Create(ctx context.Context, sub *Submission) error {
	query := `
		INSERT INTO submissions (owner_id, brand_name, contact_name, contact_phone, contact_email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, status, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		sub.OwnerID,
		sub.BrandName,
		sub.ContactName,
		sub.ContactPhone,
		sub.ContactEmail,
	).Scan(&sub.ID, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create submission")
	}
	return nil
}

// GetByID retrieves a submission by its primary key.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*Submission, error) {
	query := `SELECT` + submissionColumns + ` FROM submissions WHERE id = $1`

	sub, err := scanSubmission(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("submission", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get submission")
	}
	return sub, nil
}

// Approve marks the submission APPROVED and upserts one workflow per
// requested type, all in one transaction. Workflows are keyed by the
// (owner_id, workflow_type) uniqueness constraint: an absent pair is created
// in SUBMITTED, an existing pair is reset to SUBMITTED with a refreshed
// submitted_at. One workflow log row is appended per affected workflow, with
// a nil from-status for newly created rows. Re-running with the same types
// converges to the same workflow set.
func (r *SubmissionRepository) Approve(
	ctx context.Context,
	submissionID, actor string,
	channelID *string,
	types []WorkflowType,
) (*ApprovalResult, error) {
	result := &ApprovalResult{}

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		lockQuery := `SELECT` + submissionColumns + ` FROM submissions WHERE id = $1 FOR UPDATE`

		sub, err := scanSubmission(tx.QueryRow(ctx, lockQuery, submissionID))
		if err == pgx.ErrNoRows {
			return errors.NotFound("submission", submissionID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock submission")
		}
		if sub.Status == SubmissionApproved {
			return errors.Conflict("submission is already approved")
		}

		update := `
			UPDATE submissions
			SET status           = 'APPROVED'::submission_status,
			    reviewed_by      = $2,
			    reviewed_at      = NOW(),
			    rejection_reason = NULL,
			    channel_id       = $3,
			    updated_at       = NOW()
			WHERE id = $1
			RETURNING status, reviewed_by, reviewed_at, rejection_reason, channel_id, updated_at
		`
		err = tx.QueryRow(ctx, update, submissionID, actor, channelID).Scan(
			&sub.Status, &sub.ReviewedBy, &sub.ReviewedAt,
			&sub.RejectionReason, &sub.ChannelID, &sub.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to approve submission")
		}

		for _, wt := range types {
			w, entry, err := upsertWorkflowForApproval(ctx, tx, sub.OwnerID, wt, actor)
			if err != nil {
				return err
			}
			result.Workflows = append(result.Workflows, w)
			result.Logs = append(result.Logs, entry)
		}

		result.Submission = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reject marks a submission REJECTED with a reason. Approved submissions
// cannot be rejected.
func (r *SubmissionRepository) Reject(ctx context.Context, id, actor, reason string) (*Submission, error) {
	query := `
		UPDATE submissions
		SET status           = 'REJECTED'::submission_status,
		    rejection_reason = $3,
		    reviewed_by      = $2,
		    reviewed_at      = NOW(),
		    updated_at       = NOW()
		WHERE id = $1 AND status <> 'APPROVED'
		RETURNING` + submissionColumns + `
	`

	sub, err := scanSubmission(r.db.QueryRow(ctx, query, id, actor, reason))
	if err == pgx.ErrNoRows {
		// Either missing or already approved; disambiguate for the caller.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, errors.Conflict("approved submission cannot be rejected")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to reject submission")
	}
	return sub, nil
}

// upsertWorkflowForApproval creates or resets the workflow for one (owner,
// type) pair and returns it with its log entry. Runs inside the approval
// transaction.
func upsertWorkflowForApproval(
	ctx context.Context,
	tx pgx.Tx,
	ownerID string,
	wt WorkflowType,
	actor string,
) (*Workflow, *WorkflowLog, error) {
	// Read the prior status under lock; racing approvals for the same owner
	// serialize here.
	var prior *WorkflowStatus
	existing := `SELECT status FROM workflows WHERE owner_id = $1 AND workflow_type = $2 FOR UPDATE`
	var status WorkflowStatus
	err := tx.QueryRow(ctx, existing, ownerID, wt).Scan(&status)
	switch err {
	case nil:
		prior = &status
	case pgx.ErrNoRows:
		// created below
	default:
		return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to check existing workflow")
	}

	upsert := `
		INSERT INTO workflows (owner_id, workflow_type, status, submitted_at)
		VALUES ($1, $2, 'SUBMITTED'::workflow_status, NOW())
		ON CONFLICT (owner_id, workflow_type)
		DO UPDATE SET status       = 'SUBMITTED'::workflow_status,
		              submitted_at = NOW(),
		              updated_at   = NOW()
		RETURNING` + workflowColumns + `
	`
	w, err := scanWorkflow(tx.QueryRow(ctx, upsert, ownerID, wt))
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to upsert workflow")
	}

	note := "auto-created by approval"
	if prior != nil {
		note = "reset to SUBMITTED by re-approval"
	}
	entry := &WorkflowLog{
		WorkflowID: w.ID,
		FromStatus: prior,
		ToStatus:   StatusSubmitted,
		ChangedBy:  actor,
		Note:       &note,
	}
	if err := insertWorkflowLog(ctx, tx, entry); err != nil {
		return nil, nil, err
	}
	return w, entry, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func scanSubmission(row rowScanner) (*Submission, error) {
	sub := &Submission{}
	err := row.Scan(
		&sub.ID,
		&sub.OwnerID,
		&sub.Status,
		&sub.BrandName,
		&sub.ContactName,
		&sub.ContactPhone,
		&sub.ContactEmail,
		&sub.RejectionReason,
		&sub.ReviewedBy,
		&sub.ReviewedAt,
		&sub.ChannelID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
