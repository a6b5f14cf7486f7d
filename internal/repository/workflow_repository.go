package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/studioflow-io/be-orders/internal/database"
	"github.com/studioflow-io/be-orders/internal/errors"
)

const workflowColumns = `
	id, owner_id, workflow_type, status,
	design_url, final_url, courier, tracking_number,
	revision_note, admin_note, revision_count,
	submitted_at, design_started_at, design_uploaded_at,
	order_requested_at, order_approved_at, completed_at, shipped_at,
	created_at, updated_at`

// WorkflowRepository manages workflow rows and their audit log. Status
// transitions always go through ApplyTransition so the row update and the log
// append commit as one unit.
type WorkflowRepository struct {
	db *database.DB
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(db *database.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// GetByID retrieves a workflow by its primary key.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*Workflow, error) {
	query := `SELECT` + workflowColumns + ` FROM workflows WHERE id = $1`

	w, err := scanWorkflow(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get workflow")
	}
	return w, nil
}

// ListByOwner returns all workflows for one client, newest first.
func (r *WorkflowRepository) ListByOwner(ctx context.Context, ownerID string) ([]*Workflow, error) {
	query := `SELECT` + workflowColumns + ` FROM workflows WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list workflows")
	}
	defer rows.Close()

	workflows := make([]*Workflow, 0)
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow")
		}
		workflows = append(workflows, w)
	}
	return workflows, nil
}

// ApplyTransition runs a row-locked read-modify-write on one workflow. The
// apply callback mutates the loaded workflow and returns the audit entry to
// append (nil skips the log, used for field-only updates). The row update and
// the log insert commit together or not at all, and concurrent transitions on
// the same workflow serialize on the row lock, so the log's from-status is
// always the actually observed prior status.
func (r *WorkflowRepository) ApplyTransition(
	ctx context.Context,
	id string,
	apply func(w *Workflow) (*WorkflowLog, error),
) (*Workflow, *WorkflowLog, error) {
	var (
		workflow *Workflow
		logEntry *WorkflowLog
	)

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `SELECT` + workflowColumns + ` FROM workflows WHERE id = $1 FOR UPDATE`

		w, err := scanWorkflow(tx.QueryRow(ctx, query, id))
		if err == pgx.ErrNoRows {
			return errors.NotFound("workflow", id)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock workflow")
		}

		entry, err := apply(w)
		if err != nil {
			return err
		}

		update := `
			UPDATE workflows
			SET status             = $2::workflow_status,
			    design_url         = $3,
			    final_url          = $4,
			    courier            = $5,
			    tracking_number    = $6,
			    revision_note      = $7,
			    admin_note         = $8,
			    revision_count     = $9,
			    submitted_at       = $10,
			    design_started_at  = $11,
			    design_uploaded_at = $12,
			    order_requested_at = $13,
			    order_approved_at  = $14,
			    completed_at       = $15,
			    shipped_at         = $16,
			    updated_at         = NOW()
			WHERE id = $1
			RETURNING updated_at
		`

		err = tx.QueryRow(ctx, update,
			w.ID,
			w.Status,
			w.DesignURL,
			w.FinalURL,
			w.Courier,
			w.TrackingNumber,
			w.RevisionNote,
			w.AdminNote,
			w.RevisionCount,
			w.SubmittedAt,
			w.DesignStartedAt,
			w.DesignUploadedAt,
			w.OrderRequestedAt,
			w.OrderApprovedAt,
			w.CompletedAt,
			w.ShippedAt,
		).Scan(&w.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update workflow")
		}

		if entry != nil {
			entry.WorkflowID = w.ID
			if err := insertWorkflowLog(ctx, tx, entry); err != nil {
				return err
			}
		}

		workflow = w
		logEntry = entry
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return workflow, logEntry, nil
}

// Delete removes a workflow by explicit administrative action; its log rows
// cascade.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete workflow")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("workflow", id)
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*Workflow, error) {
	w := &Workflow{}
	err := row.Scan(
		&w.ID,
		&w.OwnerID,
		&w.Type,
		&w.Status,
		&w.DesignURL,
		&w.FinalURL,
		&w.Courier,
		&w.TrackingNumber,
		&w.RevisionNote,
		&w.AdminNote,
		&w.RevisionCount,
		&w.SubmittedAt,
		&w.DesignStartedAt,
		&w.DesignUploadedAt,
		&w.OrderRequestedAt,
		&w.OrderApprovedAt,
		&w.CompletedAt,
		&w.ShippedAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func insertWorkflowLog(ctx context.Context, tx pgx.Tx, entry *WorkflowLog) error {
	query := `
		INSERT INTO workflow_logs (workflow_id, from_status, to_status, changed_by, note)
		VALUES ($1, $2, $3::workflow_status, $4, $5)
		RETURNING id, created_at
	`
	err := tx.QueryRow(ctx, query,
		entry.WorkflowID,
		entry.FromStatus,
		entry.ToStatus,
		entry.ChangedBy,
		entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append workflow log")
	}
	return nil
}
