package repository

import (
	"context"

	"github.com/studioflow-io/be-orders/internal/database"
	"github.com/studioflow-io/be-orders/internal/errors"
)

// WorkflowLogRepository reads the append-only workflow audit trail. Appends
// happen inside the transition and approval transactions; this repository only
// exposes ordered reads.
type WorkflowLogRepository struct {
	db *database.DB
}

// NewWorkflowLogRepository creates a new WorkflowLogRepository.
func NewWorkflowLogRepository(db *database.DB) *WorkflowLogRepository {
	return &WorkflowLogRepository{db: db}
}

// ListByWorkflowID returns the canonical history of one workflow,
// oldest-first.
func (r *WorkflowLogRepository) ListByWorkflowID(ctx context.Context, workflowID string) ([]*WorkflowLog, error) {
	query := `
		SELECT id, workflow_id, from_status, to_status, changed_by, note, created_at
		FROM workflow_logs
		WHERE workflow_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, workflowID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list workflow logs")
	}
	defer rows.Close()

	entries := make([]*WorkflowLog, 0)
	for rows.Next() {
		entry := &WorkflowLog{}
		err := rows.Scan(
			&entry.ID,
			&entry.WorkflowID,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.ChangedBy,
			&entry.Note,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow log")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
