package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/studioflow-io/be-orders/internal/database"
	"github.com/studioflow-io/be-orders/internal/errors"
)

const contractColumns = `
	id, client_id, status, contract_period, monthly_fee,
	start_date, end_date, reviewed_by, reviewed_at, rejection_reason,
	created_at, updated_at`

// ContractRepository manages service contracts and their audit log, mirroring
// the workflow transition discipline: status change and log row commit
// together under a row lock.
type ContractRepository struct {
	db *database.DB
}

// NewContractRepository creates a new ContractRepository.
func NewContractRepository(db *database.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create inserts a PENDING contract with its creation log entry.
func (r *ContractRepository) Create(ctx context.Context, c *Contract, actor string) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO contracts (client_id, contract_period, monthly_fee)
			VALUES ($1, $2, $3)
			RETURNING id, status, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query, c.ClientID, c.ContractPeriod, c.MonthlyFee).
			Scan(&c.ID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create contract")
		}

		logQuery := `
			INSERT INTO contract_logs (contract_id, from_status, to_status, changed_by)
			VALUES ($1, NULL, $2::contract_status, $3)
		`
		if _, err := tx.Exec(ctx, logQuery, c.ID, c.Status, actor); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to append contract log")
		}
		return nil
	})
}

// GetByID retrieves a contract by its primary key.
func (r *ContractRepository) GetByID(ctx context.Context, id string) (*Contract, error) {
	query := `SELECT` + contractColumns + ` FROM contracts WHERE id = $1`

	c, err := scanContract(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("contract", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get contract")
	}
	return c, nil
}

// ListByClient returns a client's contracts, newest first.
func (r *ContractRepository) ListByClient(ctx context.Context, clientID string) ([]*Contract, error) {
	query := `SELECT` + contractColumns + ` FROM contracts WHERE client_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list contracts")
	}
	defer rows.Close()

	contracts := make([]*Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan contract")
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

// ApplyTransition runs a row-locked read-modify-write on one contract and
// appends the audit entry returned by the apply callback in the same
// transaction.
func (r *ContractRepository) ApplyTransition(
	ctx context.Context,
	id string,
	apply func(c *Contract) (*ContractLog, error),
) (*Contract, error) {
	var contract *Contract

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		lockQuery := `SELECT` + contractColumns + ` FROM contracts WHERE id = $1 FOR UPDATE`

		c, err := scanContract(tx.QueryRow(ctx, lockQuery, id))
		if err == pgx.ErrNoRows {
			return errors.NotFound("contract", id)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock contract")
		}

		entry, err := apply(c)
		if err != nil {
			return err
		}

		update := `
			UPDATE contracts
			SET status           = $2::contract_status,
			    start_date       = $3,
			    end_date         = $4,
			    reviewed_by      = $5,
			    reviewed_at      = $6,
			    rejection_reason = $7,
			    updated_at       = NOW()
			WHERE id = $1
			RETURNING updated_at
		`
		err = tx.QueryRow(ctx, update,
			c.ID,
			c.Status,
			c.StartDate,
			c.EndDate,
			c.ReviewedBy,
			c.ReviewedAt,
			c.RejectionReason,
		).Scan(&c.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update contract")
		}

		if entry != nil {
			logQuery := `
				INSERT INTO contract_logs (contract_id, from_status, to_status, changed_by, note)
				VALUES ($1, $2, $3::contract_status, $4, $5)
				RETURNING id, created_at
			`
			err = tx.QueryRow(ctx, logQuery,
				c.ID, entry.FromStatus, entry.ToStatus, entry.ChangedBy, entry.Note,
			).Scan(&entry.ID, &entry.CreatedAt)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to append contract log")
			}
		}

		contract = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// ListLogs returns the contract's audit trail, oldest-first.
func (r *ContractRepository) ListLogs(ctx context.Context, contractID string) ([]*ContractLog, error) {
	query := `
		SELECT id, contract_id, from_status, to_status, changed_by, note, created_at
		FROM contract_logs
		WHERE contract_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, contractID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list contract logs")
	}
	defer rows.Close()

	entries := make([]*ContractLog, 0)
	for rows.Next() {
		entry := &ContractLog{}
		err := rows.Scan(
			&entry.ID,
			&entry.ContractID,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.ChangedBy,
			&entry.Note,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan contract log")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func scanContract(row rowScanner) (*Contract, error) {
	c := &Contract{}
	err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.Status,
		&c.ContractPeriod,
		&c.MonthlyFee,
		&c.StartDate,
		&c.EndDate,
		&c.ReviewedBy,
		&c.ReviewedAt,
		&c.RejectionReason,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
