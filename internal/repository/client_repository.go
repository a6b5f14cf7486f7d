package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studioflow-io/be-orders/internal/database"
	"github.com/studioflow-io/be-orders/internal/errors"
)

const clientColumns = `
	id, name, email, messenger_id, messenger_enabled,
	service_period_start, service_period_end, is_active,
	api_token, token_expires_at,
	created_at, updated_at`

// ClientRepository manages client rows, service-period extensions and the
// payment ledger. Every extension pairs the period update with exactly one
// payment history row in the same transaction.
type ClientRepository struct {
	db *database.DB
}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository(db *database.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create inserts a client.
func (r *ClientRepository) Create(ctx context.Context, c *Client) error {
	query := `
		INSERT INTO clients (name, email, messenger_id, messenger_enabled, api_token, token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_active, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		c.Name,
		c.Email,
		c.MessengerID,
		c.MessengerEnabled,
		c.APIToken,
		c.TokenExpiresAt,
	).Scan(&c.ID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create client")
	}
	return nil
}

// GetByID retrieves a client by its primary key.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE id = $1`

	c, err := scanClient(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("client", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get client")
	}
	return c, nil
}

// ExtendService updates the client's service period and records the paired
// payment row in one transaction. The client row is locked first and the new
// end date is computed from the locked row's current end via the compute
// callback, so concurrent extensions for the same client serialize and each
// still records its own ledger row.
func (r *ClientRepository) ExtendService(
	ctx context.Context,
	clientID string,
	compute func(currentEnd *time.Time) time.Time,
	payment *PaymentHistory,
) (*Client, error) {
	var client *Client

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		lockQuery := `SELECT` + clientColumns + ` FROM clients WHERE id = $1 FOR UPDATE`

		c, err := scanClient(tx.QueryRow(ctx, lockQuery, clientID))
		if err == pgx.ErrNoRows {
			return errors.NotFound("client", clientID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock client")
		}

		newEnd := compute(c.ServicePeriodEnd)

		update := `
			UPDATE clients
			SET service_period_end   = $2,
			    service_period_start = COALESCE(service_period_start, $3),
			    is_active            = TRUE,
			    updated_at           = NOW()
			WHERE id = $1
			RETURNING service_period_start, service_period_end, is_active, updated_at
		`
		err = tx.QueryRow(ctx, update, clientID, newEnd, payment.PaymentDate).Scan(
			&c.ServicePeriodStart, &c.ServicePeriodEnd, &c.IsActive, &c.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to extend service period")
		}

		insert := `
			INSERT INTO payment_history (client_id, payment_date, amount, payment_type, service_months, memo)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`
		err = tx.QueryRow(ctx, insert,
			clientID,
			payment.PaymentDate,
			payment.Amount,
			payment.PaymentType,
			payment.ServiceMonths,
			payment.Memo,
		).Scan(&payment.ID, &payment.CreatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to record payment history")
		}
		payment.ClientID = clientID

		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ListExpiring returns active clients whose service period ends within the
// horizon, soonest-expiring first. Clients without an end date are excluded.
func (r *ClientRepository) ListExpiring(ctx context.Context, horizonDays int) ([]*Client, error) {
	query := `SELECT` + clientColumns + `
		FROM clients
		WHERE is_active = TRUE
		  AND service_period_end IS NOT NULL
		  AND service_period_end <= NOW() + ($1 || ' days')::interval
		ORDER BY service_period_end ASC
	`

	rows, err := r.db.Query(ctx, query, horizonDays)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list expiring clients")
	}
	defer rows.Close()

	clients := make([]*Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan client")
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// ListPayments returns the payment ledger for one client, newest first.
func (r *ClientRepository) ListPayments(ctx context.Context, clientID string) ([]*PaymentHistory, error) {
	query := `
		SELECT id, client_id, payment_date, amount, payment_type, service_months, memo, created_at
		FROM payment_history
		WHERE client_id = $1
		ORDER BY payment_date DESC, created_at DESC
	`

	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list payment history")
	}
	defer rows.Close()

	payments := make([]*PaymentHistory, 0)
	for rows.Next() {
		p := &PaymentHistory{}
		err := rows.Scan(
			&p.ID,
			&p.ClientID,
			&p.PaymentDate,
			&p.Amount,
			&p.PaymentType,
			&p.ServiceMonths,
			&p.Memo,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan payment")
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// NotificationTargets resolves where a client can be reached: messenger
// details from the client row, chat-ops channel from the latest submission.
func (r *ClientRepository) NotificationTargets(ctx context.Context, clientID string) (*NotificationTargets, error) {
	query := `
		SELECT c.id, c.name, c.email, c.messenger_id, c.messenger_enabled,
		       (SELECT s.channel_id
		        FROM submissions s
		        WHERE s.owner_id = c.id AND s.channel_id IS NOT NULL
		        ORDER BY s.created_at DESC
		        LIMIT 1)
		FROM clients c
		WHERE c.id = $1
	`

	t := &NotificationTargets{}
	err := r.db.QueryRow(ctx, query, clientID).Scan(
		&t.ClientID,
		&t.ClientName,
		&t.Email,
		&t.MessengerID,
		&t.MessengerEnabled,
		&t.ChannelID,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("client", clientID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to resolve notification targets")
	}
	return t, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func scanClient(row rowScanner) (*Client, error) {
	c := &Client{}
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.MessengerID,
		&c.MessengerEnabled,
		&c.ServicePeriodStart,
		&c.ServicePeriodEnd,
		&c.IsActive,
		&c.APIToken,
		&c.TokenExpiresAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
