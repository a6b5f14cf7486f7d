package repository

import (
	"context"

	"github.com/studioflow-io/be-orders/internal/database"
	"github.com/studioflow-io/be-orders/internal/errors"
)

// NotificationLogRepository appends and reads the append-only record of
// delivery attempts. Appends happen outside the primary transactions, after
// commit, so a failed append can never roll anything back.
type NotificationLogRepository struct {
	db *database.DB
}

// NewNotificationLogRepository creates a new NotificationLogRepository.
func NewNotificationLogRepository(db *database.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Append inserts one delivery-attempt record.
func (r *NotificationLogRepository) Append(ctx context.Context, entry *NotificationLog) error {
	query := `
		INSERT INTO notification_logs (client_id, notification_type, channel, status, error_message)
		VALUES ($1, $2, $3, $4::notification_status, $5)
		RETURNING id, sent_at
	`
	err := r.db.QueryRow(ctx, query,
		entry.ClientID,
		entry.NotificationType,
		entry.Channel,
		entry.Status,
		entry.ErrorMessage,
	).Scan(&entry.ID, &entry.SentAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append notification log")
	}
	return nil
}

// ListByClientID returns a client's delivery attempts, newest first.
func (r *NotificationLogRepository) ListByClientID(ctx context.Context, clientID string) ([]*NotificationLog, error) {
	query := `
		SELECT id, client_id, notification_type, channel, status, error_message, sent_at
		FROM notification_logs
		WHERE client_id = $1
		ORDER BY sent_at DESC
	`

	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list notification logs")
	}
	defer rows.Close()

	entries := make([]*NotificationLog, 0)
	for rows.Next() {
		entry := &NotificationLog{}
		err := rows.Scan(
			&entry.ID,
			&entry.ClientID,
			&entry.NotificationType,
			&entry.Channel,
			&entry.Status,
			&entry.ErrorMessage,
			&entry.SentAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan notification log")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
