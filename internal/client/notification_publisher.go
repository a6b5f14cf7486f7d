package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes order lifecycle events to NATS for
// consumption by downstream notification services.
//
// Subject convention: notifications.orders.<event_type>
// Event types: submission_approved, submission_rejected, workflow_transition,
//              service_extended, contract_sent
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so event delivery failures never interrupt the primary
// operations.
type NotificationPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// OrderEvent is the JSON schema published to NATS.
type OrderEvent struct {
	EventType    string         `json:"event_type"`
	ClientID     string         `json:"client_id"`
	ActorID      string         `json:"actor_id"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection disables publishing.
func NewNotificationPublisher(conn *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{conn: conn, log: log}
}

// PublishOrderEvent publishes one lifecycle event.
// Subject: notifications.orders.<eventType>
func (p *NotificationPublisher) PublishOrderEvent(ctx context.Context, event *OrderEvent) {
	if p.conn == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", event.EventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.orders.%s", event.EventType)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("resource_id", event.ResourceID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("resource_id", event.ResourceID).
		Msg("notification: event published")
}
