// Package notify delivers best-effort notifications after the primary
// transaction has committed. Every delivery attempt is recorded, channels are
// attempted independently, and no failure here ever reaches the caller of the
// primary operation.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/studioflow-io/be-orders/internal/client"
	"github.com/studioflow-io/be-orders/internal/logger"
	"github.com/studioflow-io/be-orders/internal/repository"
)

// Channel names as recorded in the notification log.
const (
	ChannelChatOps   = "chatops"
	ChannelMessenger = "messenger"
	ChannelEmail     = "email"
)

// LogStore records delivery attempts.
type LogStore interface {
	Append(ctx context.Context, entry *repository.NotificationLog) error
}

// TargetResolver looks up where a client can be reached.
type TargetResolver interface {
	NotificationTargets(ctx context.Context, clientID string) (*repository.NotificationTargets, error)
}

// EventPublisher publishes lifecycle events to the notification stream.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event *client.OrderEvent)
}

// TransitionEvent describes one committed workflow status change.
type TransitionEvent struct {
	WorkflowID string
	OwnerID    string
	Type       repository.WorkflowType
	From       repository.WorkflowStatus
	To         repository.WorkflowStatus
	Actor      string
	DesignURL  *string
}

// ApprovalEvent describes one committed submission approval.
type ApprovalEvent struct {
	SubmissionID  string
	OwnerID       string
	BrandName     string
	ChannelID     *string
	Actor         string
	WorkflowCount int
}

// RenewalEvent describes one committed service-period extension.
type RenewalEvent struct {
	ClientID      string
	ServiceMonths int
	NewEnd        time.Time
	Actor         string
}

// Dispatcher fans an event out to the channels the subject has opted into.
// Work runs on tracked goroutines with their own bounded-timeout contexts,
// detached from the request that triggered them.
type Dispatcher struct {
	channel   client.ChannelClientInterface
	messenger client.MessengerClientInterface
	logs      LogStore
	targets   TargetResolver
	events    EventPublisher
	timeout   time.Duration
	log       *logger.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. events may be nil when the event stream
// is disabled.
func NewDispatcher(
	channel client.ChannelClientInterface,
	messenger client.MessengerClientInterface,
	logs LogStore,
	targets TargetResolver,
	events EventPublisher,
	timeout time.Duration,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		channel:   channel,
		messenger: messenger,
		logs:      logs,
		targets:   targets,
		events:    events,
		timeout:   timeout,
		log:       log,
	}
}

// Close waits for in-flight deliveries to finish. Used on shutdown.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

// submit runs fn on a tracked goroutine with panic isolation.
func (d *Dispatcher) submit(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				d.log.Error().Interface("panic", rec).Msg("notify: panic in dispatch task")
			}
		}()
		fn()
	}()
}

// DispatchTransition notifies a workflow status change.
func (d *Dispatcher) DispatchTransition(ev TransitionEvent) {
	d.submit(func() {
		targets := d.resolve(ev.OwnerID)

		notifType := fmt.Sprintf("workflow_%s", ev.To)

		if targets == nil || targets.ChannelID == nil {
			d.record(ev.OwnerID, notifType, ChannelChatOps, repository.NotificationSkipped, "no chat-ops channel configured")
		} else {
			d.attempt(ev.OwnerID, notifType, ChannelChatOps, func(ctx context.Context) error {
				from := ""
				if ev.From != "" {
					from = statusLabel(ev.From)
				}
				if err := d.channel.PostTransitionLog(ctx, *targets.ChannelID, from, statusLabel(ev.To), ev.Actor); err != nil {
					return err
				}
				if ev.To == repository.StatusDesignUploaded && ev.DesignURL != nil {
					return d.channel.PostUpload(ctx, *targets.ChannelID, typeLabel(ev.Type), *ev.DesignURL)
				}
				return nil
			})
		}

		if targets == nil || targets.MessengerID == nil || !targets.MessengerEnabled {
			d.record(ev.OwnerID, notifType, ChannelMessenger, repository.NotificationSkipped, "messenger not configured or opted out")
		} else {
			d.attempt(ev.OwnerID, notifType, ChannelMessenger, func(ctx context.Context) error {
				text := fmt.Sprintf("[%s] Your %s order is now: %s",
					targets.ClientName, typeLabel(ev.Type), statusLabel(ev.To))
				return d.messenger.SendMessage(ctx, *targets.MessengerID, text)
			})
		}

		d.publish(&client.OrderEvent{
			EventType:    "workflow_transition",
			ClientID:     ev.OwnerID,
			ActorID:      ev.Actor,
			ResourceType: "workflow",
			ResourceID:   ev.WorkflowID,
			Payload: map[string]any{
				"type": string(ev.Type),
				"from": string(ev.From),
				"to":   string(ev.To),
			},
		})
	})
}

// DispatchApproval notifies a submission approval: a structured record in the
// provisioned channel plus a messenger alert to the owner.
func (d *Dispatcher) DispatchApproval(ev ApprovalEvent) {
	d.submit(func() {
		targets := d.resolve(ev.OwnerID)

		const notifType = "submission_approved"

		if ev.ChannelID == nil {
			d.record(ev.OwnerID, notifType, ChannelChatOps, repository.NotificationSkipped, "no chat-ops channel provisioned")
		} else {
			d.attempt(ev.OwnerID, notifType, ChannelChatOps, func(ctx context.Context) error {
				return d.channel.PostRecord(ctx, *ev.ChannelID, map[string]string{
					"Brand":     ev.BrandName,
					"Approved":  ev.Actor,
					"Workflows": fmt.Sprintf("%d", ev.WorkflowCount),
				})
			})
		}

		if targets == nil || targets.MessengerID == nil || !targets.MessengerEnabled {
			d.record(ev.OwnerID, notifType, ChannelMessenger, repository.NotificationSkipped, "messenger not configured or opted out")
		} else {
			d.attempt(ev.OwnerID, notifType, ChannelMessenger, func(ctx context.Context) error {
				text := fmt.Sprintf("Your submission for %s has been approved. %d production orders were opened.",
					ev.BrandName, ev.WorkflowCount)
				return d.messenger.SendMessage(ctx, *targets.MessengerID, text)
			})
		}

		d.publish(&client.OrderEvent{
			EventType:    notifType,
			ClientID:     ev.OwnerID,
			ActorID:      ev.Actor,
			ResourceType: "submission",
			ResourceID:   ev.SubmissionID,
			Payload:      map[string]any{"workflow_count": ev.WorkflowCount},
		})
	})
}

// DispatchRenewal notifies a service-period extension.
func (d *Dispatcher) DispatchRenewal(ev RenewalEvent) {
	d.submit(func() {
		targets := d.resolve(ev.ClientID)

		const notifType = "service_extended"

		if targets == nil || targets.MessengerID == nil || !targets.MessengerEnabled {
			d.record(ev.ClientID, notifType, ChannelMessenger, repository.NotificationSkipped, "messenger not configured or opted out")
		} else {
			d.attempt(ev.ClientID, notifType, ChannelMessenger, func(ctx context.Context) error {
				text := fmt.Sprintf("Your service period was extended by %d months, now ending %s.",
					ev.ServiceMonths, ev.NewEnd.Format("2006-01-02"))
				return d.messenger.SendMessage(ctx, *targets.MessengerID, text)
			})
		}

		d.publish(&client.OrderEvent{
			EventType:    notifType,
			ClientID:     ev.ClientID,
			ActorID:      ev.Actor,
			ResourceType: "client",
			ResourceID:   ev.ClientID,
			Payload: map[string]any{
				"service_months": ev.ServiceMonths,
				"new_end":        ev.NewEnd.Format("2006-01-02"),
			},
		})
	})
}

// ── internals ─────────────────────────────────────────────────────────────────

// resolve returns nil when targets cannot be loaded; each channel then records
// a skip rather than failing the whole dispatch.
func (d *Dispatcher) resolve(clientID string) *repository.NotificationTargets {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	targets, err := d.targets.NotificationTargets(ctx, clientID)
	if err != nil {
		d.log.Warn().Err(err).Str("client_id", clientID).Msg("notify: failed to resolve targets")
		return nil
	}
	return targets
}

// attempt runs one delivery with its own bounded timeout and records the
// outcome. A timeout is classified as a failure like any other error.
func (d *Dispatcher) attempt(clientID, notifType, channel string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		d.log.Warn().Err(err).
			Str("client_id", clientID).
			Str("channel", channel).
			Str("type", notifType).
			Msg("notify: delivery failed")
		d.record(clientID, notifType, channel, repository.NotificationFailed, err.Error())
		return
	}
	d.record(clientID, notifType, channel, repository.NotificationSent, "")
}

func (d *Dispatcher) record(clientID, notifType, channel string, status repository.NotificationStatus, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	entry := &repository.NotificationLog{
		ClientID:         clientID,
		NotificationType: notifType,
		Channel:          channel,
		Status:           status,
	}
	if errMsg != "" {
		entry.ErrorMessage = &errMsg
	}
	if err := d.logs.Append(ctx, entry); err != nil {
		d.log.Warn().Err(err).
			Str("client_id", clientID).
			Str("channel", channel).
			Msg("notify: failed to record delivery attempt")
	}
}

func (d *Dispatcher) publish(event *client.OrderEvent) {
	if d.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	d.events.PublishOrderEvent(ctx, event)
}

// statusLabel renders a workflow status for humans.
func statusLabel(s repository.WorkflowStatus) string {
	switch s {
	case repository.StatusPending:
		return "Pending"
	case repository.StatusSubmitted:
		return "Submitted"
	case repository.StatusInProgress:
		return "Design in progress"
	case repository.StatusDesignUploaded:
		return "Design uploaded"
	case repository.StatusOrderRequested:
		return "Order requested"
	case repository.StatusOrderApproved:
		return "Order approved"
	case repository.StatusCompleted:
		return "Completed"
	case repository.StatusShipped:
		return "Shipped"
	case repository.StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// typeLabel renders a workflow type for humans.
func typeLabel(t repository.WorkflowType) string {
	switch t {
	case repository.WorkflowTypeNamecard:
		return "namecard"
	case repository.WorkflowTypeNametag:
		return "nametag"
	case repository.WorkflowTypeContract:
		return "contract print"
	case repository.WorkflowTypeEnvelope:
		return "envelope"
	case repository.WorkflowTypeWebsite:
		return "website"
	case repository.WorkflowTypeBlog:
		return "blog"
	case repository.WorkflowTypeMetaAds:
		return "Meta ads"
	case repository.WorkflowTypeNaverAds:
		return "Naver ads"
	default:
		return string(t)
	}
}
