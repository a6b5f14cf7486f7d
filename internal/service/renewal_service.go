package service

import (
	"context"
	"time"

	"github.com/studioflow-io/be-orders/internal/errors"
	"github.com/studioflow-io/be-orders/internal/logger"
	"github.com/studioflow-io/be-orders/internal/notify"
	"github.com/studioflow-io/be-orders/internal/period"
	"github.com/studioflow-io/be-orders/internal/repository"
)

// FreeExtensionType is the ledger payment type recorded for non-monetary
// extensions.
const FreeExtensionType = "free extension"

// ClientStore is the persistence surface the renewal engine needs.
type ClientStore interface {
	Create(ctx context.Context, c *repository.Client) error
	GetByID(ctx context.Context, id string) (*repository.Client, error)
	ExtendService(ctx context.Context, clientID string,
		compute func(currentEnd *time.Time) time.Time,
		payment *repository.PaymentHistory) (*repository.Client, error)
	ListExpiring(ctx context.Context, horizonDays int) ([]*repository.Client, error)
	ListPayments(ctx context.Context, clientID string) ([]*repository.PaymentHistory, error)
}

// RenewalDispatcher receives committed extensions for best-effort delivery.
type RenewalDispatcher interface {
	DispatchRenewal(ev notify.RenewalEvent)
}

// RenewalService extends service periods from payment events and classifies
// clients by days remaining for renewal outreach.
type RenewalService struct {
	clients    ClientStore
	dispatcher RenewalDispatcher
	log        *logger.Logger

	now func() time.Time
}

// NewRenewalService creates a new RenewalService.
func NewRenewalService(clients ClientStore, dispatcher RenewalDispatcher, log *logger.Logger) *RenewalService {
	return &RenewalService{
		clients:    clients,
		dispatcher: dispatcher,
		log:        log,
		now:        time.Now,
	}
}

// RegisterClientRequest registers a new client record.
type RegisterClientRequest struct {
	Name             string
	Email            *string
	MessengerID      *string
	MessengerEnabled bool
}

// RegisterClient creates a client with no service period yet.
func (s *RenewalService) RegisterClient(ctx context.Context, req *RegisterClientRequest) (*repository.Client, error) {
	if req.Name == "" {
		return nil, errors.InvalidInput("name", "required")
	}

	c := &repository.Client{
		Name:             req.Name,
		Email:            req.Email,
		MessengerID:      req.MessengerID,
		MessengerEnabled: req.MessengerEnabled,
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info().Str("client_id", c.ID).Str("name", c.Name).Msg("Client registered")
	return c, nil
}

// GetClient returns one client by ID.
func (s *RenewalService) GetClient(ctx context.Context, id string) (*repository.Client, error) {
	return s.clients.GetByID(ctx, id)
}

// ExtendServiceRequest carries one extension event. A nil Amount denotes a
// non-monetary extension and defaults PaymentType to "free extension".
type ExtendServiceRequest struct {
	ClientID    string
	Months      int
	Amount      *int64
	PaymentType string
	PaymentDate *time.Time // defaults to now
	Memo        *string
	Actor       string
}

// ExtendService computes the new service period end and persists the client
// update together with exactly one payment-history row in a single
// transaction. The baseline is the current period end when still active, or
// now when the period is lapsed or unset.
func (s *RenewalService) ExtendService(ctx context.Context, req *ExtendServiceRequest) (*repository.Client, *repository.PaymentHistory, error) {
	if req.Months < 1 {
		return nil, nil, errors.InvalidInput("months", "must be at least 1")
	}
	if req.Amount != nil && *req.Amount < 0 {
		return nil, nil, errors.InvalidInput("amount", "cannot be negative")
	}

	paymentType := req.PaymentType
	if paymentType == "" {
		if req.Amount != nil {
			return nil, nil, errors.InvalidInput("payment_type", "required for monetary payments")
		}
		paymentType = FreeExtensionType
	}

	now := s.now()
	paymentDate := now
	if req.PaymentDate != nil {
		paymentDate = *req.PaymentDate
	}

	payment := &repository.PaymentHistory{
		PaymentDate:   paymentDate,
		Amount:        req.Amount,
		PaymentType:   paymentType,
		ServiceMonths: req.Months,
		Memo:          req.Memo,
	}

	client, err := s.clients.ExtendService(ctx, req.ClientID,
		func(currentEnd *time.Time) time.Time {
			return period.AddMonths(period.ExtensionBaseline(currentEnd, now), req.Months)
		},
		payment,
	)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("client_id", req.ClientID).
		Int("months", req.Months).
		Time("new_end", *client.ServicePeriodEnd).
		Str("payment_type", paymentType).
		Msg("Service period extended")

	s.dispatcher.DispatchRenewal(notify.RenewalEvent{
		ClientID:      req.ClientID,
		ServiceMonths: req.Months,
		NewEnd:        *client.ServicePeriodEnd,
		Actor:         req.Actor,
	})

	return client, payment, nil
}

// ExpiringClient is one row of the renewal outreach report.
type ExpiringClient struct {
	Client   *repository.Client
	DaysLeft int
	Urgency  period.Urgency
}

// ExpiringClients returns active clients whose service period ends within
// horizonDays, classified by urgency and sorted soonest-expiring first.
func (s *RenewalService) ExpiringClients(ctx context.Context, horizonDays int) ([]*ExpiringClient, error) {
	if horizonDays < 0 {
		return nil, errors.InvalidInput("horizon", "cannot be negative")
	}

	clients, err := s.clients.ListExpiring(ctx, horizonDays)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := make([]*ExpiringClient, 0, len(clients))
	for _, c := range clients {
		if c.ServicePeriodEnd == nil {
			continue
		}
		daysLeft := period.DaysLeft(*c.ServicePeriodEnd, now)
		if daysLeft > horizonDays {
			continue
		}
		report = append(report, &ExpiringClient{
			Client:   c,
			DaysLeft: daysLeft,
			Urgency:  period.Classify(daysLeft),
		})
	}
	return report, nil
}

// PaymentHistory returns a client's ledger, newest first.
func (s *RenewalService) PaymentHistory(ctx context.Context, clientID string) ([]*repository.PaymentHistory, error) {
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		return nil, err
	}
	return s.clients.ListPayments(ctx, clientID)
}
