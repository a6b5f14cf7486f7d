package service

import (
	"context"
	"fmt"
	"time"

	"github.com/studioflow-io/be-orders/internal/client"
	"github.com/studioflow-io/be-orders/internal/errors"
	"github.com/studioflow-io/be-orders/internal/logger"
	"github.com/studioflow-io/be-orders/internal/notify"
	"github.com/studioflow-io/be-orders/internal/period"
	"github.com/studioflow-io/be-orders/internal/repository"
)

// contractTransitions maps each contract status to the statuses it may move
// to. Statuses absent from the map are terminal.
var contractTransitions = map[repository.ContractStatus][]repository.ContractStatus{
	repository.ContractPending:   {repository.ContractSubmitted, repository.ContractCancelled},
	repository.ContractSubmitted: {repository.ContractApproved, repository.ContractRejected, repository.ContractCancelled},
	repository.ContractApproved:  {repository.ContractActive, repository.ContractCancelled},
	repository.ContractRejected:  {repository.ContractSubmitted, repository.ContractCancelled},
	repository.ContractActive:    {repository.ContractExpired, repository.ContractCancelled},
}

func contractTransitionAllowed(from, to repository.ContractStatus) bool {
	for _, s := range contractTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ContractStore is the persistence surface for contracts.
type ContractStore interface {
	Create(ctx context.Context, c *repository.Contract, actor string) error
	GetByID(ctx context.Context, id string) (*repository.Contract, error)
	ListByClient(ctx context.Context, clientID string) ([]*repository.Contract, error)
	ApplyTransition(ctx context.Context, id string,
		apply func(c *repository.Contract) (*repository.ContractLog, error)) (*repository.Contract, error)
	ListLogs(ctx context.Context, contractID string) ([]*repository.ContractLog, error)
}

// ContractService manages the contract lifecycle: draft, review, activation,
// and delivery of the rendered agreement to the client.
type ContractService struct {
	contracts ContractStore
	clients   ClientStore
	renderer  client.ContractRendererInterface
	email     client.EmailClientInterface
	notes     NotificationRecorder
	log       *logger.Logger

	now func() time.Time
}

// NotificationRecorder records delivery attempts made outside the
// dispatcher's fan-out.
type NotificationRecorder interface {
	Append(ctx context.Context, entry *repository.NotificationLog) error
}

// NewContractService creates a new ContractService.
func NewContractService(
	contracts ContractStore,
	clients ClientStore,
	renderer client.ContractRendererInterface,
	email client.EmailClientInterface,
	notes NotificationRecorder,
	log *logger.Logger,
) *ContractService {
	return &ContractService{
		contracts: contracts,
		clients:   clients,
		renderer:  renderer,
		email:     email,
		notes:     notes,
		log:       log,
		now:       time.Now,
	}
}

// CreateContractRequest creates a draft contract for a client.
type CreateContractRequest struct {
	ClientID       string
	ContractPeriod int // months
	MonthlyFee     *int64
	Actor          string
}

// CreateContract creates a PENDING contract.
func (s *ContractService) CreateContract(ctx context.Context, req *CreateContractRequest) (*repository.Contract, error) {
	if req.ContractPeriod < 1 {
		return nil, errors.InvalidInput("contract_period", "must be at least 1 month")
	}
	if req.MonthlyFee != nil && *req.MonthlyFee < 0 {
		return nil, errors.InvalidInput("monthly_fee", "cannot be negative")
	}
	if req.Actor == "" {
		return nil, errors.InvalidInput("actor", "required")
	}
	if _, err := s.clients.GetByID(ctx, req.ClientID); err != nil {
		return nil, err
	}

	c := &repository.Contract{
		ClientID:       req.ClientID,
		Status:         repository.ContractPending,
		ContractPeriod: req.ContractPeriod,
		MonthlyFee:     req.MonthlyFee,
	}
	if err := s.contracts.Create(ctx, c, req.Actor); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("contract_id", c.ID).
		Str("client_id", c.ClientID).
		Int("period_months", c.ContractPeriod).
		Msg("Contract created")

	return c, nil
}

// ContractTransitionRequest moves a contract to a new status.
type ContractTransitionRequest struct {
	ContractID string
	ToStatus   repository.ContractStatus
	Actor      string
	Reason     *string // required for REJECTED
}

// Transition applies one contract status change under a row lock. Approval
// stamps the reviewer; activation starts the contract period clock and
// computes the end date from the contract's period.
func (s *ContractService) Transition(ctx context.Context, req *ContractTransitionRequest) (*repository.Contract, error) {
	if req.Actor == "" {
		return nil, errors.InvalidInput("actor", "required")
	}
	switch req.ToStatus {
	case repository.ContractSubmitted, repository.ContractApproved,
		repository.ContractRejected, repository.ContractActive,
		repository.ContractExpired, repository.ContractCancelled:
	default:
		return nil, errors.InvalidInput("status", fmt.Sprintf("unknown contract status %q", req.ToStatus))
	}
	if req.ToStatus == repository.ContractRejected && (req.Reason == nil || *req.Reason == "") {
		return nil, errors.InvalidInput("reason", "required when rejecting")
	}

	now := s.now()
	contract, err := s.contracts.ApplyTransition(ctx, req.ContractID,
		func(c *repository.Contract) (*repository.ContractLog, error) {
			if !contractTransitionAllowed(c.Status, req.ToStatus) {
				return nil, errors.Conflict(fmt.Sprintf(
					"contract cannot move from %s to %s", c.Status, req.ToStatus))
			}

			prior := c.Status
			c.Status = req.ToStatus

			switch req.ToStatus {
			case repository.ContractApproved:
				c.ReviewedBy = &req.Actor
				c.ReviewedAt = &now
				c.RejectionReason = nil
			case repository.ContractRejected:
				c.ReviewedBy = &req.Actor
				c.ReviewedAt = &now
				c.RejectionReason = req.Reason
			case repository.ContractActive:
				start := now
				end := period.AddMonths(start, c.ContractPeriod)
				c.StartDate = &start
				c.EndDate = &end
			case repository.ContractSubmitted:
				c.RejectionReason = nil
			}

			return &repository.ContractLog{
				ContractID: c.ID,
				FromStatus: &prior,
				ToStatus:   req.ToStatus,
				ChangedBy:  req.Actor,
				Note:       req.Reason,
			}, nil
		})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("contract_id", contract.ID).
		Str("status", string(contract.Status)).
		Str("actor", req.Actor).
		Msg("Contract transitioned")

	return contract, nil
}

// GetContract returns one contract by ID.
func (s *ContractService) GetContract(ctx context.Context, id string) (*repository.Contract, error) {
	return s.contracts.GetByID(ctx, id)
}

// ListContracts returns a client's contracts, newest first.
func (s *ContractService) ListContracts(ctx context.Context, clientID string) ([]*repository.Contract, error) {
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		return nil, err
	}
	return s.contracts.ListByClient(ctx, clientID)
}

// History returns the contract's audit trail, oldest-first.
func (s *ContractService) History(ctx context.Context, contractID string) ([]*repository.ContractLog, error) {
	if _, err := s.contracts.GetByID(ctx, contractID); err != nil {
		return nil, err
	}
	return s.contracts.ListLogs(ctx, contractID)
}

// SendContract renders the agreement document and emails it to the client,
// recording the delivery attempt. The contract must have left the draft
// state, and the client must have an email address on file.
func (s *ContractService) SendContract(ctx context.Context, contractID, actor string) error {
	if actor == "" {
		return errors.InvalidInput("actor", "required")
	}

	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return err
	}
	if contract.Status == repository.ContractPending {
		return errors.Conflict("contract has not been submitted yet")
	}

	cl, err := s.clients.GetByID(ctx, contract.ClientID)
	if err != nil {
		return err
	}
	if cl.Email == nil || *cl.Email == "" {
		s.recordSend(ctx, cl.ID, repository.NotificationSkipped, strPtr("client has no email address"))
		return errors.InvalidInput("email", "client has no email address on file")
	}

	doc, err := s.renderer.RenderContractDocument(contract, cl.Name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to render contract document")
	}

	meta := client.DocumentMeta{
		Filename:    fmt.Sprintf("contract-%s.html", contract.ID),
		Subject:     fmt.Sprintf("Service contract for %s", cl.Name),
		Description: fmt.Sprintf("Your %d-month service contract is attached.", contract.ContractPeriod),
	}
	if err := s.email.SendDocumentEmail(ctx, *cl.Email, meta, doc); err != nil {
		msg := err.Error()
		s.recordSend(ctx, cl.ID, repository.NotificationFailed, &msg)
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to send contract email")
	}

	s.recordSend(ctx, cl.ID, repository.NotificationSent, nil)

	s.log.Info().
		Str("contract_id", contract.ID).
		Str("client_id", cl.ID).
		Str("actor", actor).
		Msg("Contract document sent")

	return nil
}

func (s *ContractService) recordSend(ctx context.Context, clientID string, status repository.NotificationStatus, errMsg *string) {
	entry := &repository.NotificationLog{
		ClientID:         clientID,
		NotificationType: "contract_document",
		Channel:          notify.ChannelEmail,
		Status:           status,
		ErrorMessage:     errMsg,
	}
	if err := s.notes.Append(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("client_id", clientID).Msg("Failed to record contract send attempt")
	}
}

func strPtr(s string) *string { return &s }
