package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studioflow-io/be-orders/internal/client"
	"github.com/studioflow-io/be-orders/internal/errors"
	"github.com/studioflow-io/be-orders/internal/logger"
	"github.com/studioflow-io/be-orders/internal/repository"
)

type fakeContractStore struct {
	contracts map[string]*repository.Contract
	logs      []*repository.ContractLog
}

func newFakeContractStore(cs ...*repository.Contract) *fakeContractStore {
	s := &fakeContractStore{contracts: make(map[string]*repository.Contract)}
	for _, c := range cs {
		s.contracts[c.ID] = c
	}
	return s
}

func (s *fakeContractStore) Create(_ context.Context, c *repository.Contract, actor string) error {
	c.ID = fmt.Sprintf("ct-%d", len(s.contracts)+1)
	s.contracts[c.ID] = c
	s.logs = append(s.logs, &repository.ContractLog{
		ContractID: c.ID, ToStatus: c.Status, ChangedBy: actor,
	})
	return nil
}

func (s *fakeContractStore) GetByID(_ context.Context, id string) (*repository.Contract, error) {
	c, ok := s.contracts[id]
	if !ok {
		return nil, errors.NotFound("contract", id)
	}
	copied := *c
	return &copied, nil
}

func (s *fakeContractStore) ListByClient(_ context.Context, clientID string) ([]*repository.Contract, error) {
	var out []*repository.Contract
	for _, c := range s.contracts {
		if c.ClientID == clientID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeContractStore) ApplyTransition(
	_ context.Context,
	id string,
	apply func(c *repository.Contract) (*repository.ContractLog, error),
) (*repository.Contract, error) {
	c, ok := s.contracts[id]
	if !ok {
		return nil, errors.NotFound("contract", id)
	}
	copied := *c
	entry, err := apply(&copied)
	if err != nil {
		return nil, err
	}
	s.contracts[id] = &copied
	if entry != nil {
		s.logs = append(s.logs, entry)
	}
	result := copied
	return &result, nil
}

func (s *fakeContractStore) ListLogs(_ context.Context, contractID string) ([]*repository.ContractLog, error) {
	var out []*repository.ContractLog
	for _, l := range s.logs {
		if l.ContractID == contractID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeEmailClient struct {
	documents []client.DocumentMeta
	err       error
}

func (c *fakeEmailClient) SendEmail(_ context.Context, to, subject, htmlBody string) error {
	return c.err
}

func (c *fakeEmailClient) SendDocumentEmail(_ context.Context, to string, meta client.DocumentMeta, attachment []byte) error {
	if c.err != nil {
		return c.err
	}
	c.documents = append(c.documents, meta)
	return nil
}

type fakeNotificationRecorder struct {
	entries []*repository.NotificationLog
}

func (r *fakeNotificationRecorder) Append(_ context.Context, entry *repository.NotificationLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

var contractNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type contractFixture struct {
	svc       *ContractService
	contracts *fakeContractStore
	clients   *fakeClientStore
	email     *fakeEmailClient
	notes     *fakeNotificationRecorder
}

func newContractFixture(contracts ...*repository.Contract) *contractFixture {
	email := "owner@studiohan.example"
	f := &contractFixture{
		contracts: newFakeContractStore(contracts...),
		clients: newFakeClientStore(&repository.Client{
			ID: "client-1", Name: "Studio Han", Email: &email,
		}),
		email: &fakeEmailClient{},
		notes: &fakeNotificationRecorder{},
	}
	f.svc = NewContractService(f.contracts, f.clients, client.NewContractRenderer(), f.email, f.notes, logger.Nop())
	f.svc.now = func() time.Time { return contractNow }
	return f
}

func TestCreateContract(t *testing.T) {
	f := newContractFixture()

	fee := int64(500000)
	c, err := f.svc.CreateContract(context.Background(), &CreateContractRequest{
		ClientID: "client-1", ContractPeriod: 12, MonthlyFee: &fee, Actor: "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.ContractPending, c.Status)
	assert.Nil(t, c.StartDate)

	t.Run("period must be positive", func(t *testing.T) {
		_, err := f.svc.CreateContract(context.Background(), &CreateContractRequest{
			ClientID: "client-1", ContractPeriod: 0, Actor: "admin",
		})
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := f.svc.CreateContract(context.Background(), &CreateContractRequest{
			ClientID: "nope", ContractPeriod: 12, Actor: "admin",
		})
		assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	})
}

func TestContractActivationComputesPeriod(t *testing.T) {
	f := newContractFixture(&repository.Contract{
		ID: "ct-1", ClientID: "client-1",
		Status: repository.ContractApproved, ContractPeriod: 12,
	})

	c, err := f.svc.Transition(context.Background(), &ContractTransitionRequest{
		ContractID: "ct-1", ToStatus: repository.ContractActive, Actor: "admin",
	})
	require.NoError(t, err)

	require.NotNil(t, c.StartDate)
	require.NotNil(t, c.EndDate)
	assert.Equal(t, contractNow, *c.StartDate)
	assert.Equal(t, contractNow.AddDate(0, 12, 0), *c.EndDate)
}

func TestContractApprovalStampsReviewer(t *testing.T) {
	f := newContractFixture(&repository.Contract{
		ID: "ct-1", ClientID: "client-1",
		Status: repository.ContractSubmitted, ContractPeriod: 6,
	})

	c, err := f.svc.Transition(context.Background(), &ContractTransitionRequest{
		ContractID: "ct-1", ToStatus: repository.ContractApproved, Actor: "reviewer",
	})
	require.NoError(t, err)
	assert.Equal(t, "reviewer", *c.ReviewedBy)
	assert.Equal(t, contractNow, *c.ReviewedAt)
	assert.Nil(t, c.StartDate, "approval alone does not start the clock")
}

func TestContractRejectionRequiresReason(t *testing.T) {
	f := newContractFixture(&repository.Contract{
		ID: "ct-1", ClientID: "client-1",
		Status: repository.ContractSubmitted, ContractPeriod: 6,
	})

	_, err := f.svc.Transition(context.Background(), &ContractTransitionRequest{
		ContractID: "ct-1", ToStatus: repository.ContractRejected, Actor: "reviewer",
	})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	reason := "fee schedule missing"
	c, err := f.svc.Transition(context.Background(), &ContractTransitionRequest{
		ContractID: "ct-1", ToStatus: repository.ContractRejected, Actor: "reviewer", Reason: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, reason, *c.RejectionReason)
}

func TestContractIllegalTransitions(t *testing.T) {
	cases := []struct {
		from repository.ContractStatus
		to   repository.ContractStatus
	}{
		{repository.ContractPending, repository.ContractActive},
		{repository.ContractExpired, repository.ContractActive},
		{repository.ContractCancelled, repository.ContractSubmitted},
		{repository.ContractActive, repository.ContractApproved},
	}
	for _, tc := range cases {
		f := newContractFixture(&repository.Contract{
			ID: "ct-1", ClientID: "client-1", Status: tc.from, ContractPeriod: 6,
		})
		_, err := f.svc.Transition(context.Background(), &ContractTransitionRequest{
			ContractID: "ct-1", ToStatus: tc.to, Actor: "admin",
		})
		assert.True(t, errors.IsCode(err, errors.ErrCodeConflict), "%s -> %s", tc.from, tc.to)
	}
}

func TestContractRejectedMayResubmit(t *testing.T) {
	f := newContractFixture(&repository.Contract{
		ID: "ct-1", ClientID: "client-1",
		Status: repository.ContractRejected, ContractPeriod: 6,
		RejectionReason: str("fee schedule missing"),
	})

	c, err := f.svc.Transition(context.Background(), &ContractTransitionRequest{
		ContractID: "ct-1", ToStatus: repository.ContractSubmitted, Actor: "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.ContractSubmitted, c.Status)
	assert.Nil(t, c.RejectionReason, "resubmission clears the prior rejection")
}

func TestSendContract(t *testing.T) {
	f := newContractFixture(&repository.Contract{
		ID: "ct-1", ClientID: "client-1",
		Status: repository.ContractApproved, ContractPeriod: 12,
	})

	require.NoError(t, f.svc.SendContract(context.Background(), "ct-1", "admin"))

	require.Len(t, f.email.documents, 1)
	assert.Equal(t, "contract-ct-1.html", f.email.documents[0].Filename)

	require.Len(t, f.notes.entries, 1)
	assert.Equal(t, repository.NotificationSent, f.notes.entries[0].Status)
	assert.Equal(t, "contract_document", f.notes.entries[0].NotificationType)
}

func TestSendContractFailureRecorded(t *testing.T) {
	f := newContractFixture(&repository.Contract{
		ID: "ct-1", ClientID: "client-1",
		Status: repository.ContractApproved, ContractPeriod: 12,
	})
	f.email.err = fmt.Errorf("smtp connect refused")

	err := f.svc.SendContract(context.Background(), "ct-1", "admin")
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable))

	require.Len(t, f.notes.entries, 1)
	assert.Equal(t, repository.NotificationFailed, f.notes.entries[0].Status)
	require.NotNil(t, f.notes.entries[0].ErrorMessage)
}

func TestSendContractGuards(t *testing.T) {
	t.Run("draft contract not sendable", func(t *testing.T) {
		f := newContractFixture(&repository.Contract{
			ID: "ct-1", ClientID: "client-1",
			Status: repository.ContractPending, ContractPeriod: 12,
		})
		err := f.svc.SendContract(context.Background(), "ct-1", "admin")
		assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))
		assert.Empty(t, f.email.documents)
	})

	t.Run("client without email", func(t *testing.T) {
		f := newContractFixture(&repository.Contract{
			ID: "ct-1", ClientID: "client-1",
			Status: repository.ContractApproved, ContractPeriod: 12,
		})
		f.clients.clients["client-1"].Email = nil

		err := f.svc.SendContract(context.Background(), "ct-1", "admin")
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
		require.Len(t, f.notes.entries, 1)
		assert.Equal(t, repository.NotificationSkipped, f.notes.entries[0].Status)
	})
}
