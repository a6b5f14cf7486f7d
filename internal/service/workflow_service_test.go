package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studioflow-io/be-orders/internal/errors"
	"github.com/studioflow-io/be-orders/internal/logger"
	"github.com/studioflow-io/be-orders/internal/notify"
	"github.com/studioflow-io/be-orders/internal/repository"
)

// fakeWorkflowStore keeps workflows in memory and mimics the repository's
// transition contract: the apply callback mutates a copy, and a returned nil
// log entry still commits the field changes.
type fakeWorkflowStore struct {
	workflows map[string]*repository.Workflow
	logs      []*repository.WorkflowLog
}

func newFakeWorkflowStore(ws ...*repository.Workflow) *fakeWorkflowStore {
	s := &fakeWorkflowStore{workflows: make(map[string]*repository.Workflow)}
	for _, w := range ws {
		s.workflows[w.ID] = w
	}
	return s
}

func (s *fakeWorkflowStore) GetByID(_ context.Context, id string) (*repository.Workflow, error) {
	w, ok := s.workflows[id]
	if !ok {
		return nil, errors.NotFound("workflow", id)
	}
	copied := *w
	return &copied, nil
}

func (s *fakeWorkflowStore) ListByOwner(_ context.Context, ownerID string) ([]*repository.Workflow, error) {
	var out []*repository.Workflow
	for _, w := range s.workflows {
		if w.OwnerID == ownerID {
			copied := *w
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeWorkflowStore) ApplyTransition(
	_ context.Context,
	id string,
	apply func(w *repository.Workflow) (*repository.WorkflowLog, error),
) (*repository.Workflow, *repository.WorkflowLog, error) {
	w, ok := s.workflows[id]
	if !ok {
		return nil, nil, errors.NotFound("workflow", id)
	}

	copied := *w
	entry, err := apply(&copied)
	if err != nil {
		return nil, nil, err
	}

	s.workflows[id] = &copied
	if entry != nil {
		entry.WorkflowID = id
		s.logs = append(s.logs, entry)
	}
	result := copied
	return &result, entry, nil
}

func (s *fakeWorkflowStore) Delete(_ context.Context, id string) error {
	if _, ok := s.workflows[id]; !ok {
		return errors.NotFound("workflow", id)
	}
	delete(s.workflows, id)
	return nil
}

type fakeWorkflowLogStore struct {
	store *fakeWorkflowStore
}

func (s *fakeWorkflowLogStore) ListByWorkflowID(_ context.Context, workflowID string) ([]*repository.WorkflowLog, error) {
	var out []*repository.WorkflowLog
	for _, l := range s.store.logs {
		if l.WorkflowID == workflowID {
			out = append(out, l)
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	transitions []notify.TransitionEvent
	approvals   []notify.ApprovalEvent
	renewals    []notify.RenewalEvent
}

func (d *recordingDispatcher) DispatchTransition(ev notify.TransitionEvent) {
	d.transitions = append(d.transitions, ev)
}
func (d *recordingDispatcher) DispatchApproval(ev notify.ApprovalEvent) {
	d.approvals = append(d.approvals, ev)
}
func (d *recordingDispatcher) DispatchRenewal(ev notify.RenewalEvent) {
	d.renewals = append(d.renewals, ev)
}

func str(s string) *string { return &s }

func newTestWorkflowService(store *fakeWorkflowStore, dispatcher *recordingDispatcher, now time.Time) *WorkflowService {
	svc := NewWorkflowService(store, &fakeWorkflowLogStore{store: store}, dispatcher, logger.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestTransitionHappyPath(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := newFakeWorkflowStore(&repository.Workflow{
		ID: "wf-1", OwnerID: "client-1",
		Type: repository.WorkflowTypeNamecard, Status: repository.StatusPending,
	})
	dispatcher := &recordingDispatcher{}
	svc := newTestWorkflowService(store, dispatcher, now)

	wf, err := svc.Transition(context.Background(), &TransitionRequest{
		WorkflowID:   "wf-1",
		TargetStatus: repository.StatusSubmitted,
		Actor:        "admin",
	})
	require.NoError(t, err)

	assert.Equal(t, repository.StatusSubmitted, wf.Status)
	require.NotNil(t, wf.SubmittedAt)
	assert.Equal(t, now, *wf.SubmittedAt)

	require.Len(t, store.logs, 1)
	entry := store.logs[0]
	assert.Equal(t, repository.StatusPending, *entry.FromStatus)
	assert.Equal(t, repository.StatusSubmitted, entry.ToStatus)
	assert.Equal(t, "admin", entry.ChangedBy)

	require.Len(t, dispatcher.transitions, 1)
	ev := dispatcher.transitions[0]
	assert.Equal(t, "wf-1", ev.WorkflowID)
	assert.Equal(t, repository.StatusPending, ev.From)
	assert.Equal(t, repository.StatusSubmitted, ev.To)
}

func TestTransitionSameStatusIsFieldOnlyUpdate(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := newFakeWorkflowStore(&repository.Workflow{
		ID: "wf-1", OwnerID: "client-1",
		Type: repository.WorkflowTypeWebsite, Status: repository.StatusInProgress,
	})
	dispatcher := &recordingDispatcher{}
	svc := newTestWorkflowService(store, dispatcher, now)

	wf, err := svc.Transition(context.Background(), &TransitionRequest{
		WorkflowID:   "wf-1",
		TargetStatus: repository.StatusInProgress,
		Actor:        "designer",
		Fields:       TransitionFields{DesignURL: str("https://cdn.example.com/draft.png")},
	})
	require.NoError(t, err)

	assert.Equal(t, repository.StatusInProgress, wf.Status)
	assert.Equal(t, "https://cdn.example.com/draft.png", *wf.DesignURL)
	assert.Empty(t, store.logs, "field-only updates append no log row")
	assert.Empty(t, dispatcher.transitions, "field-only updates notify nobody")
}

func TestTransitionRevisionCounting(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := newFakeWorkflowStore(&repository.Workflow{
		ID: "wf-1", OwnerID: "client-1",
		Type: repository.WorkflowTypeNamecard, Status: repository.StatusDesignUploaded,
	})
	svc := newTestWorkflowService(store, &recordingDispatcher{}, now)

	// Revision note without a status change still counts.
	wf, err := svc.Transition(context.Background(), &TransitionRequest{
		WorkflowID:   "wf-1",
		TargetStatus: repository.StatusDesignUploaded,
		Actor:        "client",
		Fields:       TransitionFields{RevisionNote: str("darker blue")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, wf.RevisionCount)

	// And again alongside a status change.
	wf, err = svc.Transition(context.Background(), &TransitionRequest{
		WorkflowID:   "wf-1",
		TargetStatus: repository.StatusInProgress,
		Actor:        "designer",
		Fields:       TransitionFields{RevisionNote: str("round the corners")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, wf.RevisionCount)
}

func TestTransitionTimestampSetAtMostOnce(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	firstStamp := now.Add(-48 * time.Hour)
	store := newFakeWorkflowStore(&repository.Workflow{
		ID: "wf-1", OwnerID: "client-1",
		Type: repository.WorkflowTypeNamecard, Status: repository.StatusDesignUploaded,
		DesignStartedAt: &firstStamp,
	})
	svc := newTestWorkflowService(store, &recordingDispatcher{}, now)

	// Re-entering IN_PROGRESS must not overwrite the original marker.
	wf, err := svc.Transition(context.Background(), &TransitionRequest{
		WorkflowID:   "wf-1",
		TargetStatus: repository.StatusInProgress,
		Actor:        "designer",
	})
	require.NoError(t, err)
	assert.Equal(t, firstStamp, *wf.DesignStartedAt)
}

func TestTransitionTerminalStateIsFinal(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for _, terminal := range []repository.WorkflowStatus{
		repository.StatusCompleted, repository.StatusShipped, repository.StatusCancelled,
	} {
		store := newFakeWorkflowStore(&repository.Workflow{
			ID: "wf-1", OwnerID: "client-1",
			Type: repository.WorkflowTypeNamecard, Status: terminal,
		})
		svc := newTestWorkflowService(store, &recordingDispatcher{}, now)

		_, err := svc.Transition(context.Background(), &TransitionRequest{
			WorkflowID:   "wf-1",
			TargetStatus: repository.StatusInProgress,
			Actor:        "admin",
		})
		assert.True(t, errors.IsCode(err, errors.ErrCodeConflict), "from %s", terminal)
	}
}

func TestTransitionValidation(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := newFakeWorkflowStore(&repository.Workflow{
		ID: "wf-1", OwnerID: "client-1",
		Type: repository.WorkflowTypeNamecard, Status: repository.StatusPending,
	})
	svc := newTestWorkflowService(store, &recordingDispatcher{}, now)

	t.Run("unrecognized status", func(t *testing.T) {
		_, err := svc.Transition(context.Background(), &TransitionRequest{
			WorkflowID: "wf-1", TargetStatus: "ARCHIVED", Actor: "admin",
		})
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
	})

	t.Run("missing actor", func(t *testing.T) {
		_, err := svc.Transition(context.Background(), &TransitionRequest{
			WorkflowID: "wf-1", TargetStatus: repository.StatusSubmitted,
		})
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
	})

	t.Run("malformed field rejected before persistence", func(t *testing.T) {
		_, err := svc.Transition(context.Background(), &TransitionRequest{
			WorkflowID: "wf-1", TargetStatus: repository.StatusSubmitted, Actor: "admin",
			Fields: TransitionFields{DesignURL: str("not a url")},
		})
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
		got, _ := svc.GetWorkflow(context.Background(), "wf-1")
		assert.Equal(t, repository.StatusPending, got.Status)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		_, err := svc.Transition(context.Background(), &TransitionRequest{
			WorkflowID: "nope", TargetStatus: repository.StatusSubmitted, Actor: "admin",
		})
		assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	})
}

func TestHistoryOrderedByCommit(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := newFakeWorkflowStore(&repository.Workflow{
		ID: "wf-1", OwnerID: "client-1",
		Type: repository.WorkflowTypeNamecard, Status: repository.StatusPending,
	})
	svc := newTestWorkflowService(store, &recordingDispatcher{}, now)

	for _, target := range []repository.WorkflowStatus{
		repository.StatusSubmitted, repository.StatusInProgress, repository.StatusDesignUploaded,
	} {
		_, err := svc.Transition(context.Background(), &TransitionRequest{
			WorkflowID: "wf-1", TargetStatus: target, Actor: "admin",
		})
		require.NoError(t, err)
	}

	logs, err := svc.History(context.Background(), "wf-1")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, repository.StatusSubmitted, logs[0].ToStatus)
	assert.Equal(t, repository.StatusInProgress, logs[1].ToStatus)
	assert.Equal(t, repository.StatusDesignUploaded, logs[2].ToStatus)
	// Each entry's fromStatus is the previous entry's toStatus.
	assert.Equal(t, *logs[1].FromStatus, logs[0].ToStatus)
	assert.Equal(t, *logs[2].FromStatus, logs[1].ToStatus)
}

func TestDeleteWorkflow(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := newFakeWorkflowStore(&repository.Workflow{
		ID: "wf-1", OwnerID: "client-1",
		Type: repository.WorkflowTypeNamecard, Status: repository.StatusPending,
	})
	svc := newTestWorkflowService(store, &recordingDispatcher{}, now)

	require.NoError(t, svc.DeleteWorkflow(context.Background(), "wf-1"))
	_, err := svc.GetWorkflow(context.Background(), "wf-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	err = svc.DeleteWorkflow(context.Background(), "wf-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}
