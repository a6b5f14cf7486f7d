package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studioflow-io/be-orders/internal/logger"
	"github.com/studioflow-io/be-orders/internal/repository"
)

type memoryLogStore struct {
	mu      sync.Mutex
	entries []*repository.NotificationLog
}

func (s *memoryLogStore) Append(_ context.Context, entry *repository.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memoryLogStore) byChannel(channel string) []*repository.NotificationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.NotificationLog
	for _, e := range s.entries {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

type staticTargets struct {
	targets *repository.NotificationTargets
	err     error
}

func (s *staticTargets) NotificationTargets(_ context.Context, clientID string) (*repository.NotificationTargets, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.targets, nil
}

type stubChannelClient struct {
	mu          sync.Mutex
	transitions int
	uploads     int
	records     int
	err         error
	delay       time.Duration
}

func (c *stubChannelClient) CreateChannel(_ context.Context, clientName, contactInfo string) (string, error) {
	return "CH-NEW", c.err
}

func (c *stubChannelClient) wait(ctx context.Context) error {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.err
}

func (c *stubChannelClient) PostRecord(ctx context.Context, channelID string, fields map[string]string) error {
	c.mu.Lock()
	c.records++
	c.mu.Unlock()
	return c.wait(ctx)
}

func (c *stubChannelClient) PostTransitionLog(ctx context.Context, channelID, fromLabel, toLabel, actor string) error {
	c.mu.Lock()
	c.transitions++
	c.mu.Unlock()
	return c.wait(ctx)
}

func (c *stubChannelClient) PostUpload(ctx context.Context, channelID, itemLabel, url string) error {
	c.mu.Lock()
	c.uploads++
	c.mu.Unlock()
	return c.wait(ctx)
}

type stubMessengerClient struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (c *stubMessengerClient) SendMessage(_ context.Context, recipientID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, text)
	return nil
}

func fullTargets() *repository.NotificationTargets {
	channelID := "CH1"
	messengerID := "M1"
	return &repository.NotificationTargets{
		ClientID:         "client-1",
		ClientName:       "Studio Han",
		ChannelID:        &channelID,
		MessengerID:      &messengerID,
		MessengerEnabled: true,
	}
}

type dispatcherFixture struct {
	d         *Dispatcher
	logs      *memoryLogStore
	channel   *stubChannelClient
	messenger *stubMessengerClient
}

func newDispatcherFixture(targets *repository.NotificationTargets, timeout time.Duration) *dispatcherFixture {
	f := &dispatcherFixture{
		logs:      &memoryLogStore{},
		channel:   &stubChannelClient{},
		messenger: &stubMessengerClient{},
	}
	f.d = NewDispatcher(f.channel, f.messenger, f.logs, &staticTargets{targets: targets}, nil, timeout, logger.Nop())
	return f
}

func transitionEvent(to repository.WorkflowStatus) TransitionEvent {
	from := repository.StatusInProgress
	return TransitionEvent{
		WorkflowID: "wf-1",
		OwnerID:    "client-1",
		Type:       repository.WorkflowTypeNamecard,
		From:       from,
		To:         to,
		Actor:      "admin",
	}
}

func TestDispatchTransitionAllChannelsSent(t *testing.T) {
	f := newDispatcherFixture(fullTargets(), time.Second)

	f.d.DispatchTransition(transitionEvent(repository.StatusOrderRequested))
	f.d.Close()

	chatops := f.logs.byChannel(ChannelChatOps)
	require.Len(t, chatops, 1)
	assert.Equal(t, repository.NotificationSent, chatops[0].Status)
	assert.Equal(t, "workflow_ORDER_REQUESTED", chatops[0].NotificationType)

	messenger := f.logs.byChannel(ChannelMessenger)
	require.Len(t, messenger, 1)
	assert.Equal(t, repository.NotificationSent, messenger[0].Status)
	require.Len(t, f.messenger.messages, 1)
	assert.Contains(t, f.messenger.messages[0], "Order requested")
}

func TestDispatchTransitionSkipsUnconfiguredChannels(t *testing.T) {
	// Messenger opted out, no chat-ops channel: both recorded SKIPPED with no
	// outbound call made.
	f := newDispatcherFixture(&repository.NotificationTargets{
		ClientID:   "client-1",
		ClientName: "Studio Han",
	}, time.Second)

	f.d.DispatchTransition(transitionEvent(repository.StatusCompleted))
	f.d.Close()

	for _, channel := range []string{ChannelChatOps, ChannelMessenger} {
		entries := f.logs.byChannel(channel)
		require.Len(t, entries, 1, channel)
		assert.Equal(t, repository.NotificationSkipped, entries[0].Status)
		require.NotNil(t, entries[0].ErrorMessage)
	}
	assert.Zero(t, f.channel.transitions)
	assert.Empty(t, f.messenger.messages)
}

func TestDispatchTransitionChannelIsolation(t *testing.T) {
	// A chat-ops failure must not stop the messenger delivery.
	f := newDispatcherFixture(fullTargets(), time.Second)
	f.channel.err = fmt.Errorf("workspace 503")

	f.d.DispatchTransition(transitionEvent(repository.StatusShipped))
	f.d.Close()

	chatops := f.logs.byChannel(ChannelChatOps)
	require.Len(t, chatops, 1)
	assert.Equal(t, repository.NotificationFailed, chatops[0].Status)
	assert.Contains(t, *chatops[0].ErrorMessage, "workspace 503")

	messenger := f.logs.byChannel(ChannelMessenger)
	require.Len(t, messenger, 1)
	assert.Equal(t, repository.NotificationSent, messenger[0].Status)
}

func TestDispatchTransitionTimeoutIsFailure(t *testing.T) {
	f := newDispatcherFixture(fullTargets(), 20*time.Millisecond)
	f.channel.delay = 500 * time.Millisecond

	f.d.DispatchTransition(transitionEvent(repository.StatusSubmitted))
	f.d.Close()

	chatops := f.logs.byChannel(ChannelChatOps)
	require.Len(t, chatops, 1)
	assert.Equal(t, repository.NotificationFailed, chatops[0].Status)
}

func TestDispatchTransitionDesignUpload(t *testing.T) {
	f := newDispatcherFixture(fullTargets(), time.Second)

	url := "https://cdn.example.com/design.png"
	ev := transitionEvent(repository.StatusDesignUploaded)
	ev.DesignURL = &url
	f.d.DispatchTransition(ev)
	f.d.Close()

	assert.Equal(t, 1, f.channel.uploads, "design upload is posted alongside the transition log")
	assert.Equal(t, 1, f.channel.transitions)
}

func TestDispatchTransitionResolverFailure(t *testing.T) {
	f := &dispatcherFixture{
		logs:      &memoryLogStore{},
		channel:   &stubChannelClient{},
		messenger: &stubMessengerClient{},
	}
	f.d = NewDispatcher(f.channel, f.messenger, f.logs,
		&staticTargets{err: fmt.Errorf("db gone")}, nil, time.Second, logger.Nop())

	f.d.DispatchTransition(transitionEvent(repository.StatusSubmitted))
	f.d.Close()

	// Every channel records a skip; nothing is attempted.
	assert.Len(t, f.logs.byChannel(ChannelChatOps), 1)
	assert.Len(t, f.logs.byChannel(ChannelMessenger), 1)
	assert.Zero(t, f.channel.transitions)
}

func TestDispatchApproval(t *testing.T) {
	f := newDispatcherFixture(fullTargets(), time.Second)

	channelID := "CH1"
	f.d.DispatchApproval(ApprovalEvent{
		SubmissionID:  "sub-1",
		OwnerID:       "client-1",
		BrandName:     "Studio Han",
		ChannelID:     &channelID,
		Actor:         "admin",
		WorkflowCount: 5,
	})
	f.d.Close()

	assert.Equal(t, 1, f.channel.records)
	require.Len(t, f.messenger.messages, 1)
	assert.Contains(t, f.messenger.messages[0], "5 production orders")

	for _, channel := range []string{ChannelChatOps, ChannelMessenger} {
		entries := f.logs.byChannel(channel)
		require.Len(t, entries, 1, channel)
		assert.Equal(t, repository.NotificationSent, entries[0].Status)
		assert.Equal(t, "submission_approved", entries[0].NotificationType)
	}
}

func TestDispatchApprovalWithoutChannel(t *testing.T) {
	f := newDispatcherFixture(fullTargets(), time.Second)

	f.d.DispatchApproval(ApprovalEvent{
		SubmissionID: "sub-1", OwnerID: "client-1", BrandName: "Studio Han",
		Actor: "admin", WorkflowCount: 2,
	})
	f.d.Close()

	chatops := f.logs.byChannel(ChannelChatOps)
	require.Len(t, chatops, 1)
	assert.Equal(t, repository.NotificationSkipped, chatops[0].Status)
	assert.Zero(t, f.channel.records)
}

func TestDispatchRenewal(t *testing.T) {
	f := newDispatcherFixture(fullTargets(), time.Second)

	f.d.DispatchRenewal(RenewalEvent{
		ClientID:      "client-1",
		ServiceMonths: 6,
		NewEnd:        time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		Actor:         "admin",
	})
	f.d.Close()

	require.Len(t, f.messenger.messages, 1)
	assert.Contains(t, f.messenger.messages[0], "2024-07-15")

	messenger := f.logs.byChannel(ChannelMessenger)
	require.Len(t, messenger, 1)
	assert.Equal(t, repository.NotificationSent, messenger[0].Status)
	assert.Equal(t, "service_extended", messenger[0].NotificationType)
}

func TestCloseDrainsInFlightWork(t *testing.T) {
	f := newDispatcherFixture(fullTargets(), time.Second)
	f.channel.delay = 50 * time.Millisecond

	for i := 0; i < 5; i++ {
		f.d.DispatchTransition(transitionEvent(repository.StatusSubmitted))
	}
	f.d.Close()

	// All ten attempts (chat-ops + messenger per event) recorded by the time
	// Close returns.
	f.logs.mu.Lock()
	total := len(f.logs.entries)
	f.logs.mu.Unlock()
	assert.Equal(t, 10, total)
}
