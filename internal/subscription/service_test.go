package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch-dev/firewatch/internal/notifier"
)

type sentMessage struct {
	to, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Send(_ context.Context, to, body string) (*notifier.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	if f.err != nil {
		return nil, f.err
	}
	return &notifier.Receipt{Provider: "fake", MessageID: "SM1", Status: "queued", Destination: to, SubmittedAt: time.Now()}, nil
}

type namer map[string]string

func (n namer) DisplayName(id string) string {
	if name, ok := n[id]; ok {
		return name
	}
	return id
}

func TestService_SubscribeSendsOneWelcome(t *testing.T) {
	store := newTestStore(t)
	n := &fakeNotifier{}
	svc := NewService(store, n, namer{"Axis-AlabamaHills1": "Alabama Hills"}, "")

	res, err := svc.Subscribe(context.Background(), "Axis-AlabamaHills1", "4155551234", "user-1")
	require.NoError(t, err)
	require.NotNil(t, res.Subscription)
	assert.Empty(t, res.Warning)
	require.NotNil(t, res.Welcome)
	assert.Equal(t, "SM1", res.Welcome.MessageID)

	require.Len(t, n.sent, 1)
	assert.Equal(t, "+14155551234", n.sent[0].to)
	assert.Equal(t, notifier.Welcome("Alabama Hills"), n.sent[0].body)
}

func TestService_WelcomeFailureNonBlocking(t *testing.T) {
	store := newTestStore(t)
	n := &fakeNotifier{err: notifier.ErrNotifierUnavailable}
	svc := NewService(store, n, nil, WelcomeNonBlocking)

	res, err := svc.Subscribe(context.Background(), "cam-1", "4155551234", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)
	assert.Nil(t, res.Welcome)
	assert.Equal(t, notifier.Welcome("cam-1"), n.sent[0].body, "unknown cameras are named by id")

	subs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestService_WelcomeFailureRollback(t *testing.T) {
	store := newTestStore(t)
	n := &fakeNotifier{err: notifier.ErrNotifierUnavailable}
	svc := NewService(store, n, nil, WelcomeRollback)

	res, err := svc.Subscribe(context.Background(), "cam-1", "4155551234", "")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, notifier.ErrNotifierUnavailable)

	subs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestService_InvalidInputSendsNothing(t *testing.T) {
	n := &fakeNotifier{}
	svc := NewService(newTestStore(t), n, nil, "")

	_, err := svc.Subscribe(context.Background(), "cam-1", "12345", "")
	require.Error(t, err)
	assert.Empty(t, n.sent)
}

func TestService_Unsubscribe(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store, &fakeNotifier{}, nil, "")
	ctx := context.Background()

	res, err := svc.Subscribe(ctx, "cam-1", "4155551234", "")
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, res.Subscription.ID))
	assert.ErrorIs(t, svc.Unsubscribe(ctx, res.Subscription.ID), ErrNotFound)
}
