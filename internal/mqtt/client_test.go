package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/observability/metrics"
)

// fakeToken is a paho token that may never complete.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error, complete bool) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload string
}

// fakePaho records publishes instead of talking to a broker.
type fakePaho struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	publishErr   error
	stallPublish bool
	opts         *mqtt.ClientOptions
	messages     []published
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }
func (f *fakePaho) Connect() mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = f.connectErr == nil
	return newToken(f.connectErr, true)
}
func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}
func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stallPublish {
		return newToken(nil, false)
	}
	f.messages = append(f.messages, published{topic: topic, qos: qos, retain: retained, payload: payload.(string)})
	return newToken(f.publishErr, true)
}
func (f *fakePaho) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return newToken(nil, true)
}
func (f *fakePaho) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return newToken(nil, true)
}
func (f *fakePaho) Unsubscribe(...string) mqtt.Token        { return newToken(nil, true) }
func (f *fakePaho) AddRoute(string, mqtt.MessageHandler)    {}
func (f *fakePaho) OptionsReader() mqtt.ClientOptionsReader { return mqtt.NewOptionsReader(f.opts) }

func newTestClient(t *testing.T, fake *fakePaho) (*client, *metrics.MQTTMetrics) {
	t.Helper()
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Broker = "tcp://127.0.0.1:1883"
	cfg.ReconnectCooldown = 0
	cfg.PublishTimeout = 50 * time.Millisecond
	c := newClient(cfg, m, func(opts *mqtt.ClientOptions) mqtt.Client {
		fake.opts = opts
		return fake
	})
	return c, m
}

func TestNewClientRequiresBroker(t *testing.T) {
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	_, err = NewClient(&conf.MQTTSettings{}, m)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	c, err := NewClient(&conf.MQTTSettings{Broker: "tcp://127.0.0.1:1883", Topic: "fires"}, m)
	require.NoError(t, err)
	assert.Equal(t, "fires", c.(*client).config.Topic)
	assert.Equal(t, "firewatch", c.(*client).config.ClientID)
}

func TestConnectAndPublish(t *testing.T) {
	fake := &fakePaho{}
	c, m := newTestClient(t, fake)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	assert.True(t, c.IsConnected())
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)
	assert.Equal(t, "firewatch", fake.opts.ClientID)

	require.NoError(t, c.Publish(ctx, "firewatch/alerts/cam", `{"x":1}`))
	require.Len(t, fake.messages, 1)
	assert.Equal(t, byte(1), fake.messages[0].qos)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MessagesDelivered), 0)

	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)
}

func TestPublishFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		c, m := newTestClient(t, &fakePaho{})
		err := c.Publish(ctx, "t", "p")
		require.ErrorIs(t, err, ErrNotConnected)
		assert.InDelta(t, 1, testutil.ToFloat64(m.Errors), 0)
	})

	t.Run("broker error", func(t *testing.T) {
		fake := &fakePaho{publishErr: assert.AnError}
		c, _ := newTestClient(t, fake)
		require.NoError(t, c.Connect(ctx))
		assert.ErrorIs(t, c.Publish(ctx, "t", "p"), assert.AnError)
	})

	t.Run("timeout", func(t *testing.T) {
		fake := &fakePaho{stallPublish: true}
		c, _ := newTestClient(t, fake)
		require.NoError(t, c.Connect(ctx))
		err := c.Publish(ctx, "t", "p")
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
	})

	t.Run("connect error", func(t *testing.T) {
		c, _ := newTestClient(t, &fakePaho{connectErr: assert.AnError})
		assert.ErrorIs(t, c.Connect(ctx), assert.AnError)
	})
}

func TestConnectCooldown(t *testing.T) {
	fake := &fakePaho{}
	c, _ := newTestClient(t, fake)
	c.config.ReconnectCooldown = time.Hour

	require.NoError(t, c.Connect(context.Background()))
	assert.ErrorContains(t, c.Connect(context.Background()), "too recent")
}

func TestPublisherPublishAlert(t *testing.T) {
	fake := &fakePaho{}
	c, _ := newTestClient(t, fake)
	require.NoError(t, c.Connect(context.Background()))

	p := NewPublisher(c, "")
	ev := AlertEvent{
		CameraID:       "Axis-AlabamaHills1",
		SubscriptionID: "sub-1",
		Phone:          "***1234",
		FireScore:      0.83,
		Confidence:     83,
		ReadingTime:    time.Unix(1700000000, 0).UTC(),
		SentAt:         time.Unix(1700000120, 0).UTC(),
	}
	require.NoError(t, p.PublishAlert(context.Background(), ev))

	require.Len(t, fake.messages, 1)
	assert.Equal(t, DefaultTopic+"/Axis-AlabamaHills1", fake.messages[0].topic)

	var got AlertEvent
	require.NoError(t, json.Unmarshal([]byte(fake.messages[0].payload), &got))
	assert.Equal(t, ev, got)

	c.Disconnect()
	assert.False(t, c.IsConnected())
}

func TestPublisherEscapesCameraTopicLevel(t *testing.T) {
	fake := &fakePaho{}
	c, _ := newTestClient(t, fake)
	require.NoError(t, c.Connect(context.Background()))
	p := NewPublisher(c, "fw/alerts")

	tests := []struct {
		cameraID string
		want     string
	}{
		{cameraID: "Axis-BaldMtn", want: "fw/alerts/Axis-BaldMtn"},
		{cameraID: "north/ridge", want: "fw/alerts/north%2Fridge"},
		{cameraID: "cam+1", want: "fw/alerts/cam%2B1"},
		{cameraID: "cam#2", want: "fw/alerts/cam%232"},
		{cameraID: "100%", want: "fw/alerts/100%25"},
	}
	for i, tt := range tests {
		require.NoError(t, p.PublishAlert(context.Background(), AlertEvent{CameraID: tt.cameraID}))
		require.Len(t, fake.messages, i+1)
		assert.Equal(t, tt.want, fake.messages[i].topic, tt.cameraID)
	}
}
