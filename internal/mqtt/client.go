package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/observability/metrics"
)

const componentMQTT = "mqtt"

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.NewKind("not connected to MQTT broker", errors.CategoryNetwork)

// client implements the Client interface.
type client struct {
	config          Config
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	metrics         *metrics.MQTTMetrics
	log             logger.Logger

	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewClient creates a new MQTT client with the provided configuration.
func NewClient(settings *conf.MQTTSettings, m *metrics.MQTTMetrics) (Client, error) {
	if settings.Broker == "" {
		return nil, errors.New(errors.NewStd("mqtt.broker is required")).
			Component(componentMQTT).
			Category(errors.CategoryConfiguration).
			Build()
	}
	cfg := DefaultConfig()
	cfg.Broker = settings.Broker
	cfg.Username = settings.Username
	cfg.Password = settings.Password
	cfg.Retain = settings.Retain
	if settings.ClientID != "" {
		cfg.ClientID = settings.ClientID
	}
	if settings.Topic != "" {
		cfg.Topic = settings.Topic
	}
	return newClient(cfg, m, mqtt.NewClient), nil
}

func newClient(cfg Config, m *metrics.MQTTMetrics, factory func(*mqtt.ClientOptions) mqtt.Client) *client {
	return &client{
		config:    cfg,
		metrics:   m,
		log:       logger.Global().Module(componentMQTT),
		newClient: factory,
	}
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", since)
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return c.fail(fmt.Errorf("invalid broker URL: %w", err), errors.CategoryConfiguration)
	}

	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.fail(fmt.Errorf("failed to resolve hostname %s: %w", host, err), errors.CategoryNetwork)
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internalClient = c.newClient(opts)

	token := c.internalClient.Connect()
	if !waitToken(ctx, token, c.config.ConnectTimeout) {
		return c.fail(fmt.Errorf("connection timeout"), errors.CategoryTimeout)
	}
	if err := token.Error(); err != nil {
		return c.fail(fmt.Errorf("connection error: %w", err), errors.CategoryNetwork)
	}

	c.metrics.UpdateConnectionStatus(true)
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic string, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		c.metrics.IncrementErrors()
		return errors.New(ErrNotConnected).
			Component(componentMQTT).
			Context("topic", topic).
			Build()
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, 1, c.config.Retain, payload)
	if !waitToken(ctx, token, c.config.PublishTimeout) {
		c.metrics.IncrementErrors()
		c.log.Warn("publish timeout", logger.String("topic", topic))
		return errors.New(errors.NewStd("publish timeout")).
			Component(componentMQTT).
			Category(errors.CategoryTimeout).
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors()
		return errors.New(err).
			Component(componentMQTT).
			Category(errors.CategoryNetwork).
			Context("topic", topic).
			Build()
	}

	c.metrics.ObservePublishLatency(time.Since(start).Seconds())
	c.metrics.IncrementMessagesDelivered()
	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.metrics.UpdateConnectionStatus(false)
	}
}

func (c *client) onConnect(mqtt.Client) {
	c.log.Info("connected to broker", logger.String("broker", c.config.Broker))
	c.metrics.UpdateConnectionStatus(true)
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("connection to broker lost", logger.String("broker", c.config.Broker), logger.Error(err))
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors()
}

func (c *client) onReconnecting(mqtt.Client, *mqtt.ClientOptions) {
	c.metrics.IncrementReconnectAttempts()
}

func (c *client) fail(err error, category errors.ErrorCategory) error {
	c.metrics.IncrementErrors()
	return errors.New(err).
		Component(componentMQTT).
		Category(category).
		Context("broker", c.config.Broker).
		Build()
}

// waitToken waits for a paho token, giving up at the timeout or when ctx ends.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
