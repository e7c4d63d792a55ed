// Package app assembles the FireWatch components from settings. The serve,
// scan and subscriptions commands share this wiring.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/firewatch-dev/firewatch/internal/alert"
	"github.com/firewatch-dev/firewatch/internal/api"
	"github.com/firewatch-dev/firewatch/internal/buildinfo"
	"github.com/firewatch-dev/firewatch/internal/camera"
	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/dashboard"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/mqtt"
	"github.com/firewatch-dev/firewatch/internal/notifier"
	"github.com/firewatch-dev/firewatch/internal/observability"
	"github.com/firewatch-dev/firewatch/internal/reading"
	"github.com/firewatch-dev/firewatch/internal/secrets"
	"github.com/firewatch-dev/firewatch/internal/subscription"
)

const mqttRetryInterval = 30 * time.Second

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Settings      *conf.Settings
	Info          *buildinfo.Context
	Metrics       *observability.Metrics
	Readings      reading.Store
	Store         *subscription.GormStore
	Subscriptions *subscription.Service
	Notifiers     *notifier.Set
	Cameras       *camera.Catalog
	Scanner       *alert.Scanner
	Dashboard     *dashboard.Service

	redis *redis.Client
	mqtt  mqtt.Client
	log   logger.Logger
	wg    sync.WaitGroup
	stop  context.CancelFunc
}

// New builds every component. Nothing connects to the network here except the
// subscription database; MQTT connects in the background once Start runs.
func New(settings *conf.Settings, info *buildinfo.Context) (_ *App, err error) {
	a := &App{
		Settings: settings,
		Info:     info,
		log:      logger.Global().Module("app"),
		stop:     func() {},
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Metrics, err = observability.NewMetrics(); err != nil {
		return nil, err
	}
	if a.Cameras, err = camera.Load(settings.Cameras.Catalog); err != nil {
		return nil, err
	}
	if a.Readings, err = reading.Open(settings, a.Metrics.Reading); err != nil {
		return nil, fmt.Errorf("opening reading store: %w", err)
	}
	if a.Notifiers, err = notifier.NewSet(&settings.Notifier, nil, a.Metrics.Notifier); err != nil {
		return nil, fmt.Errorf("building notifiers: %w", err)
	}
	if a.Store, err = subscription.Open(&settings.Subscription); err != nil {
		return nil, fmt.Errorf("opening subscription store: %w", err)
	}
	a.Subscriptions = subscription.NewService(a.Store, a.Notifiers.Default, a.Cameras,
		subscription.WelcomePolicy(settings.Subscription.WelcomePolicy))

	if settings.Alert.Suppression.Policy == "redis" {
		a.redis = alert.NewRedisClient(&settings.Redis)
	}
	suppressor, err := alert.NewSuppressor(settings.Alert.Suppression, a.redis)
	if err != nil {
		return nil, err
	}

	opts := []alert.Option{
		alert.WithCameras(a.Cameras),
		alert.WithSuppressor(suppressor),
		alert.WithMetrics(a.Metrics.Alert),
		alert.WithConcurrency(settings.Alert.Concurrency),
	}
	if settings.MQTT.Enabled {
		if a.mqtt, err = mqtt.NewClient(&settings.MQTT, a.Metrics.MQTT); err != nil {
			return nil, err
		}
		opts = append(opts, alert.WithPublisher(mqtt.NewPublisher(a.mqtt, settings.MQTT.Topic)))
	}
	a.Scanner = alert.NewScanner(a.Store, a.Readings, a.Notifiers.Alerts,
		alert.Rule{Window: settings.Alert.Window, MinScore: settings.Alert.MinScore}, opts...)

	a.Dashboard = dashboard.NewService(a.Readings, a.Cameras, settings.Dashboard)
	return a, nil
}

// Start launches the background work: the MQTT connection and, when
// alert.interval is set, periodic scans.
func (a *App) Start(ctx context.Context) {
	ctx, a.stop = context.WithCancel(ctx)
	if a.mqtt != nil {
		a.wg.Go(func() { a.connectMQTT(ctx) })
	}
	if a.Settings.Alert.Interval > 0 {
		a.wg.Go(func() { a.Scanner.Run(ctx, a.Settings.Alert.Interval, a.Settings.Alert.Timeout) })
	}
}

// connectMQTT retries until the first connection succeeds. Later drops are
// handled by the client's own reconnect.
func (a *App) connectMQTT(ctx context.Context) {
	ticker := time.NewTicker(mqttRetryInterval)
	defer ticker.Stop()
	for {
		err := a.mqtt.Connect(ctx)
		if err == nil {
			return
		}
		a.log.Warn("MQTT connection failed, retrying",
			logger.Error(err),
			logger.Duration("retry_in", mqttRetryInterval))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Server builds the HTTP server over the wired components.
func (a *App) Server() (*api.Server, error) {
	opts := []api.ServerOption{
		api.WithScanner(a.Scanner),
		api.WithSubscriptions(a.Subscriptions),
		api.WithNotifiers(a.Notifiers),
		api.WithReadings(a.Readings),
		api.WithCameras(a.Cameras),
		api.WithDashboard(a.Dashboard),
		api.WithSecrets(secrets.EnvSource{}),
		api.WithVersion(a.Info.GetVersion()),
		api.WithHealthCheck("subscriptions", a.Store.Ping),
	}
	if a.Settings.Metrics.Enabled {
		opts = append(opts, api.WithMetrics(a.Metrics))
	}
	if a.redis != nil {
		opts = append(opts, api.WithHealthCheck("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}))
	}
	if a.mqtt != nil {
		opts = append(opts, api.WithHealthCheck("mqtt", func(context.Context) error {
			if !a.mqtt.IsConnected() {
				return mqtt.ErrNotConnected
			}
			return nil
		}))
	}
	return api.New(api.ConfigFromSettings(a.Settings), opts...)
}

// Close stops background work and releases connections.
func (a *App) Close() {
	a.stop()
	a.wg.Wait()
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("closing redis client failed", logger.Error(err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.log.Warn("closing subscription store failed", logger.Error(err))
		}
	}
}
