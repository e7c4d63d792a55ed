// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with validation and the CLI.
const (
	DefaultAlertWindow     = 600 * time.Second
	DefaultClientTTL       = 50 * time.Minute
	MaxClientTTL           = time.Hour
	DefaultRecentLimit     = 100
	DefaultSuppressionTTL  = time.Hour
	DefaultAlertsTable     = "fire-or-no-fire"
	DefaultAlertsIndex     = "cam_name-timestamp-index"
	DefaultHistoryTable    = "camera_data"
	DefaultTwilioAPIBase   = "https://api.twilio.com"
	DefaultSMTPHost        = "smtp.gmail.com"
	DefaultSMTPPort        = 465
	DefaultSubscriptionDSN = "data/firewatch.db"
	DefaultRemoteTimeout   = 10 * time.Second
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.file", "")

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.body_limit", "1M")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("reading.backend", "dynamodb")
	v.SetDefault("reading.alerts.region", "us-east-2")
	v.SetDefault("reading.alerts.table", DefaultAlertsTable)
	v.SetDefault("reading.alerts.index", DefaultAlertsIndex)
	v.SetDefault("reading.history.region", "us-west-1")
	v.SetDefault("reading.history.table", DefaultHistoryTable)
	v.SetDefault("reading.history.index", "")
	v.SetDefault("reading.recent_limit", DefaultRecentLimit)
	v.SetDefault("reading.client_ttl", DefaultClientTTL)
	v.SetDefault("reading.credential_source", "config")

	v.SetDefault("notifier.provider", "twilio")
	v.SetDefault("notifier.alert_provider", "email")
	v.SetDefault("notifier.rate_per_minute", 0)
	v.SetDefault("notifier.burst", 1)
	v.SetDefault("notifier.max_length", 0)
	v.SetDefault("notifier.length_policy", "truncate")
	v.SetDefault("notifier.twilio.api_base", DefaultTwilioAPIBase)
	v.SetDefault("notifier.twilio.timeout", 15*time.Second)
	v.SetDefault("notifier.email.host", DefaultSMTPHost)
	v.SetDefault("notifier.email.port", DefaultSMTPPort)
	v.SetDefault("notifier.email.carrier", "verizon")

	v.SetDefault("subscription.driver", "sqlite")
	v.SetDefault("subscription.dsn", DefaultSubscriptionDSN)
	v.SetDefault("subscription.welcome_policy", "nonblocking")

	v.SetDefault("alert.window", DefaultAlertWindow)
	v.SetDefault("alert.min_score", 0.0)
	v.SetDefault("alert.concurrency", 1)
	v.SetDefault("alert.interval", time.Duration(0))
	v.SetDefault("alert.timeout", 2*time.Minute)
	v.SetDefault("alert.suppression.policy", "none")
	v.SetDefault("alert.suppression.ttl", DefaultSuppressionTTL)

	v.SetDefault("dashboard.trend_window", 24*time.Hour)
	v.SetDefault("dashboard.alert_threshold", 0.5)
	v.SetDefault("dashboard.cache_ttl", 30*time.Second)

	v.SetDefault("secrets.exposed", []string{})
	v.SetDefault("secrets.cache_ttl", 50*time.Minute)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "firewatch/alerts")
	v.SetDefault("mqtt.client_id", "firewatch")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("metrics.enabled", true)
}
