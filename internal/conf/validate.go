// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %s", strings.Join(ve.Errors, "; "))
}

// Known option values.
var (
	ReadingBackends     = []string{"dynamodb", "memory"}
	CredentialSources   = []string{"config", "remote", "chain"}
	NotifierProviders   = []string{"twilio", "email", "log"}
	LengthPolicies      = []string{"truncate", "reject"}
	SubscriptionDrivers = []string{"sqlite", "mysql", "postgres"}
	WelcomePolicies     = []string{"nonblocking", "rollback"}
	SuppressionPolicies = []string{"none", "memory", "redis"}
)

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, check := range []func(*Settings) error{
		validateReadingSettings,
		validateNotifierSettings,
		validateSubscriptionSettings,
		validateAlertSettings,
		validateDashboardSettings,
		validateMQTTSettings,
	} {
		if err := check(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func oneOf(field, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
	}
	return nil
}

func validateReadingSettings(s *Settings) error {
	r := &s.Reading
	if err := oneOf("reading.backend", r.Backend, ReadingBackends); err != nil {
		return err
	}
	if err := oneOf("reading.credential_source", r.CredentialSource, CredentialSources); err != nil {
		return err
	}
	if r.ClientTTL <= 0 || r.ClientTTL >= MaxClientTTL {
		return fmt.Errorf("reading.client_ttl must be between 0 and %s, got %s", MaxClientTTL, r.ClientTTL)
	}
	if r.RecentLimit <= 0 {
		return fmt.Errorf("reading.recent_limit must be positive, got %d", r.RecentLimit)
	}
	if r.Backend == "dynamodb" && (r.Alerts.Table == "" || r.Alerts.Region == "") {
		return fmt.Errorf("reading.alerts.table and reading.alerts.region are required for the dynamodb backend")
	}
	if r.CredentialSource != "config" && s.Secrets.RemoteURL == "" {
		return fmt.Errorf("reading.credential_source %q requires secrets.remote_url", r.CredentialSource)
	}
	return nil
}

func validateNotifierSettings(s *Settings) error {
	n := &s.Notifier
	if err := oneOf("notifier.provider", n.Provider, NotifierProviders); err != nil {
		return err
	}
	if n.AlertProvider != "" {
		if err := oneOf("notifier.alert_provider", n.AlertProvider, NotifierProviders); err != nil {
			return err
		}
	}
	if err := oneOf("notifier.length_policy", n.LengthPolicy, LengthPolicies); err != nil {
		return err
	}
	if n.MaxLength < 0 {
		return fmt.Errorf("notifier.max_length must not be negative, got %d", n.MaxLength)
	}
	if n.RatePerMinute < 0 {
		return fmt.Errorf("notifier.rate_per_minute must not be negative, got %d", n.RatePerMinute)
	}
	if n.RatePerMinute > 0 && n.Burst < 1 {
		return fmt.Errorf("notifier.burst must be at least 1 when rate limiting is enabled")
	}
	if n.Email.Port < 0 || n.Email.Port > 65535 {
		return fmt.Errorf("notifier.email.port out of range: %d", n.Email.Port)
	}
	return nil
}

func validateSubscriptionSettings(s *Settings) error {
	if err := oneOf("subscription.driver", s.Subscription.Driver, SubscriptionDrivers); err != nil {
		return err
	}
	if err := oneOf("subscription.welcome_policy", s.Subscription.WelcomePolicy, WelcomePolicies); err != nil {
		return err
	}
	if s.Subscription.DSN == "" && s.Subscription.DSNFile == "" {
		return fmt.Errorf("subscription.dsn is required")
	}
	return nil
}

func validateAlertSettings(s *Settings) error {
	a := &s.Alert
	if a.Window <= 0 {
		return fmt.Errorf("alert.window must be positive, got %s", a.Window)
	}
	if a.MinScore < 0 || a.MinScore > 1 {
		return fmt.Errorf("alert.min_score must be between 0 and 1, got %g", a.MinScore)
	}
	if a.Concurrency < 1 {
		return fmt.Errorf("alert.concurrency must be at least 1, got %d", a.Concurrency)
	}
	if a.Interval < 0 {
		return fmt.Errorf("alert.interval must not be negative, got %s", a.Interval)
	}
	if err := oneOf("alert.suppression.policy", a.Suppression.Policy, SuppressionPolicies); err != nil {
		return err
	}
	if a.Suppression.Policy != "none" && a.Suppression.TTL <= 0 {
		return fmt.Errorf("alert.suppression.ttl must be positive when suppression is enabled")
	}
	return nil
}

func validateDashboardSettings(s *Settings) error {
	d := &s.Dashboard
	if d.TrendWindow <= 0 {
		return fmt.Errorf("dashboard.trend_window must be positive, got %s", d.TrendWindow)
	}
	if d.AlertThreshold < 0 || d.AlertThreshold > 1 {
		return fmt.Errorf("dashboard.alert_threshold must be between 0 and 1, got %g", d.AlertThreshold)
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if s.MQTT.Enabled && (s.MQTT.Broker == "" || s.MQTT.Topic == "") {
		return fmt.Errorf("mqtt.broker and mqtt.topic are required when mqtt is enabled")
	}
	return nil
}
