// env.go - Environment variable configuration and validation for FireWatch
package conf

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes the generic FIREWATCH_SECTION_KEY overrides.
const EnvPrefix = "FIREWATCH"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the provider credential variables the deployment
// sets out-of-band, with validation.
func getEnvBindings() []envBinding {
	return []envBinding{
		// Reading store
		{"reading.access_key_id", "AWS_ACCESS_KEY_ID", validateEnvAccessKeyID},
		{"reading.secret_access_key", "AWS_SECRET_ACCESS_KEY", nil},

		// Direct SMS
		{"notifier.twilio.account_sid", "TWILIO_ACCOUNT_SID", validateEnvTwilioSID},
		{"notifier.twilio.auth_token", "TWILIO_AUTH_TOKEN", nil},
		{"notifier.twilio.from_number", "TWILIO_PHONE_NUMBER", validateEnvPhone},

		// Email relay
		{"notifier.email.username", "SMTP_USERNAME", nil},
		{"notifier.email.password", "SMTP_PASSWORD", nil},
		{"notifier.email.from", "FROM_EMAIL", validateEnvEmail},

		// Subscription store
		{"subscription.dsn", "SUPABASE_DB_URL", validateEnvDSN},

		// Telemetry
		{"telemetry.dsn", "SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				// Values are credentials: report the variable, never the value.
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

var accessKeyIDPattern = regexp.MustCompile(`^[A-Z0-9]{16,128}$`)

func validateEnvAccessKeyID(value string) error {
	if !accessKeyIDPattern.MatchString(strings.TrimSpace(value)) {
		return fmt.Errorf("access key id must be 16-128 upper-case alphanumeric characters")
	}
	return nil
}

var twilioSIDPattern = regexp.MustCompile(`^AC[0-9a-fA-F]{32}$`)

func validateEnvTwilioSID(value string) error {
	if !twilioSIDPattern.MatchString(strings.TrimSpace(value)) {
		return fmt.Errorf("account SID must be 'AC' followed by 32 hex characters")
	}
	return nil
}

func validateEnvPhone(value string) error {
	digits := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 10 || digits > 15 {
		return fmt.Errorf("phone number must contain 10-15 digits, got %d", digits)
	}
	return nil
}

func validateEnvEmail(value string) error {
	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 {
		return fmt.Errorf("expected an address like alerts@example.com")
	}
	return nil
}

func validateEnvDSN(value string) error {
	if strings.Contains(value, "://") {
		return validateEnvURL(value)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host")
	}
	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if raw := os.Getenv(EnvPrefix + "_DEBUG"); raw != "" {
		if err := validateEnvBool(raw); err != nil {
			return fmt.Errorf("environment variable issues:\n  - %s: %w", EnvPrefix+"_DEBUG", err)
		}
	}
	return bindEnvVars(v)
}
