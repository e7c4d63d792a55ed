// config.go: settings struct for FireWatch and the functions to load and print it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/firewatch-dev/firewatch/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// ServerSettings configures the HTTP API server.
type ServerSettings struct {
	Listen          string        `yaml:"listen" mapstructure:"listen"`                     // listen address, e.g. ":8080"
	BodyLimit       string        `yaml:"body_limit" mapstructure:"body_limit"`             // maximum request body, e.g. "1M"
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`   // CORS origins, "*" allows any
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`         // http.Server read timeout
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`       // http.Server write timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"` // graceful shutdown budget
}

// TableSettings names a DynamoDB table and the region it lives in.
type TableSettings struct {
	Region string `yaml:"region" mapstructure:"region"`
	Table  string `yaml:"table" mapstructure:"table"`
	Index  string `yaml:"index" mapstructure:"index"` // secondary index on (cam_name, timestamp), empty for the base table
}

// ReadingSettings configures the reading store client.
type ReadingSettings struct {
	Backend             string        `yaml:"backend" mapstructure:"backend"` // dynamodb or memory
	Alerts              TableSettings `yaml:"alerts" mapstructure:"alerts"`   // table the scanner reads
	History             TableSettings `yaml:"history" mapstructure:"history"` // table behind the reading fetch endpoint
	Endpoint            string        `yaml:"endpoint" mapstructure:"endpoint"`
	RecentLimit         int           `yaml:"recent_limit" mapstructure:"recent_limit"`
	ClientTTL           time.Duration `yaml:"client_ttl" mapstructure:"client_ttl"`                 // lifetime of a cached store client, must stay under 1h
	CredentialSource    string        `yaml:"credential_source" mapstructure:"credential_source"`   // config, remote or chain
	AccessKeyID         string        `yaml:"access_key_id" mapstructure:"access_key_id"`           // supports ${VAR}
	AccessKeyIDFile     string        `yaml:"access_key_id_file" mapstructure:"access_key_id_file"` // preferred over AccessKeyID
	SecretAccessKey     string        `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SecretAccessKeyFile string        `yaml:"secret_access_key_file" mapstructure:"secret_access_key_file"`
	DemoData            string        `yaml:"demo_data" mapstructure:"demo_data"` // JSON readings loaded by the memory backend
}

// TwilioSettings configures the direct SMS transport.
type TwilioSettings struct {
	APIBase       string        `yaml:"api_base" mapstructure:"api_base"`
	AccountSID    string        `yaml:"account_sid" mapstructure:"account_sid"`
	AuthToken     string        `yaml:"auth_token" mapstructure:"auth_token"`
	AuthTokenFile string        `yaml:"auth_token_file" mapstructure:"auth_token_file"`
	FromNumber    string        `yaml:"from_number" mapstructure:"from_number"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmailSettings configures the email-to-SMS relay.
type EmailSettings struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	Username     string `yaml:"username" mapstructure:"username"`
	Password     string `yaml:"password" mapstructure:"password"`
	PasswordFile string `yaml:"password_file" mapstructure:"password_file"`
	From         string `yaml:"from" mapstructure:"from"`
	Carrier      string `yaml:"carrier" mapstructure:"carrier"` // default carrier when the number carries none
}

// NotifierSettings selects and configures the notification transport.
type NotifierSettings struct {
	Provider      string         `yaml:"provider" mapstructure:"provider"` // twilio, email or log
	AlertProvider string         `yaml:"alert_provider" mapstructure:"alert_provider"`
	RatePerMinute int            `yaml:"rate_per_minute" mapstructure:"rate_per_minute"` // 0 disables rate limiting
	Burst         int            `yaml:"burst" mapstructure:"burst"`
	MaxLength     int            `yaml:"max_length" mapstructure:"max_length"`       // 0 means unlimited
	LengthPolicy  string         `yaml:"length_policy" mapstructure:"length_policy"` // truncate or reject
	Twilio        TwilioSettings `yaml:"twilio" mapstructure:"twilio"`
	Email         EmailSettings  `yaml:"email" mapstructure:"email"`
}

// SubscriptionSettings configures the relational subscription store.
type SubscriptionSettings struct {
	Driver        string `yaml:"driver" mapstructure:"driver"` // sqlite, mysql or postgres
	DSN           string `yaml:"dsn" mapstructure:"dsn"`
	DSNFile       string `yaml:"dsn_file" mapstructure:"dsn_file"`
	WelcomePolicy string `yaml:"welcome_policy" mapstructure:"welcome_policy"` // nonblocking or rollback
	Debug         bool   `yaml:"debug" mapstructure:"debug"`
}

// SuppressionSettings configures duplicate alert suppression.
type SuppressionSettings struct {
	Policy string        `yaml:"policy" mapstructure:"policy"` // none, memory or redis
	TTL    time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// AlertSettings configures the alert scanner.
type AlertSettings struct {
	Window      time.Duration       `yaml:"window" mapstructure:"window"`       // recency window, 600s by default
	MinScore    float64             `yaml:"min_score" mapstructure:"min_score"` // 0 means label only
	Concurrency int                 `yaml:"concurrency" mapstructure:"concurrency"`
	Interval    time.Duration       `yaml:"interval" mapstructure:"interval"` // periodic scan inside serve, 0 disables
	Timeout     time.Duration       `yaml:"timeout" mapstructure:"timeout"`   // deadline for one scan
	Suppression SuppressionSettings `yaml:"suppression" mapstructure:"suppression"`
}

// CameraSettings points at the camera catalog.
type CameraSettings struct {
	Catalog string `yaml:"catalog" mapstructure:"catalog"` // JSON file, empty uses the built-in catalog
}

// DashboardSettings configures the dashboard summary.
type DashboardSettings struct {
	TrendWindow    time.Duration `yaml:"trend_window" mapstructure:"trend_window"`
	AlertThreshold float64       `yaml:"alert_threshold" mapstructure:"alert_threshold"`
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// SecretsSettings configures the secret retrieval indirection.
type SecretsSettings struct {
	Exposed   []string      `yaml:"exposed" mapstructure:"exposed"` // names the get-secret endpoint may serve
	RemoteURL string        `yaml:"remote_url" mapstructure:"remote_url"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// MQTTSettings configures alert event publishing.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Retain   bool   `yaml:"retain" mapstructure:"retain"`
}

// RedisSettings configures the redis connection used by the redis suppression policy.
type RedisSettings struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// TelemetrySettings configures Sentry error reporting.
type TelemetrySettings struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Settings is the complete FireWatch configuration.
type Settings struct {
	Debug        bool                 `yaml:"debug" mapstructure:"debug"`
	Logging      logger.Config        `yaml:"logging" mapstructure:"logging"`
	Server       ServerSettings       `yaml:"server" mapstructure:"server"`
	Reading      ReadingSettings      `yaml:"reading" mapstructure:"reading"`
	Notifier     NotifierSettings     `yaml:"notifier" mapstructure:"notifier"`
	Subscription SubscriptionSettings `yaml:"subscription" mapstructure:"subscription"`
	Alert        AlertSettings        `yaml:"alert" mapstructure:"alert"`
	Cameras      CameraSettings       `yaml:"cameras" mapstructure:"cameras"`
	Dashboard    DashboardSettings    `yaml:"dashboard" mapstructure:"dashboard"`
	Secrets      SecretsSettings      `yaml:"secrets" mapstructure:"secrets"`
	MQTT         MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	Redis        RedisSettings        `yaml:"redis" mapstructure:"redis"`
	Telemetry    TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
	Metrics      MetricsSettings      `yaml:"metrics" mapstructure:"metrics"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables. An empty
// configPath searches the default locations; a missing file there falls back
// to the built-in defaults.
func Load(configPath string) (*Settings, error) {
	v, err := initViper(configPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// initViper initializes a viper instance with default values and reads the configuration file.
func initViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		// Invalid environment values are reported but do not stop startup.
		logger.Global().Module("config").Warn("environment variable issues", logger.Error(err))
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("fatal error reading config file %s: %w", configPath, err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	for _, path := range GetDefaultConfigPaths() {
		v.AddConfigPath(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("fatal error reading config file: %w", err)
	}
	return v, nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "firewatch"))
	}
	return append(paths, "/etc/firewatch")
}

// DefaultConfig returns the annotated default configuration file.
func DefaultConfig() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteDefaultConfig writes the default configuration to path, creating
// parent directories. An existing file is left untouched.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := DefaultConfig()
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return nil
}

// GetSettings returns the settings from the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Redacted returns a copy of the settings with every credential field masked.
func (s *Settings) Redacted() *Settings {
	cp := *s
	cp.Secrets.Exposed = append([]string(nil), s.Secrets.Exposed...)
	cp.Server.AllowedOrigins = append([]string(nil), s.Server.AllowedOrigins...)
	redactStruct(reflect.ValueOf(&cp).Elem())
	// sqlite DSNs are file paths; server DSNs embed a password
	if cp.Subscription.DSN != "" && cp.Subscription.Driver != "sqlite" {
		cp.Subscription.DSN = redactedValue
	}
	if cp.Telemetry.DSN != "" {
		cp.Telemetry.DSN = redactedValue
	}
	return &cp
}

func redactStruct(v reflect.Value) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		name := t.Field(i).Name
		switch field.Kind() {
		case reflect.Struct:
			redactStruct(field)
		case reflect.String:
			if field.String() != "" && isCredentialField(name) {
				field.SetString(redactedValue)
			}
		}
	}
}

const redactedValue = "[REDACTED]"

// isCredentialField reports whether a settings field holds a secret value.
// Fields ending in File hold paths and are printed as is.
func isCredentialField(name string) bool {
	if strings.HasSuffix(name, "File") || name == "CredentialSource" {
		return false
	}
	return logger.IsSensitiveKey(name)
}

// WriteYAML marshals the settings with yaml.v3.
func (s *Settings) WriteYAML() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}
