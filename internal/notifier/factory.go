package notifier

import (
	"fmt"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/httpclient"
	"github.com/firewatch-dev/firewatch/internal/observability/metrics"
	"github.com/firewatch-dev/firewatch/internal/secrets"
)

// Set holds one wrapped notifier per provider plus the two configured roles:
// Default serves direct sends and welcome messages, Alerts serves the scanner.
type Set struct {
	providers map[string]Notifier
	Default   Notifier
	Alerts    Notifier
}

// ByName returns the notifier for provider, or nil.
func (s *Set) ByName(provider string) Notifier {
	return s.providers[provider]
}

// NewSet builds every provider from settings and wraps each with the length
// policy, rate limit and metrics. Credentials are resolved here; missing ones
// surface on Send rather than at startup.
func NewSet(settings *conf.NotifierSettings, client *httpclient.Client, m *metrics.NotifierMetrics) (*Set, error) {
	token, err := secrets.Resolve(settings.Twilio.AuthTokenFile, settings.Twilio.AuthToken)
	if err != nil {
		return nil, fmt.Errorf("notifier.twilio.auth_token: %w", err)
	}
	password, err := secrets.Resolve(settings.Email.PasswordFile, settings.Email.Password)
	if err != nil {
		return nil, fmt.Errorf("notifier.email.password: %w", err)
	}
	if client == nil {
		client = httpclient.New(&httpclient.Config{DefaultTimeout: settings.Twilio.Timeout})
	}

	raw := map[string]Notifier{
		ProviderTwilio: NewTwilioNotifier(client, settings.Twilio, token),
		ProviderEmail:  NewEmailRelayNotifier(settings.Email, password, settings.Twilio.Timeout),
		ProviderLog:    NewLogNotifier(),
	}
	return newSet(raw, settings, m)
}

func newSet(raw map[string]Notifier, settings *conf.NotifierSettings, m *metrics.NotifierMetrics) (*Set, error) {
	s := &Set{providers: make(map[string]Notifier, len(raw))}
	for name, n := range raw {
		n = NewInstrumented(n, m)
		n = NewRateLimited(n, settings.RatePerMinute, settings.Burst, m)
		n = WithLengthLimit(n, settings.MaxLength, LengthPolicy(settings.LengthPolicy))
		s.providers[name] = n
	}

	var ok bool
	if s.Default, ok = s.providers[settings.Provider]; !ok {
		return nil, fmt.Errorf("unknown notifier provider %q", settings.Provider)
	}
	alerts := settings.AlertProvider
	if alerts == "" {
		alerts = settings.Provider
	}
	if s.Alerts, ok = s.providers[alerts]; !ok {
		return nil, fmt.Errorf("unknown alert notifier provider %q", alerts)
	}
	return s, nil
}
