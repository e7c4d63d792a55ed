// Package telemetry forwards categorized errors to Sentry. Reporting is opt-in;
// events are scrubbed of credentials and phone numbers before they leave the
// process.
package telemetry

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
)

var initialized atomic.Bool

// phonePattern matches North American numbers in free text, with or without
// separators.
var phonePattern = regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`)

// Init configures the Sentry SDK and installs a Reporter on the errors package.
// It returns a nil reporter when telemetry is disabled.
func Init(settings conf.TelemetrySettings, release string) (*Reporter, error) {
	return initWithTransport(settings, release, nil)
}

func initWithTransport(settings conf.TelemetrySettings, release string, transport sentry.Transport) (*Reporter, error) {
	if !settings.Enabled {
		return nil, nil
	}
	if settings.DSN == "" {
		return nil, errors.Newf("telemetry enabled but no DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Environment:      settings.Environment,
		Release:          release,
		SampleRate:       1.0,
		AttachStacktrace: false,
		ServerName:       "",
		Transport:        transport,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	initialized.Store(true)

	r := &Reporter{}
	r.enabled.Store(true)
	errors.SetTelemetryReporter(r)

	logger.Global().Module("telemetry").Info("error telemetry enabled",
		logger.String("environment", settings.Environment))
	return r, nil
}

// Flush waits up to timeout for buffered events. It is a no-op when Init was
// never successful.
func Flush(timeout time.Duration) bool {
	if !initialized.Load() {
		return true
	}
	return sentry.Flush(timeout)
}

// Reporter implements errors.TelemetryReporter.
type Reporter struct {
	enabled atomic.Bool
}

func (r *Reporter) IsEnabled() bool { return r != nil && r.enabled.Load() }

// Disable stops forwarding without tearing down the SDK.
func (r *Reporter) Disable() { r.enabled.Store(false) }

func (r *Reporter) ReportError(ee *errors.EnhancedError) {
	if !r.IsEnabled() || ee == nil || ee.IsReported() {
		return
	}

	message := Scrub(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))
	title := errorTitle(ee)
	level := levelFor(ee)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for key, value := range ee.GetContext() {
			if logger.IsSensitiveKey(key) {
				continue
			}
			if s, ok := value.(string); ok {
				value = Scrub(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetFingerprint([]string{title, ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Level = level
		event.Message = message
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})
}

// Scrub removes credentials and phone numbers from s.
func Scrub(s string) string {
	s = logger.RedactSensitiveData(s)
	return phonePattern.ReplaceAllString(s, "[PHONE]")
}

func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	delete(event.Contexts, "device")
	delete(event.Contexts, "os")
	event.Message = Scrub(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = Scrub(event.Exception[i].Value)
	}
	if event.Request != nil {
		event.Request.Cookies = ""
		event.Request.Headers = nil
		event.Request.Data = ""
		event.Request.QueryString = ""
	}
	return event
}

func errorTitle(ee *errors.EnhancedError) string {
	parts := make([]string, 0, 3)
	if ee.Component != "" && ee.Component != errors.ComponentUnknown {
		parts = append(parts, titleCase(ee.Component))
	}
	parts = append(parts, titleCase(strings.ReplaceAll(string(ee.Category), "-", " ")))
	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		parts = append(parts, titleCase(strings.ReplaceAll(op, "_", " ")))
	}
	return strings.Join(parts, " ") + " Error"
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func levelFor(ee *errors.EnhancedError) sentry.Level {
	switch ee.Priority {
	case errors.PriorityCritical:
		return sentry.LevelFatal
	case errors.PriorityLow:
		return sentry.LevelInfo
	}
	switch ee.Category {
	case errors.CategoryValidation, errors.CategoryNotFound:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}
