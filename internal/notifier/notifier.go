// Package notifier delivers short text messages to phone numbers through
// Twilio or an email-to-SMS relay. Every Send makes exactly one delivery
// attempt; retrying is the caller's decision.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/firewatch-dev/firewatch/internal/errors"
)

const componentNotifier = "notifier"

// Sentinel errors. Match with errors.Is.
var (
	ErrNotifierUnavailable = errors.NewKind("notifier unavailable", errors.CategoryNotifier)
	ErrMessageRequired     = errors.NewKind("message is required", errors.CategoryValidation)
	ErrMessageTooLong      = errors.NewKind("message too long", errors.CategoryValidation)
	ErrRateLimited         = errors.NewKind("send rate exceeded", errors.CategoryLimit)
)

// Provider names.
const (
	ProviderTwilio = "twilio"
	ProviderEmail  = "email"
	ProviderLog    = "log"
)

// Receipt describes an accepted message.
type Receipt struct {
	Provider    string    `json:"provider"`
	MessageID   string    `json:"messageId"`
	Status      string    `json:"status"`
	Destination string    `json:"to"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Notifier sends one message to one phone number.
type Notifier interface {
	Name() string
	Send(ctx context.Context, phoneNumber, message string) (*Receipt, error)
}

func unavailable(provider string, err error) error {
	return errors.New(fmt.Errorf("%w: %w", ErrNotifierUnavailable, err)).
		Component(componentNotifier).
		Context("provider", provider).
		Build()
}

func configMissing(provider, what string) error {
	return errors.New(fmt.Errorf("%w: missing %s", ErrNotifierUnavailable, what)).
		Component(componentNotifier).
		Category(errors.CategoryConfiguration).
		Context("provider", provider).
		Build()
}

func requireMessage(message string) error {
	if message == "" {
		return errors.New(ErrMessageRequired).Component(componentNotifier).Build()
	}
	return nil
}
