package notifier

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/phone"
)

const implicitTLSPort = 465

// sendFunc delivers body to the service described by a shoutrrr URL.
type sendFunc func(ctx context.Context, serviceURL, body string, timeout time.Duration) error

// EmailRelayNotifier sends SMS as email to the carrier gateway of the number.
type EmailRelayNotifier struct {
	settings conf.EmailSettings
	password string
	timeout  time.Duration
	send     sendFunc
	log      logger.Logger
}

// NewEmailRelayNotifier builds a relay over SMTP with a resolved password.
func NewEmailRelayNotifier(settings conf.EmailSettings, password string, timeout time.Duration) *EmailRelayNotifier {
	return &EmailRelayNotifier{
		settings: settings,
		password: password,
		timeout:  timeout,
		send:     shoutrrrSend,
		log:      logger.Global().Module(componentNotifier).Module(ProviderEmail),
	}
}

func (e *EmailRelayNotifier) Name() string { return ProviderEmail }

// Send normalizes the number, picks the carrier gateway and mails message
// with an empty subject. The receipt's Destination is the gateway address.
func (e *EmailRelayNotifier) Send(ctx context.Context, phoneNumber, message string) (*Receipt, error) {
	if err := requireMessage(message); err != nil {
		return nil, err
	}
	address, err := phone.GatewayAddress(phoneNumber, e.settings.Carrier)
	if err != nil {
		return nil, err
	}
	if e.settings.Username == "" || e.password == "" || e.settings.From == "" {
		return nil, configMissing(ProviderEmail, "SMTP credentials")
	}

	serviceURL := e.serviceURL(address)
	if err := e.send(ctx, serviceURL, message, e.timeout); err != nil {
		// shoutrrr errors may echo the service URL, which carries the password
		return nil, unavailable(ProviderEmail, errors.NewStd(logger.RedactSensitiveData(err.Error())))
	}

	e.log.Info("sms relayed by email",
		logger.String("to", phone.Mask(phoneNumber)),
		logger.String("host", e.settings.Host))

	return &Receipt{
		Provider:    ProviderEmail,
		MessageID:   uuid.NewString(),
		Status:      "submitted",
		Destination: address,
		SubmittedAt: time.Now(),
	}, nil
}

// serviceURL builds the shoutrrr smtp URL for one recipient.
func (e *EmailRelayNotifier) serviceURL(recipient string) string {
	host := e.settings.Host
	if host == "" {
		host = conf.DefaultSMTPHost
	}
	port := e.settings.Port
	if port == 0 {
		port = conf.DefaultSMTPPort
	}
	encryption := "Auto"
	if port == implicitTLSPort {
		encryption = "ImplicitTLS"
	}

	q := url.Values{}
	q.Set("fromaddress", e.settings.From)
	q.Set("toaddresses", recipient)
	q.Set("subject", "")
	q.Set("auth", "Plain")
	q.Set("encryption", encryption)

	u := url.URL{
		Scheme:   "smtp",
		User:     url.UserPassword(e.settings.Username, e.password),
		Host:     host + ":" + strconv.Itoa(port),
		Path:     "/",
		RawQuery: q.Encode(),
	}
	return u.String()
}

func shoutrrrSend(ctx context.Context, serviceURL, body string, timeout time.Duration) error {
	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		return fmt.Errorf("creating sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	done := make(chan []error, 1)
	go func() { done <- sender.Send(body, &stypes.Params{}) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case errs := <-done:
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
	}
	return nil
}
