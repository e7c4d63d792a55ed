package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/httpclient"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/phone"
)

// twilioInvalidTo is the Twilio error code for an invalid destination number.
const twilioInvalidTo = 21211

const maxTwilioResponse = 64 << 10

// TwilioNotifier sends SMS through the Twilio Messages API.
type TwilioNotifier struct {
	client     *httpclient.Client
	apiBase    string
	accountSID string
	authToken  string
	from       string
	log        logger.Logger
}

// NewTwilioNotifier builds a notifier from resolved credentials. Missing
// credentials are reported on Send, so the API can still serve other routes.
func NewTwilioNotifier(client *httpclient.Client, settings conf.TwilioSettings, authToken string) *TwilioNotifier {
	base := strings.TrimRight(settings.APIBase, "/")
	if base == "" {
		base = conf.DefaultTwilioAPIBase
	}
	return &TwilioNotifier{
		client:     client,
		apiBase:    base,
		accountSID: settings.AccountSID,
		authToken:  authToken,
		from:       settings.FromNumber,
		log:        logger.Global().Module(componentNotifier).Module(ProviderTwilio),
	}
}

func (t *TwilioNotifier) Name() string { return ProviderTwilio }

type twilioMessage struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	To      string `json:"to"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send posts one message. The number is normalized to E.164 first.
func (t *TwilioNotifier) Send(ctx context.Context, phoneNumber, message string) (*Receipt, error) {
	if err := requireMessage(message); err != nil {
		return nil, err
	}
	to, err := phone.E164(phoneNumber)
	if err != nil {
		return nil, err
	}
	if t.accountSID == "" || t.authToken == "" || t.from == "" {
		return nil, configMissing(ProviderTwilio, "Twilio credentials")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.apiBase, url.PathEscape(t.accountSID))
	form := url.Values{"To": {to}, "From": {t.from}, "Body": {message}}

	resp, err := t.client.PostForm(ctx, endpoint, form, t.accountSID, t.authToken)
	if err != nil {
		return nil, unavailable(ProviderTwilio, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTwilioResponse))
	if err != nil {
		return nil, unavailable(ProviderTwilio, err)
	}
	var msg twilioMessage
	if len(body) > 0 {
		if err := json.Unmarshal(body, &msg); err != nil && resp.StatusCode < 300 {
			return nil, unavailable(ProviderTwilio, fmt.Errorf("decoding response: %w", err))
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.New(fmt.Errorf("%w: credentials rejected (HTTP %d)", ErrNotifierUnavailable, resp.StatusCode)).
			Component(componentNotifier).
			Category(errors.CategoryConfiguration).
			Context("provider", ProviderTwilio).
			Build()
	case msg.Code == twilioInvalidTo:
		return nil, errors.New(fmt.Errorf("%w: %s", phone.ErrInvalidPhoneNumber, msg.Message)).
			Component(componentNotifier).
			Context("provider", ProviderTwilio).
			Build()
	case resp.StatusCode >= 300:
		return nil, errors.New(fmt.Errorf("%w: HTTP %d: %s", ErrNotifierUnavailable, resp.StatusCode, msg.Message)).
			Component(componentNotifier).
			Context("provider", ProviderTwilio).
			Context("twilio_code", msg.Code).
			Context("http_status", resp.StatusCode).
			Build()
	}

	t.log.Info("sms submitted",
		logger.String("to", phone.Mask(to)),
		logger.String("sid", msg.SID),
		logger.String("status", msg.Status))

	return &Receipt{
		Provider:    ProviderTwilio,
		MessageID:   msg.SID,
		Status:      msg.Status,
		Destination: to,
		SubmittedAt: time.Now(),
	}, nil
}
