// Package phone normalizes North American phone numbers and maps them to
// carrier email-to-SMS gateway addresses.
package phone

import (
	"strings"

	"github.com/firewatch-dev/firewatch/internal/errors"
)

// ErrInvalidPhoneNumber is returned for numbers that do not reduce to ten digits.
var ErrInvalidPhoneNumber = errors.NewKind("invalid phone number", errors.CategoryValidation)

// DefaultCarrier is used when a number carries no carrier hint.
const DefaultCarrier = "verizon"

var gateways = map[string]string{
	"verizon": "vtext.com",
	"att":     "txt.att.net",
	"tmobile": "tmomail.net",
	"sprint":  "messaging.sprintpcs.com",
}

// Carriers lists the known carrier keys.
func Carriers() []string {
	return []string{"att", "sprint", "tmobile", "verizon"}
}

// Normalize strips every non-digit and returns the ten-digit national number.
// Eleven digits with a leading 1 lose the country code.
func Normalize(s string) (string, error) {
	number, _ := splitCarrier(s)
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 10:
		return digits, nil
	case len(digits) == 11 && digits[0] == '1':
		return digits[1:], nil
	}
	return "", errors.New(ErrInvalidPhoneNumber).
		Component("phone").
		Context("digits", len(digits)).
		Build()
}

// E164 normalizes s and returns it as +1XXXXXXXXXX.
func E164(s string) (string, error) {
	n, err := Normalize(s)
	if err != nil {
		return "", err
	}
	return "+1" + n, nil
}

// Gateway returns the gateway domain for carrier, falling back to the
// default carrier for unknown or empty names.
func Gateway(carrier string) string {
	if gw, ok := gateways[strings.ToLower(strings.TrimSpace(carrier))]; ok {
		return gw
	}
	return gateways[DefaultCarrier]
}

// GatewayAddress builds the email-to-SMS address for s. A carrier attached to
// the number as "5551234567;carrier=att" wins over fallbackCarrier.
func GatewayAddress(s, fallbackCarrier string) (string, error) {
	n, err := Normalize(s)
	if err != nil {
		return "", err
	}
	_, carrier := splitCarrier(s)
	if carrier == "" {
		carrier = fallbackCarrier
	}
	return n + "@" + Gateway(carrier), nil
}

// Mask hides all but the last four digits, for logs.
func Mask(s string) string {
	number, _ := splitCarrier(s)
	var digits []byte
	for i := 0; i < len(number); i++ {
		if number[i] >= '0' && number[i] <= '9' {
			digits = append(digits, number[i])
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

func splitCarrier(s string) (number, carrier string) {
	number, params, found := strings.Cut(s, ";")
	if !found {
		return s, ""
	}
	for p := range strings.SplitSeq(params, ";") {
		k, v, _ := strings.Cut(p, "=")
		if strings.EqualFold(strings.TrimSpace(k), "carrier") {
			carrier = strings.TrimSpace(v)
		}
	}
	return number, carrier
}
