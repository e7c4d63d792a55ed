package notifier

import (
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/httpclient"
	"github.com/firewatch-dev/firewatch/internal/phone"
)

const (
	testSID        = "AC0123456789abcdef0123456789abcdef"
	testMessageURL = "https://api.twilio.test/2010-04-01/Accounts/" + testSID + "/Messages.json"
)

func newTwilio(t *testing.T, token string) (*TwilioNotifier, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{Transport: mock})
	t.Cleanup(client.Close)
	n := NewTwilioNotifier(client, conf.TwilioSettings{
		APIBase:    "https://api.twilio.test/",
		AccountSID: testSID,
		FromNumber: "+18668859350",
	}, token)
	return n, mock
}

func TestTwilioSend(t *testing.T) {
	n, mock := newTwilio(t, "secret-token")
	mock.RegisterResponder(http.MethodPost, testMessageURL, func(req *http.Request) (*http.Response, error) {
		user, pass, ok := req.BasicAuth()
		if !ok || user != testSID || pass != "secret-token" {
			return httpmock.NewStringResponse(http.StatusUnauthorized, `{"code":20003,"message":"Authenticate"}`), nil
		}
		if err := req.ParseForm(); err != nil {
			return nil, err
		}
		assert.Equal(t, "+14155551234", req.PostForm.Get("To"))
		assert.Equal(t, "+18668859350", req.PostForm.Get("From"))
		assert.Equal(t, "hello", req.PostForm.Get("Body"))
		return httpmock.NewStringResponse(http.StatusCreated, `{"sid":"SM123","status":"queued","to":"+14155551234"}`), nil
	})

	receipt, err := n.Send(t.Context(), "(415) 555-1234", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SM123", receipt.MessageID)
	assert.Equal(t, "queued", receipt.Status)
	assert.Equal(t, "+14155551234", receipt.Destination)
	assert.Equal(t, ProviderTwilio, receipt.Provider)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestTwilioErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantIs     error
		wantStatus int
	}{
		{"unauthorized", http.StatusUnauthorized, `{"code":20003,"message":"Authenticate"}`, ErrNotifierUnavailable, http.StatusInternalServerError},
		{"invalid to", http.StatusBadRequest, `{"code":21211,"message":"The 'To' number is not valid."}`, phone.ErrInvalidPhoneNumber, http.StatusBadRequest},
		{"server error", http.StatusServiceUnavailable, `{"code":20500,"message":"Internal"}`, ErrNotifierUnavailable, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, mock := newTwilio(t, "secret-token")
			mock.RegisterResponder(http.MethodPost, testMessageURL, httpmock.NewStringResponder(tt.status, tt.body))

			_, err := n.Send(t.Context(), "4155551234", "hello")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantStatus, errors.HTTPStatus(err))
			assert.NotContains(t, err.Error(), "secret-token")
			assert.Equal(t, 1, mock.GetTotalCallCount(), "exactly one attempt")
		})
	}
}

func TestTwilioTransportFailure(t *testing.T) {
	n, mock := newTwilio(t, "secret-token")
	mock.RegisterResponder(http.MethodPost, testMessageURL, httpmock.NewErrorResponder(assert.AnError))

	_, err := n.Send(t.Context(), "4155551234", "hello")
	require.ErrorIs(t, err, ErrNotifierUnavailable)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestTwilioValidatesBeforeSending(t *testing.T) {
	n, mock := newTwilio(t, "")

	_, err := n.Send(t.Context(), "12345", "hello")
	assert.ErrorIs(t, err, phone.ErrInvalidPhoneNumber)

	_, err = n.Send(t.Context(), "4155551234", "")
	assert.ErrorIs(t, err, ErrMessageRequired)

	_, err = n.Send(t.Context(), "4155551234", "hello")
	require.ErrorIs(t, err, ErrNotifierUnavailable)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	assert.Zero(t, mock.GetTotalCallCount())
}
