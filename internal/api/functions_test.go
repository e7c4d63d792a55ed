package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch-dev/firewatch/internal/alert"
	"github.com/firewatch-dev/firewatch/internal/camera"
	"github.com/firewatch-dev/firewatch/internal/reading"
	"github.com/firewatch-dev/firewatch/internal/secrets"
	"github.com/firewatch-dev/firewatch/internal/subscription"
)

type staticLister struct {
	subs []subscription.Subscription
	err  error
}

func (l staticLister) List(context.Context) ([]subscription.Subscription, error) { return l.subs, l.err }

func TestCheckFireAlerts(t *testing.T) {
	now := time.Now()
	store := reading.NewMemoryStore()
	store.SetClock(func() time.Time { return now })
	require.NoError(t, store.Add(reading.Reading{
		CameraID:  "Axis-AlabamaHills1",
		Timestamp: now.Add(-2 * time.Minute).Unix(),
		FireScore: 0.83,
		Label:     reading.LabelFire,
	}))

	set, mock := newTestNotifiers(t, "twilio")
	mock.RegisterResponder(http.MethodPost, testMessageURL,
		httpmock.NewStringResponder(http.StatusCreated, `{"sid":"SM1","status":"queued"}`))

	subs := staticLister{subs: []subscription.Subscription{
		{ID: "sub-1", CameraID: "Axis-AlabamaHills1", PhoneNumber: "+14155551234"},
	}}
	scanner := alert.NewScanner(subs, store, set.Alerts,
		alert.Rule{Window: 10 * time.Minute, MinScore: 0.5},
		alert.WithClock(func() time.Time { return now }))
	s := newTestServer(t, WithScanner(scanner))

	rec := doRequest(t, s, http.MethodPost, "/functions/v1/check-fire-alerts", "{}")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Fire alert check completed", body["message"])
	report, ok := body["report"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 1, report["sent"], 0)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestCheckFireAlerts_ListFailure(t *testing.T) {
	set, mock := newTestNotifiers(t, "twilio")
	subs := staticLister{err: subscription.ErrStoreUnavailable}
	scanner := alert.NewScanner(subs, reading.NewMemoryStore(), set.Alerts, alert.Rule{Window: 10 * time.Minute})
	s := newTestServer(t, WithScanner(scanner))

	rec := doRequest(t, s, http.MethodPost, "/functions/v1/check-fire-alerts", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to check fire alerts", decodeBody(t, rec)["error"])
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestCheckFireAlerts_Unconfigured(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/functions/v1/check-fire-alerts", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Alert scanner not configured", decodeBody(t, rec)["error"])
}

func TestSendSMS(t *testing.T) {
	set, mock := newTestNotifiers(t, "twilio")
	s := newTestServer(t, WithNotifiers(set))

	t.Run("success", func(t *testing.T) {
		mock.Reset()
		mock.RegisterResponder(http.MethodPost, testMessageURL, func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "+14155551234", req.PostForm.Get("To"))
			assert.Equal(t, "smoke near ridge", req.PostForm.Get("Body"))
			return httpmock.NewStringResponse(http.StatusCreated, `{"sid":"SM42","status":"queued"}`), nil
		})

		rec := doRequest(t, s, http.MethodPost, "/functions/v1/send-sms",
			`{"to":"(415) 555-1234","message":"smoke near ridge"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "SM42", body["messageId"])
		assert.Equal(t, "queued", body["status"])
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/functions/v1/send-sms", `{"to":"+14155551234"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing required fields: to and message", decodeBody(t, rec)["error"])
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/functions/v1/send-sms", `{"to":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid number", func(t *testing.T) {
		mock.Reset()
		rec := doRequest(t, s, http.MethodPost, "/functions/v1/send-sms", `{"to":"12","message":"hi"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, mock.GetTotalCallCount())
	})

	t.Run("provider error", func(t *testing.T) {
		mock.Reset()
		mock.RegisterResponder(http.MethodPost, testMessageURL,
			httpmock.NewStringResponder(http.StatusBadRequest, `{"code":21606,"message":"From number not capable"}`))

		rec := doRequest(t, s, http.MethodPost, "/functions/v1/send-sms", `{"to":"+14155551234","message":"hi"}`)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeBody(t, rec)
		assert.Contains(t, body["error"], "From number not capable")
		assert.InDelta(t, 21606, body["code"], 0)
		assert.InDelta(t, http.StatusBadRequest, body["status"], 0)
	})
}

func TestSendSMS_Unconfigured(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/functions/v1/send-sms", `{"to":"+14155551234","message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "SMS provider not configured", decodeBody(t, rec)["error"])
}

func TestSendSMSViaEmail(t *testing.T) {
	set, _ := newTestNotifiers(t, "twilio")
	s := newTestServer(t, WithNotifiers(set))

	rec := doRequest(t, s, http.MethodPost, "/functions/v1/send-sms-via-email", `{"to":"555-12","message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid phone number format", decodeBody(t, rec)["error"])

	rec = doRequest(t, s, http.MethodPost, "/functions/v1/send-sms-via-email", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No SMTP credentials configured.
	rec = doRequest(t, s, http.MethodPost, "/functions/v1/send-sms-via-email", `{"to":"+14155551234","message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Failed to send SMS via email", body["error"])
	assert.NotContains(t, body["details"], "secret-token")
}

func TestSendAlert(t *testing.T) {
	set, mock := newTestNotifiers(t, "twilio")
	s := newTestServer(t, WithNotifiers(set), WithCameras(camera.Default()))

	var bodies []string
	mock.RegisterResponder(http.MethodPost, testMessageURL, func(req *http.Request) (*http.Response, error) {
		require.NoError(t, req.ParseForm())
		bodies = append(bodies, req.PostForm.Get("Body"))
		return httpmock.NewStringResponse(http.StatusCreated, `{"sid":"SM7","status":"queued"}`), nil
	})

	rec := doRequest(t, s, http.MethodPost, "/functions/v1/send-alert",
		`{"cameraId":"Axis-AlabamaHills1","probability":0.83,"phoneNumber":"+14155551234"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Message sent successfully", body["message"])
	assert.Equal(t, "SM7", body["messageId"])

	rec = doRequest(t, s, http.MethodPost, "/functions/v1/send-alert",
		`{"cameraName":"North Ridge","phoneNumber":"+14155551234","isWelcomeMessage":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], "Alabama Hills 1")
	assert.Contains(t, bodies[0], "with 83% probability")
	assert.Contains(t, bodies[1], "North Ridge")

	rec = doRequest(t, s, http.MethodPost, "/functions/v1/send-alert", `{"cameraId":"Axis-AlabamaHills1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Phone number is required", decodeBody(t, rec)["error"])

	rec = doRequest(t, s, http.MethodPost, "/functions/v1/send-alert", `{"phoneNumber":"+14155551234"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCameraData(t *testing.T) {
	now := time.Now()
	store := reading.NewMemoryStore()
	store.SetClock(func() time.Time { return now })
	require.NoError(t, store.Add(
		reading.Reading{CameraID: "cam-a", Timestamp: now.Add(-time.Hour).Unix(), FireScore: 0.1, Label: reading.LabelNoFire},
		reading.Reading{CameraID: "cam-a", Timestamp: now.Add(-time.Minute).Unix(), FireScore: 0.9, Label: reading.LabelFire},
	))
	store.FailCamera("cam-broken", reading.ErrStoreUnavailable)
	store.FailCamera("cam-nocreds", reading.ErrConfigMissing)
	s := newTestServer(t, WithReadings(store))

	t.Run("newest first", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/functions/v1/get-camera-data", `{"cameraId":"cam-a"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var got []reading.Reading
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Greater(t, got[0].Timestamp, got[1].Timestamp)
	})

	t.Run("unknown camera is empty list", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/functions/v1/get-camera-data", `{"cameraId":"cam-z"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("camera id required", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/functions/v1/get-camera-data", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Camera ID is required", decodeBody(t, rec)["error"])
	})

	t.Run("credentials missing", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/functions/v1/get-camera-data", `{"cameraId":"cam-nocreds"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "AWS credentials not configured", decodeBody(t, rec)["error"])
	})

	t.Run("store failure", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/functions/v1/get-camera-data", `{"cameraId":"cam-broken"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to fetch camera data", decodeBody(t, rec)["error"])
	})
}

func TestGetSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExposedSecrets = []string{"PUBLIC_MAP_KEY", "UNSET_KEY"}
	s, err := New(cfg, WithSecrets(secrets.StaticSource{
		"PUBLIC_MAP_KEY":    "pk-123",
		"TWILIO_AUTH_TOKEN": "tok",
	}))
	require.NoError(t, err)

	rec := doRequest(t, s, http.MethodPost, "/functions/v1/get-secret", `{"name":"PUBLIC_MAP_KEY"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"value":"pk-123"}`, rec.Body.String())

	for _, name := range []string{"TWILIO_AUTH_TOKEN", "UNSET_KEY"} {
		rec = doRequest(t, s, http.MethodPost, "/functions/v1/get-secret", `{"name":"`+name+`"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
		assert.JSONEq(t, `{"error":"Secret `+name+` not found","status":404}`, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPost, "/functions/v1/get-secret", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Secret name is required", decodeBody(t, rec)["error"])
}
