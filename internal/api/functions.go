package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/notifier"
	"github.com/firewatch-dev/firewatch/internal/phone"
	"github.com/firewatch-dev/firewatch/internal/reading"
	"github.com/firewatch-dev/firewatch/internal/secrets"
)

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type sendAlertRequest struct {
	CameraID         string  `json:"cameraId"`
	CameraName       string  `json:"cameraName"`
	Probability      float64 `json:"probability"`
	PhoneNumber      string  `json:"phoneNumber"`
	IsWelcomeMessage bool    `json:"isWelcomeMessage"`
}

type cameraDataRequest struct {
	CameraID string `json:"cameraId"`
}

type secretRequest struct {
	Name string `json:"name"`
}

// errUnconfigured is returned when a route's dependency was not wired.
var errUnconfigured = errors.NewKind("service not configured", errors.CategoryConfiguration)

// checkFireAlerts runs one alert scan.
func (s *Server) checkFireAlerts(c echo.Context) error {
	if s.scanner == nil {
		return s.fail(c, errUnconfigured, "Alert scanner not configured")
	}
	report, err := s.scanner.Scan(c.Request().Context())
	if err != nil {
		return s.fail(c, err, "Failed to check fire alerts")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Fire alert check completed",
		"report":  report,
	})
}

// sendSMS sends a message through Twilio.
func (s *Server) sendSMS(c echo.Context) error {
	var req smsRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.To) == "" || req.Message == "" {
		return s.badRequest(c, "Missing required fields: to and message")
	}

	n := s.sender(notifier.ProviderTwilio)
	if n == nil {
		return s.fail(c, errUnconfigured, "SMS provider not configured")
	}
	receipt, err := n.Send(c.Request().Context(), req.To, req.Message)
	if err != nil {
		status := errors.HTTPStatus(err)
		if status < http.StatusInternalServerError {
			return s.fail(c, err, "")
		}
		info := errorContext(err)
		s.log.Error("sending SMS failed", logger.String("to", phone.Mask(req.To)), logger.Error(err))
		return c.JSON(status, map[string]any{
			"error":  logger.RedactSensitiveData(err.Error()),
			"code":   info["twilio_code"],
			"status": info["http_status"],
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"messageId": receipt.MessageID,
		"status":    receipt.Status,
	})
}

// sendSMSViaEmail sends a message through the carrier email gateway.
func (s *Server) sendSMSViaEmail(c echo.Context) error {
	var req smsRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.To) == "" || req.Message == "" {
		return s.badRequest(c, "Missing required fields: to and message")
	}
	if _, err := phone.Normalize(req.To); err != nil {
		return s.badRequest(c, "Invalid phone number format")
	}

	n := s.sender(notifier.ProviderEmail)
	if n == nil {
		return s.fail(c, errUnconfigured, "Email relay not configured")
	}
	receipt, err := n.Send(c.Request().Context(), req.To, req.Message)
	if err != nil {
		return s.fail(c, err, "Failed to send SMS via email")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"to":      receipt.Destination,
	})
}

// sendAlert sends the templated welcome or probability alert. probability is
// either a fire score in (0, 1], sent as a rounded percent, or a percentage,
// sent as given.
func (s *Server) sendAlert(c echo.Context) error {
	var req sendAlertRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return s.badRequest(c, "Phone number is required")
	}

	name := req.CameraName
	if name == "" {
		if req.CameraID == "" {
			return s.badRequest(c, "Camera ID or name is required")
		}
		name = s.cameraName(req.CameraID)
	}

	body := notifier.ProbabilityAlert(name, req.Probability)
	if req.IsWelcomeMessage {
		body = notifier.Welcome(name)
	}

	n := s.sender("")
	if n == nil {
		return s.fail(c, errUnconfigured, "SMS provider not configured")
	}
	receipt, err := n.Send(c.Request().Context(), req.PhoneNumber, body)
	if err != nil {
		return s.fail(c, err, "Failed to send alert")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Message sent successfully",
		"messageId": receipt.MessageID,
	})
}

// getCameraData returns a camera's recent readings, newest first.
func (s *Server) getCameraData(c echo.Context) error {
	var req cameraDataRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.CameraID) == "" {
		return s.badRequest(c, "Camera ID is required")
	}
	if s.readings == nil {
		return s.fail(c, errUnconfigured, "Reading store not configured")
	}

	readings, err := s.readings.Recent(c.Request().Context(), req.CameraID, 0)
	switch {
	case errors.Is(err, reading.ErrConfigMissing):
		s.log.Error("reading store credentials missing", logger.Error(err))
		s.writeJSON(c, http.StatusInternalServerError, errorResponse{Error: "AWS credentials not configured"})
		return nil
	case err != nil:
		return s.fail(c, err, "Failed to fetch camera data")
	}
	if readings == nil {
		readings = []reading.Reading{}
	}
	return c.JSON(http.StatusOK, readings)
}

// getSecret returns an allowlisted secret value.
func (s *Server) getSecret(c echo.Context) error {
	var req secretRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return s.badRequest(c, "Secret name is required")
	}

	notFound := func() error {
		s.writeJSON(c, http.StatusNotFound, map[string]any{
			"error":  "Secret " + req.Name + " not found",
			"status": http.StatusNotFound,
		})
		return nil
	}
	if s.secrets == nil {
		return notFound()
	}
	value, err := s.secrets.Lookup(c.Request().Context(), req.Name)
	switch {
	case errors.Is(err, secrets.ErrNotSet):
		return notFound()
	case err != nil:
		return s.fail(c, err, "Failed to retrieve secret")
	}
	s.log.Info("secret served", logger.String("name", req.Name))
	return c.JSON(http.StatusOK, map[string]string{"value": value})
}

// sender returns the provider by name, or the default provider for "".
func (s *Server) sender(provider string) notifier.Notifier {
	if s.notifiers == nil {
		return nil
	}
	if provider == "" {
		return s.notifiers.Default
	}
	return s.notifiers.ByName(provider)
}

func (s *Server) cameraName(id string) string {
	if s.cameras == nil {
		return id
	}
	return s.cameras.DisplayName(id)
}
