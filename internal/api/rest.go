package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/firewatch-dev/firewatch/internal/camera"
	"github.com/firewatch-dev/firewatch/internal/reading"
	"github.com/firewatch-dev/firewatch/internal/subscription"
)

type createSubscriptionRequest struct {
	CameraID    string `json:"cameraId"`
	PhoneNumber string `json:"phoneNumber"`
	UserID      string `json:"userId"`
}

func (s *Server) listSubscriptions(c echo.Context) error {
	if s.subscriptions == nil {
		return s.fail(c, errUnconfigured, "Subscription store not configured")
	}
	ctx := c.Request().Context()
	var (
		subs []subscription.Subscription
		err  error
	)
	if userID := c.QueryParam("user_id"); userID != "" {
		subs, err = s.subscriptions.ListByUser(ctx, userID)
	} else {
		subs, err = s.subscriptions.List(ctx)
	}
	if err != nil {
		return s.fail(c, err, "Failed to list subscriptions")
	}
	if subs == nil {
		subs = []subscription.Subscription{}
	}
	return c.JSON(http.StatusOK, subs)
}

// createSubscription stores a subscription and sends the welcome message.
func (s *Server) createSubscription(c echo.Context) error {
	var req createSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "Invalid request body")
	}
	if s.subscriptions == nil {
		return s.fail(c, errUnconfigured, "Subscription store not configured")
	}
	created, err := s.subscriptions.Subscribe(c.Request().Context(), req.CameraID, req.PhoneNumber, req.UserID)
	if err != nil {
		return s.fail(c, err, "Failed to create subscription")
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) deleteSubscription(c echo.Context) error {
	if s.subscriptions == nil {
		return s.fail(c, errUnconfigured, "Subscription store not configured")
	}
	if err := s.subscriptions.Unsubscribe(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, err, "Failed to delete subscription")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listCameras(c echo.Context) error {
	if s.cameras == nil {
		return c.JSON(http.StatusOK, []camera.Camera{})
	}
	return c.JSON(http.StatusOK, s.cameras.All())
}

// cameraReadings returns readings newest first: the last ?window when given
// (e.g. "1h"), otherwise the most recent ones.
func (s *Server) cameraReadings(c echo.Context) error {
	if s.readings == nil {
		return s.fail(c, errUnconfigured, "Reading store not configured")
	}
	ctx := c.Request().Context()
	id := c.Param("id")

	var (
		readings []reading.Reading
		err      error
	)
	if w := c.QueryParam("window"); w != "" {
		window, perr := time.ParseDuration(w)
		if perr != nil || window <= 0 {
			return s.badRequest(c, "Invalid window duration")
		}
		readings, err = s.readings.Since(ctx, id, window, reading.NewestFirst)
	} else {
		readings, err = s.readings.Recent(ctx, id, 0)
	}
	if err != nil {
		return s.fail(c, err, "Failed to fetch camera data")
	}
	if readings == nil {
		readings = []reading.Reading{}
	}
	return c.JSON(http.StatusOK, readings)
}

func (s *Server) getDashboard(c echo.Context) error {
	if s.dashboard == nil {
		return s.fail(c, errUnconfigured, "Dashboard not configured")
	}
	sum, err := s.dashboard.Summary(c.Request().Context())
	if err != nil {
		return s.fail(c, err, "Failed to build dashboard")
	}
	return c.JSON(http.StatusOK, sum)
}
