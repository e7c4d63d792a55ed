package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// handleError renders errors that escape handlers, including echo's own
// routing errors (404, 405, 413).
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		switch {
		case he.Code == http.StatusMethodNotAllowed:
			msg = "Method not allowed"
		case he.Code < http.StatusInternalServerError:
			if m, ok := he.Message.(string); ok && m != "" {
				msg = m
			}
		}
		s.writeJSON(c, he.Code, errorResponse{Error: msg})
		return
	}

	_ = s.fail(c, err, "Internal server error")
}

// fail maps err to a status code and writes the error body. Server-side
// failures answer with summary and carry the redacted cause in details;
// client errors answer with the cause itself.
func (s *Server) fail(c echo.Context, err error, summary string) error {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(summary,
			logger.String("path", c.Path()),
			logger.String("category", string(errors.CategoryOf(err))),
			logger.Error(err))
		s.writeJSON(c, status, errorResponse{Error: summary, Details: logger.RedactSensitiveData(err.Error())})
		return nil
	}
	s.writeJSON(c, status, errorResponse{Error: err.Error()})
	return nil
}

// badRequest answers 400 with a fixed message.
func (s *Server) badRequest(c echo.Context, msg string) error {
	s.writeJSON(c, http.StatusBadRequest, errorResponse{Error: msg})
	return nil
}

func (s *Server) writeJSON(c echo.Context, status int, body any) {
	if err := c.JSON(status, body); err != nil {
		s.log.Warn("writing response failed", logger.Error(err))
	}
}

// errorContext returns the context recorded on the first enhanced error in
// the chain.
func errorContext(err error) map[string]any {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetContext()
	}
	return nil
}
