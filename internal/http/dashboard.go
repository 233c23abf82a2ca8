package http

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fyrsmithlabs/observerd/internal/ingest"
	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func userParam(c echo.Context) (string, error) {
	user, err := url.PathUnescape(c.Param("user"))
	if err != nil || user == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid user")
	}
	return user, nil
}

// handleDashboard returns the stored projections for one user without
// reducing anything.
func (s *Server) handleDashboard(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	projection, err := s.ingest.Dashboard(c.Request().Context(), user)
	if err != nil {
		s.logger.Error(c.Request().Context(), "read dashboard", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "dashboard unavailable")
	}
	return c.JSON(http.StatusOK, projection)
}

// handleDashboardStream streams live projections for one user via
// Server-Sent Events.
//
//	GET /api/v1/dashboard/{user}/stream
//
//	event: projection
//	data: {"total-time-on-task":12.5,...}
func (s *Server) handleDashboardStream(c echo.Context) error {
	if s.nc == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "live dashboard requires nats")
	}
	user, err := userParam(c)
	if err != nil {
		return err
	}

	msgChan := make(chan *nats.Msg, 64)
	sub, err := s.nc.ChanSubscribe(ingest.Subject(s.config.SubjectPrefix, user), msgChan)
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()
	// Make sure the server knows the subscription before the client does.
	if err := s.nc.Flush(); err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set("Content-Type", "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(s.config.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgChan:
			fmt.Fprintf(res, "event: projection\n")
			fmt.Fprintf(res, "data: %s\n\n", msg.Data)
			res.Flush()

		case <-ticker.C:
			fmt.Fprintf(res, ": heartbeat\n\n")
			res.Flush()

		case <-c.Request().Context().Done():
			return nil
		}
	}
}
