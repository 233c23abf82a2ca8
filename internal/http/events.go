package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/ingest"
	"github.com/fyrsmithlabs/observerd/internal/stream"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Browser extensions connect from their own origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func metadataFrom(c echo.Context) event.Metadata {
	if id := c.Request().Header.Get(UserHeader); id != "" {
		return event.WithUser(id)
	}
	return event.Metadata{}
}

// eventStatus maps a processing error to an HTTP status and a client message.
func eventStatus(err error) (int, string) {
	switch {
	case errors.Is(err, event.ErrMalformed):
		return http.StatusBadRequest, "invalid event payload"
	case errors.Is(err, ingest.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limit exceeded"
	default:
		return http.StatusInternalServerError, "event processing failed"
	}
}

// handleEvents reduces a single event or a JSON array of events in one
// session. Events before a failing one stay persisted.
func (s *Server) handleEvents(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body")
	}
	events, err := event.DecodeBatch(body)
	if err != nil {
		s.logger.Debug(ctx, "rejected event batch", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event payload")
	}
	if len(events) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no events")
	}
	if limit := s.ingest.MaxBatch(); limit > 0 && len(events) > limit {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too many events in batch")
	}

	sess, err := s.ingest.Open(metadataFrom(c))
	if err != nil {
		s.logger.Error(ctx, "open session", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}
	defer sess.Close()

	resp := EventsResponse{
		SessionID: sess.ID(),
		UserID:    sess.UserID(),
		Results:   make([]stream.Projection, 0, len(events)),
	}
	for _, ev := range events {
		projection, err := sess.Handle(ctx, ev)
		if err != nil {
			status, msg := eventStatus(err)
			if status == http.StatusInternalServerError {
				s.logger.Error(ctx, "event failed", zap.Error(err), zap.Int("processed", resp.Processed))
			}
			return c.JSON(status, ErrorResponse{Error: msg, Processed: resp.Processed})
		}
		resp.Results = append(resp.Results, projection)
		resp.Projection = projection
		resp.Processed++
	}
	return c.JSON(http.StatusOK, resp)
}

// handleEventsWS keeps one session open per connection. Each text frame is
// one event; each reply is the merged projection or an ErrorResponse.
func (s *Server) handleEventsWS(c echo.Context) error {
	ctx := c.Request().Context()

	sess, err := s.ingest.Open(metadataFrom(c))
	if err != nil {
		s.logger.Error(ctx, "open session", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}
	defer sess.Close()

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already replied.
		s.logger.Debug(ctx, "websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer ws.Close()

	for {
		mt, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug(ctx, "websocket closed", zap.Error(err))
			}
			return nil
		}
		if mt != websocket.TextMessage {
			continue
		}

		var reply any
		projection, err := sess.HandleEvent(ctx, msg)
		if err != nil {
			_, text := eventStatus(err)
			s.logger.Warn(ctx, "websocket event failed", zap.Error(err))
			reply = ErrorResponse{Error: text}
		} else {
			reply = projection
		}
		if err := ws.WriteJSON(reply); err != nil {
			return nil
		}
	}
}
