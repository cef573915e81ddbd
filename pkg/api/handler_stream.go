package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/agentfleet/hive/pkg/eventbus"
)

// heartbeatInterval is how often the stream writes an SSE comment line to
// keep idle connections (and intermediary proxies) alive.
const heartbeatInterval = 15 * time.Second

// streamHandler serves a run's live event feed as Server-Sent Events.
// Adapted from the comment+flush SSE loop pattern, ported onto Echo v5's
// http.Flusher-backed Response.
func (s *Server) streamHandler(c *echo.Context) error {
	var req idRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	run, ok := s.runs.Get(req.ID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if run.Status().Terminal() {
		return echo.NewHTTPError(http.StatusNotFound, "live stream no longer available; use /runs/events to replay")
	}

	resp := c.Response()
	resp.Header().Set("Content-Type", "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	sub := s.bus.Subscribe(req.ID)
	defer s.bus.Unsubscribe(sub)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return nil
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", evt.Kind.String(), data)
			resp.Flush()
			if evt.Kind == eventbus.SystemClose {
				return nil
			}
		case <-ticker.C:
			fmt.Fprintf(resp, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339))
			resp.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}
