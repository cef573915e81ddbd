package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// eventsHandler replays a bounded slice of a run's durable event log,
// letting a client resume a stream it disconnected from at start_id.
func (s *Server) eventsHandler(c *echo.Context) error {
	var req eventsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if _, ok := s.runs.Get(req.ID); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}

	startID := req.StartID
	if startID == "" {
		startID = "-"
	}
	endID := req.EndID
	if endID == "" {
		endID = "+"
	}

	events, hasMore, nextID, err := s.store.Range(c.Request().Context(), req.ID, startID, endID, req.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, eventsResponse{
		RunID:   req.ID,
		Events:  events,
		Count:   len(events),
		HasMore: hasMore,
		NextID:  nextID,
	})
}
