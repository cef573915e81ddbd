package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// getEventsBound caps how many events /runs/get inlines alongside the
// snapshot; a caller that needs the rest pages through /runs/events.
const getEventsBound = 500

// getHandler returns the full record of a run: its topology snapshot,
// aggregate statistics, and a bounded slice of its event log. Callers
// needing the rest of the log should page through /runs/events instead.
func (s *Server) getHandler(c *echo.Context) error {
	var req idRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	run, ok := s.runs.Get(req.ID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}

	events, hasMore, _, err := s.store.Range(c.Request().Context(), req.ID, "-", "+", getEventsBound)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, getResponse{
		Snapshot: run.Snapshot(),
		Events:   events,
		HasMore:  hasMore,
	})
}
