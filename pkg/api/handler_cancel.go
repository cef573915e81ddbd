package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// cancelHandler signals a run's cooperative cancellation token. It is not
// an error to cancel a run that has already settled — Cancel simply
// reports that no signal was needed.
func (s *Server) cancelHandler(c *echo.Context) error {
	var req idRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if _, ok := s.runs.Get(req.ID); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}

	cancelled := s.runs.Cancel(req.ID)
	return c.JSON(http.StatusOK, cancelResponse{ID: req.ID, Cancelled: cancelled})
}
