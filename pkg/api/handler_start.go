package api

import (
	"context"
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/agentfleet/hive/pkg/hierarchy"
)

// startHandler admits a new run against an existing hierarchy configuration.
func (s *Server) startHandler(c *echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.HierarchyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "hierarchy_id is required")
	}
	if req.Task == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "task is required")
	}

	// The run outlives this request, so it must not inherit the request's
	// cancellation (net/http cancels it as soon as the handler returns).
	run, err := s.runs.Start(context.WithoutCancel(c.Request().Context()), req.HierarchyID, req.Task)
	if err != nil {
		return mapServiceError(err)
	}

	snap := run.Snapshot()
	return c.JSON(http.StatusOK, startResponse{
		ID:          snap.ID,
		HierarchyID: snap.HierarchyID,
		Task:        snap.Task,
		Status:      string(snap.Status),
		StreamURL:   "/api/executor/v1/runs/stream",
		CreatedAt:   snap.CreatedAt,
	})
}

// mapServiceError translates a domain error into the matching HTTP status,
// the same "known errors get their own status, everything else is a 500"
// pattern as the teacher's handler_session.go.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, hierarchy.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, new(*hierarchy.ValidationError)):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
