package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/agentfleet/hive/pkg/hive"
)

// listHandler pages over every tracked run, optionally filtered by status,
// alongside a point-in-time aggregate view (RunManager.Stats).
func (s *Server) listHandler(c *echo.Context) error {
	var req listRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	all := s.runs.List()
	if req.Status != "" {
		filtered := all[:0]
		want := hive.Status(req.Status)
		for _, r := range all {
			if r.Status() == want {
				filtered = append(filtered, r)
			}
		}
		all = filtered
	}

	total := len(all)
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := all[offset:end]

	out := make([]any, 0, len(page))
	for _, r := range page {
		out = append(out, r.Snapshot())
	}

	return c.JSON(http.StatusOK, listResponse{
		Runs:    out,
		Total:   total,
		HasMore: end < total,
		Stats:   s.runs.Stats(),
	})
}
