package api

import (
	"time"

	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/hive"
)

// startRequest is the body of POST /runs/start.
type startRequest struct {
	HierarchyID string `json:"hierarchy_id"`
	Task        string `json:"task"`
}

// startResponse is returned immediately once a run has been admitted.
type startResponse struct {
	ID          int64     `json:"id"`
	HierarchyID string    `json:"hierarchy_id"`
	Task        string    `json:"task"`
	Status      string    `json:"status"`
	StreamURL   string    `json:"stream_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// idRequest is the body shared by every endpoint that only needs a run id:
// stream, get, and cancel.
type idRequest struct {
	ID int64 `json:"id"`
}

// eventsRequest is the body of POST /runs/events.
type eventsRequest struct {
	ID      int64  `json:"id"`
	StartID string `json:"start_id"`
	EndID   string `json:"end_id"`
	Limit   int    `json:"limit"`
}

// getResponse is the full Run record returned by /runs/get: the run's
// snapshot plus a bounded slice of its event log.
type getResponse struct {
	hive.Snapshot
	Events  []*eventbus.Event `json:"events"`
	HasMore bool              `json:"events_has_more"`
}

// eventsResponse replays a bounded slice of a run's durable event log.
type eventsResponse struct {
	RunID   int64             `json:"run_id"`
	Events  []*eventbus.Event `json:"events"`
	Count   int               `json:"count"`
	HasMore bool              `json:"has_more"`
	NextID  string            `json:"next_id,omitempty"`
}

// listRequest is the body of POST /runs/list.
type listRequest struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// listResponse pages over every tracked run plus an aggregate view.
type listResponse struct {
	Runs    []any `json:"runs"`
	Total   int   `json:"total"`
	HasMore bool  `json:"has_more"`
	Stats   any   `json:"stats"`
}

// cancelResponse confirms whether a cancel request was accepted.
type cancelResponse struct {
	ID        int64 `json:"id"`
	Cancelled bool  `json:"cancelled"`
}
