// Package hive is the Run Execution Engine: it builds the agent hierarchy
// for a run, drives it end-to-end, and owns the run's lifecycle and
// statistics. Grounded on pkg/queue/executor.go (RealSessionExecutor.Execute)
// for the run-driving shape and pkg/queue/pool.go (WorkerPool) for the
// manager that admits and tracks concurrent runs.
package hive

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentfleet/hive/pkg/calltracker"
)

// Status is the closed set of Run lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is one of the run's terminal states.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ErrAlreadyTerminal is returned by Run.TransitionTo when the run has
// already settled; a terminal run never transitions again.
var ErrAlreadyTerminal = fmt.Errorf("hive: run already in a terminal state")

// TopologySnapshot is the materialized set of agent identifiers built for a
// run, frozen at build time for audit once the run leaves pending.
type TopologySnapshot struct {
	GlobalAgentID string              `json:"global_agent_id"`
	Teams         []TeamSnapshot      `json:"teams"`
}

// TeamSnapshot names one team's supervisor and workers in a TopologySnapshot.
type TeamSnapshot struct {
	Name          string   `json:"name"`
	SupervisorID  string   `json:"supervisor_id"`
	WorkerIDs     []string `json:"worker_ids"`
	WorkerNames   []string `json:"worker_names"`
}

// Run is the central mutable entity the engine drives through its
// lifecycle. Status, timestamps, and the topology/config snapshot are
// guarded by mu; TransitionTo enforces the single-terminal-status invariant.
type Run struct {
	mu sync.RWMutex

	ID           int64
	HierarchyID  string
	Task         string
	status       Status
	createdAt    time.Time
	startedAt    time.Time
	completedAt  time.Time
	result       string
	errMsg       string
	statistics   calltracker.Statistics
	topology     *TopologySnapshot
}

// NewRun creates a pending Run. Callers must assign a process-unique ID
// before publishing it (RunManager.nextID).
func NewRun(id int64, hierarchyID, task string) *Run {
	return &Run{
		ID:          id,
		HierarchyID: hierarchyID,
		Task:        task,
		status:      StatusPending,
		createdAt:   time.Now(),
	}
}

// Status returns the run's current lifecycle state.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// TransitionTo moves the run to status, stamping the matching timestamp.
// Returns ErrAlreadyTerminal if the run has already settled — a run's
// status transitions at most once into a terminal value.
func (r *Run) TransitionTo(status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.Terminal() {
		return ErrAlreadyTerminal
	}

	switch status {
	case StatusRunning:
		r.startedAt = time.Now()
	case StatusCompleted, StatusFailed, StatusCancelled:
		r.completedAt = time.Now()
	}
	r.status = status
	return nil
}

// SetTopology freezes the topology snapshot. Called once by the Runner
// right after HierarchyBuilder.Build; a second call is a programming error
// but is tolerated as a silent overwrite since only the Runner ever calls it.
func (r *Run) SetTopology(t *TopologySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topology = t
}

// Topology returns the run's frozen topology snapshot, or nil before the
// run has been built.
func (r *Run) Topology() *TopologySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.topology
}

// Settle records the run's final result text and statistics, without
// changing status (the caller calls TransitionTo separately).
func (r *Run) Settle(result string, stats calltracker.Statistics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = result
	r.statistics = stats
}

// Fail records the run's failure message. Does not change status.
func (r *Run) Fail(errMsg string, stats calltracker.Statistics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errMsg = errMsg
	r.statistics = stats
}

// Snapshot is the read-only view of a Run returned by RunManager/API
// handlers — a value copy so callers can't mutate engine state.
type Snapshot struct {
	ID          int64                  `json:"id"`
	HierarchyID string                 `json:"hierarchy_id"`
	Task        string                 `json:"task"`
	Status      Status                 `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Result      string                 `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Statistics  calltracker.Statistics `json:"statistics"`
	Topology    *TopologySnapshot      `json:"topology_snapshot,omitempty"`
}

// Snapshot returns a point-in-time copy of the run's observable state.
func (r *Run) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		ID:          r.ID,
		HierarchyID: r.HierarchyID,
		Task:        r.Task,
		Status:      r.status,
		CreatedAt:   r.createdAt,
		Result:      r.result,
		Error:       r.errMsg,
		Statistics:  r.statistics,
		Topology:    r.topology,
	}
	if !r.startedAt.IsZero() {
		t := r.startedAt
		s.StartedAt = &t
	}
	if !r.completedAt.IsZero() {
		t := r.completedAt
		s.CompletedAt = &t
	}
	return s
}
