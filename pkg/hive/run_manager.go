package hive

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentfleet/hive/pkg/calltracker"
	"github.com/agentfleet/hive/pkg/cancel"
	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/hierarchy"
	"github.com/agentfleet/hive/pkg/llmclient"
	"github.com/agentfleet/hive/pkg/toolprovider"
)

// ErrHierarchyNotFound mirrors hierarchy.ErrNotFound for callers that only
// import pkg/hive.
var ErrHierarchyNotFound = hierarchy.ErrNotFound

// RunManagerConfig bundles RunManager's fixed collaborators and limits.
type RunManagerConfig struct {
	Hierarchies *hierarchy.Registry
	Publisher   eventbus.Publisher
	EventStore  eventbus.EventStore
	LLM         llmclient.Client
	Tools       toolprovider.Provider
	// MaxConcurrentRuns bounds how many runs may be Running at once;
	// Start still accepts runs past this limit, they simply wait on the
	// admission semaphore before entering Runner.Run. Zero means
	// DefaultMaxConcurrentRuns.
	MaxConcurrentRuns int
	// EventTTL overrides how long a settled run's durable event stream is
	// kept. Zero means DefaultEventTTL.
	EventTTL time.Duration
}

// DefaultMaxConcurrentRuns is the admission limit used when
// RunManagerConfig.MaxConcurrentRuns is unset. Grounded on pkg/queue/pool.go's
// WorkerPool default concurrency.
const DefaultMaxConcurrentRuns = 10

// RunManager admits, tracks, and can cancel concurrently executing runs. One
// RunManager is created per process. Grounded on pkg/queue/pool.go's
// WorkerPool: a bounded semaphore gates concurrent execution while admission
// (Start) itself never blocks on configuration I/O.
type RunManager struct {
	cfg            RunManagerConfig
	cancelRegistry *cancel.Registry

	admission chan struct{}

	mu      sync.Mutex
	runs    map[int64]*Run
	nextID  int64
	wg      sync.WaitGroup
	closing atomic.Bool
}

// NewRunManager creates a RunManager ready to accept Start calls.
func NewRunManager(cfg RunManagerConfig) *RunManager {
	limit := cfg.MaxConcurrentRuns
	if limit <= 0 {
		limit = DefaultMaxConcurrentRuns
	}
	return &RunManager{
		cfg:            cfg,
		cancelRegistry: cancel.NewRegistry(),
		admission:      make(chan struct{}, limit),
		runs:           make(map[int64]*Run),
	}
}

// Start validates hierarchyID's configuration synchronously, creates a
// pending Run, and submits it for execution on a background goroutine.
// Start returns as soon as the Run exists — it does not wait for execution
// to begin, only for configuration resolution and validation, so a bad
// hierarchy_id or a naturally invalid configuration is reported to the
// caller immediately rather than surfacing later as a failed run.
func (m *RunManager) Start(ctx context.Context, hierarchyID, task string) (*Run, error) {
	if m.closing.Load() {
		return nil, fmt.Errorf("hive: run manager is shutting down")
	}

	cfg, err := m.cfg.Hierarchies.Get(hierarchyID)
	if err != nil {
		return nil, err
	}
	if err := hierarchy.NewValidator(cfg).ValidateAll(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	run := NewRun(id, hierarchyID, task)
	m.runs[id] = run
	m.mu.Unlock()

	// Register the cancel token up front, before admission, so a Cancel
	// call arriving while the run is still queued (pending) has a token to
	// signal. Runner.Run observes this same token instead of registering
	// its own, and checks it before ever transitioning to running.
	token := m.cancelRegistry.Register(ctx, id)

	slog.Info("run admitted", "run_id", id, "hierarchy_id", hierarchyID)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		select {
		case m.admission <- struct{}{}:
		case <-token.Context().Done():
			run.Fail("cancelled", calltracker.Statistics{})
			_ = run.TransitionTo(StatusCancelled)
			_, _ = m.cfg.Publisher.Publish(ctx, id, eventbus.SystemSource, eventbus.LifecycleCancelled, nil)
			m.cancelRegistry.Release(id)
			return
		case <-ctx.Done():
			_ = run.TransitionTo(StatusFailed)
			m.cancelRegistry.Release(id)
			return
		}
		defer func() { <-m.admission }()

		runner := &Runner{
			Publisher:      m.cfg.Publisher,
			EventStore:     m.cfg.EventStore,
			LLM:            m.cfg.LLM,
			Tools:          m.cfg.Tools,
			CancelRegistry: m.cancelRegistry,
			EventTTL:       m.cfg.EventTTL,
		}
		runner.Run(ctx, run, cfg)
	}()

	return run, nil
}

// Get returns the run with the given id, or false.
func (m *RunManager) Get(id int64) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	return r, ok
}

// Cancel signals the run's CancelToken. Returns false if the run is
// unknown or already terminal.
func (m *RunManager) Cancel(id int64) bool {
	run, ok := m.Get(id)
	if !ok || run.Status().Terminal() {
		return false
	}
	m.cancelRegistry.Signal(id)
	slog.Info("run cancel requested", "run_id", id)
	return true
}

// List returns every tracked run, most recently started first.
func (m *RunManager) List() []*Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// IsRunning reports whether id names a run currently in the running state.
func (m *RunManager) IsRunning(id int64) bool {
	run, ok := m.Get(id)
	return ok && run.Status() == StatusRunning
}

// Active returns the IDs of runs not yet in a terminal state.
func (m *RunManager) Active() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, r := range m.runs {
		if !r.Status().Terminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Stats is the aggregate admission/run-count view surfaced by the
// /api/executor/v1/runs/list endpoint.
type Stats struct {
	TotalRuns int            `json:"total_runs"`
	ByStatus  map[Status]int `json:"by_status"`
	InFlight  int            `json:"in_flight"`
	PoolSize  int            `json:"pool_size"`
}

// Stats returns a point-in-time aggregate over every tracked run.
func (m *RunManager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStatus := make(map[Status]int, 5)
	for _, r := range m.runs {
		byStatus[r.Status()]++
	}
	return Stats{
		TotalRuns: len(m.runs),
		ByStatus:  byStatus,
		InFlight:  len(m.admission),
		PoolSize:  cap(m.admission),
	}
}

// Shutdown stops admitting new runs, signals every active run's
// CancelToken, and waits for all of them to settle before returning.
func (m *RunManager) Shutdown() {
	m.closing.Store(true)
	for _, id := range m.Active() {
		m.cancelRegistry.Signal(id)
	}
	m.wg.Wait()
}
