package hive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentfleet/hive/pkg/calltracker"
	"github.com/agentfleet/hive/pkg/cancel"
	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/hierarchy"
	"github.com/agentfleet/hive/pkg/llmclient"
	"github.com/agentfleet/hive/pkg/toolprovider"
)

// DefaultEventTTL is how long a settled run's durable event stream is kept
// before it expires, unless the Runner is configured otherwise.
const DefaultEventTTL = 24 * time.Hour

// Runner drives exactly one Run end to end: build the agent tree, invoke
// the Global Supervisor, settle the run, and tear down its live event
// subscriptions. Grounded on pkg/queue/executor.go's
// RealSessionExecutor.Execute.
type Runner struct {
	Publisher      eventbus.Publisher
	EventStore     eventbus.EventStore
	LLM            llmclient.Client
	Tools          toolprovider.Provider
	CancelRegistry *cancel.Registry
	EventTTL       time.Duration
}

// Run executes run against cfg. The context passed in is the process
// lifetime context, not the run's own cancellation context — cancellation
// is driven entirely through r.CancelRegistry so RunManager.Cancel can stop
// a run independent of any caller's context.
func (r *Runner) Run(ctx context.Context, run *Run, cfg *hierarchy.Config) {
	token, ok := r.CancelRegistry.Observe(run.ID)
	if !ok {
		token = r.CancelRegistry.Register(ctx, run.ID)
	}
	defer r.CancelRegistry.Release(run.ID)

	log := slog.With("run_id", run.ID, "hierarchy_id", run.HierarchyID)

	if token.IsCancelled() {
		log.Info("run cancelled before admission")
		run.Fail("cancelled", calltracker.Statistics{})
		_ = run.TransitionTo(StatusCancelled)
		_, _ = r.Publisher.Publish(ctx, run.ID, eventbus.SystemSource, eventbus.LifecycleCancelled, nil)
		r.closeOut(ctx, run)
		return
	}

	if err := run.TransitionTo(StatusRunning); err != nil {
		log.Warn("run could not transition to running", "error", err)
		return
	}
	log.Info("run started")
	_, _ = r.Publisher.Publish(token.Context(), run.ID, eventbus.SystemSource, eventbus.LifecycleStarted, map[string]any{
		"hierarchy_id": run.HierarchyID,
	})

	builder := NewHierarchyBuilder(Deps{Publisher: r.Publisher, LLM: r.LLM, Tools: r.Tools})
	built, err := builder.Build(cfg, run.ID, token)
	if err != nil {
		log.Error("hierarchy build failed", "error", err)
		r.fail(run, token, fmt.Errorf("build hierarchy: %w", err))
		return
	}

	run.SetTopology(built.Topology)
	_, _ = r.Publisher.Publish(token.Context(), run.ID, eventbus.SystemSource, eventbus.SystemTopology, map[string]any{
		"topology": built.Topology,
	})

	result, err := built.Global.Invoke(token.Context(), run.Task)
	stats := built.Tracker.Statistics()

	switch {
	case err != nil && isCancelled(err):
		log.Info("run cancelled")
		run.Fail("cancelled", stats)
		_ = run.TransitionTo(StatusCancelled)
		_, _ = r.Publisher.Publish(ctx, run.ID, eventbus.SystemSource, eventbus.LifecycleCancelled, nil)
	case err != nil:
		log.Error("run failed", "error", err)
		r.fail(run, token, err)
		return
	default:
		log.Info("run completed")
		run.Settle(result, stats)
		_ = run.TransitionTo(StatusCompleted)
		_, _ = r.Publisher.Publish(ctx, run.ID, eventbus.SystemSource, eventbus.LifecycleCompleted, map[string]any{
			"result": result,
		})
	}

	r.closeOut(ctx, run)
}

func (r *Runner) fail(run *Run, token *cancel.Token, err error) {
	run.Fail(err.Error(), calltracker.Statistics{})
	_ = run.TransitionTo(StatusFailed)
	_, _ = r.Publisher.Publish(token.Context(), run.ID, eventbus.SystemSource, eventbus.LifecycleFailed, map[string]any{
		"error": err.Error(),
	})
	r.closeOut(token.Context(), run)
}

func (r *Runner) closeOut(ctx context.Context, run *Run) {
	_, _ = r.Publisher.Publish(ctx, run.ID, eventbus.SystemSource, eventbus.SystemClose, nil)

	ttl := r.EventTTL
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	if r.EventStore != nil {
		_ = r.EventStore.ExpireAfter(ctx, run.ID, ttl)
	}

	if bus, ok := r.Publisher.(*eventbus.Bus); ok {
		bus.CloseRun(run.ID)
	}
}
