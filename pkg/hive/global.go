package hive

import (
	"context"
	"fmt"

	"github.com/agentfleet/hive/pkg/calltracker"
	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/hierarchy"
	"github.com/agentfleet/hive/pkg/llmclient"
)

// GlobalSupervisor is structurally identical to TeamSupervisor but its
// tools are teams rather than workers. execution_mode controls whether its
// team-tool calls may overlap.
type GlobalSupervisor struct {
	core *agentCore

	teams         map[string]*TeamSupervisor
	teamConfigs   map[string]hierarchy.TeamConfig
	tracker       *calltracker.Tracker
	executionMode hierarchy.ExecutionMode
	sequential    chan struct{} // size-1 semaphore; nil when execution_mode is parallel

	accumulator *contextAccumulator
}

// Invoke implements Agent.
func (g *GlobalSupervisor) Invoke(ctx context.Context, task string) (string, error) {
	return g.core.invoke(ctx, task)
}

// dispatchResolver dispatches a team tool call: consults the tracker for
// duplicate suppression using the target team's own prevent_duplicate
// policy, emits dispatch.team, then runs the team supervisor.
//
// When execution_mode is sequential, the call acquires a per-run size-1
// semaphore before invoking the team so at most one team-tool call is in
// flight at any time, even if the model requested several in one turn.
func (g *GlobalSupervisor) dispatchResolver(publisher eventbus.Publisher) toolResolver {
	return func(ctx context.Context, call llmclient.ToolCall) (string, error) {
		team, ok := g.teams[call.Name]
		if !ok {
			return "", fmt.Errorf("hierarchy has no team tool %q", call.Name)
		}
		teamCfg := g.teamConfigs[call.Name]

		if g.sequential != nil {
			select {
			case g.sequential <- struct{}{}:
				defer func() { <-g.sequential }()
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		task := argumentToTask(call.Arguments)

		rec, duplicate, err := g.tracker.Open(call.Name, "", task, teamCfg.PreventDuplicate)
		if err != nil {
			return "", err
		}
		if duplicate {
			_, _ = publisher.Publish(ctx, g.core.runID, g.core.source, eventbus.SystemWarning, map[string]any{
				"reason": "duplicate",
				"team":   call.Name,
			})
			return dispatchBlockedMessage(call.Name), nil
		}

		_, _ = publisher.Publish(ctx, g.core.runID, g.core.source, eventbus.DispatchTeam, map[string]any{
			"team": call.Name,
		})

		result, err := team.Invoke(ctx, task)
		if err != nil {
			g.tracker.Close(rec.CallID, calltracker.StatusFailed, "")
			return "", err
		}
		g.tracker.Close(rec.CallID, calltracker.StatusCompleted, result)
		g.accumulator.record(call.Name, result)
		return result, nil
	}
}
