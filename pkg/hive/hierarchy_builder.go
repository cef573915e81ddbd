package hive

import (
	"fmt"

	"github.com/agentfleet/hive/pkg/calltracker"
	"github.com/agentfleet/hive/pkg/cancel"
	"github.com/agentfleet/hive/pkg/eventbus"
	"github.com/agentfleet/hive/pkg/hierarchy"
	"github.com/agentfleet/hive/pkg/llmclient"
	"github.com/agentfleet/hive/pkg/toolprovider"
)

// Deps bundles the external collaborators HierarchyBuilder wires every
// agent to. All fields are required.
type Deps struct {
	Publisher eventbus.Publisher
	LLM       llmclient.Client
	Tools     toolprovider.Provider
}

// HierarchyBuilder turns a HierarchyConfig into a fully wired tree of
// agents bound to one run. Grounded on pkg/agent/factory.go's
// AgentFactory.CreateAgent, generalized from one agent at a time to the
// whole tree in a single pass since the hierarchy is static for a run.
type HierarchyBuilder struct {
	deps Deps
}

// NewHierarchyBuilder creates a builder over the given external deps.
func NewHierarchyBuilder(deps Deps) *HierarchyBuilder {
	return &HierarchyBuilder{deps: deps}
}

// Built is everything HierarchyBuilder.Build hands back to the Runner.
type Built struct {
	Global    *GlobalSupervisor
	TeamNames []string // preserves configured order
	Tracker   *calltracker.Tracker
	Topology  *TopologySnapshot
}

// Build constructs the agent tree for cfg, bound to runID and token.
func (b *HierarchyBuilder) Build(cfg *hierarchy.Config, runID int64, token *cancel.Token) (*Built, error) {
	tracker := calltracker.New(token)
	accumulator := newContextAccumulator()

	teamNames := make([]string, 0, len(cfg.Teams))
	teams := make(map[string]*TeamSupervisor, len(cfg.Teams))
	teamConfigs := make(map[string]hierarchy.TeamConfig, len(cfg.Teams))
	teamTools := make([]llmclient.ToolDefinition, 0, len(cfg.Teams))
	topology := &TopologySnapshot{GlobalAgentID: cfg.GlobalAgentID}

	for _, teamCfg := range cfg.Teams {
		team, snapshot, err := b.buildTeam(runID, token, teamCfg, tracker, accumulator, cfg.EnableContextSharing)
		if err != nil {
			return nil, err
		}
		if _, exists := teams[teamCfg.Name]; exists {
			return nil, fmt.Errorf("%w: %s", hierarchy.ErrDuplicateTeamName, teamCfg.Name)
		}
		teams[teamCfg.Name] = team
		teamConfigs[teamCfg.Name] = teamCfg
		teamNames = append(teamNames, teamCfg.Name)
		teamTools = append(teamTools, toolDefinition(teamCfg.Name, "Dispatch a sub-task to the "+teamCfg.Name+" team"))
		topology.Teams = append(topology.Teams, snapshot)
	}

	global := &GlobalSupervisor{
		teams:         teams,
		teamConfigs:   teamConfigs,
		tracker:       tracker,
		executionMode: cfg.ExecutionMode,
		accumulator:   accumulator,
	}
	if cfg.ExecutionMode == hierarchy.ExecutionModeSequential {
		global.sequential = make(chan struct{}, 1)
	}

	globalSource := eventbus.Source{
		AgentID:   cfg.GlobalAgentID,
		AgentType: eventbus.AgentTypeGlobalSupervisor,
		AgentName: cfg.GlobalAgentID,
	}
	global.core = &agentCore{
		runID:         runID,
		source:        globalSource,
		publisher:     b.deps.Publisher,
		token:         token,
		llm:           b.deps.LLM,
		params:        cfg.GlobalLLM,
		systemPrompt:  cfg.GlobalPrompt,
		tools:         teamTools,
		resolve:       global.dispatchResolver(b.deps.Publisher),
		maxIterations: cfg.MaxIterations,
	}

	return &Built{Global: global, TeamNames: teamNames, Tracker: tracker, Topology: topology}, nil
}

func (b *HierarchyBuilder) buildTeam(
	runID int64,
	token *cancel.Token,
	teamCfg hierarchy.TeamConfig,
	tracker *calltracker.Tracker,
	accumulator *contextAccumulator,
	globalShare bool,
) (*TeamSupervisor, TeamSnapshot, error) {
	seenWorkers := make(map[string]struct{}, len(teamCfg.Workers))
	workers := make(map[string]*Worker, len(teamCfg.Workers))
	workerTools := make([]llmclient.ToolDefinition, 0, len(teamCfg.Workers))
	snapshot := TeamSnapshot{Name: teamCfg.Name, SupervisorID: teamCfg.AgentID}

	for _, workerCfg := range teamCfg.Workers {
		if _, dup := seenWorkers[workerCfg.Name]; dup {
			return nil, TeamSnapshot{}, fmt.Errorf("%w: team %q worker %q", hierarchy.ErrDuplicateWorkerName, teamCfg.Name, workerCfg.Name)
		}
		seenWorkers[workerCfg.Name] = struct{}{}

		worker := b.buildWorker(runID, token, teamCfg.Name, workerCfg)
		workers[workerCfg.Name] = worker
		workerTools = append(workerTools, toolDefinition(workerCfg.Name, workerCfg.Role))
		snapshot.WorkerIDs = append(snapshot.WorkerIDs, workerCfg.AgentID)
		snapshot.WorkerNames = append(snapshot.WorkerNames, workerCfg.Name)
	}

	team := &TeamSupervisor{
		name:             teamCfg.Name,
		workers:          workers,
		tracker:          tracker,
		preventDuplicate: teamCfg.PreventDuplicate,
		accumulator:      accumulator,
		shareCtx:         globalShare || teamCfg.ShareContext,
	}

	teamSource := eventbus.Source{
		AgentID:   teamCfg.AgentID,
		AgentType: eventbus.AgentTypeTeamSupervisor,
		AgentName: teamCfg.Name,
		TeamName:  &teamCfg.Name,
	}
	team.core = &agentCore{
		runID:         runID,
		source:        teamSource,
		publisher:     b.deps.Publisher,
		token:         token,
		llm:           b.deps.LLM,
		params:        teamCfg.SupervisorLLM,
		systemPrompt:  teamCfg.SupervisorPrompt,
		tools:         workerTools,
		resolve:       team.dispatchResolver(b.deps.Publisher),
		maxIterations: teamCfg.MaxIterations,
	}

	return team, snapshot, nil
}

func (b *HierarchyBuilder) buildWorker(runID int64, token *cancel.Token, teamName string, cfg hierarchy.WorkerConfig) *Worker {
	tools := make([]llmclient.ToolDefinition, 0, len(cfg.Tools))
	for _, toolName := range cfg.Tools {
		tools = append(tools, llmclient.ToolDefinition{Name: toolName, Description: toolName, ParametersSchema: `{"type":"object"}`})
	}

	worker := &Worker{name: cfg.Name}
	source := eventbus.Source{
		AgentID:   cfg.AgentID,
		AgentType: eventbus.AgentTypeWorker,
		AgentName: cfg.Name,
		TeamName:  &teamName,
	}
	worker.core = &agentCore{
		runID:         runID,
		source:        source,
		publisher:     b.deps.Publisher,
		token:         token,
		llm:           b.deps.LLM,
		params:        cfg.LLM,
		systemPrompt:  cfg.SystemPrompt,
		tools:         tools,
		resolve:       workerToolResolver(b.deps.Tools),
		maxIterations: 20,
	}
	return worker
}
