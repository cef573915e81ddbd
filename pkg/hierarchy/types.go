// Package hierarchy holds the HierarchyConfig value model: the immutable
// description of a Global Supervisor, its Team Supervisors, and their
// Workers, loaded from YAML on disk. The Run Execution Engine (pkg/hive)
// only ever consumes a *Config value — it never mutates or reloads one
// mid-run.
package hierarchy

// ExecutionMode controls how the Global Supervisor is allowed to dispatch
// to its teams.
type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// LLMParams are the knobs passed through to an LLMClient.Generate call.
// All fields are optional; zero values mean "use the client's default".
type LLMParams struct {
	ModelID     string  `yaml:"model_id" json:"model_id"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	TopP        float64 `yaml:"top_p" json:"top_p"`
}

// WorkerConfig describes a single leaf agent within a team.
type WorkerConfig struct {
	ID           string    `yaml:"id" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	AgentID      string    `yaml:"agent_id" json:"agent_id"`
	Role         string    `yaml:"role" json:"role"`
	SystemPrompt string    `yaml:"system_prompt" json:"system_prompt"`
	LLM          LLMParams `yaml:"llm" json:"llm"`
	Tools        []string  `yaml:"tools" json:"tools"`
}

// TeamConfig describes a Team Supervisor and the workers it owns.
type TeamConfig struct {
	ID                string         `yaml:"id" json:"id"`
	Name              string         `yaml:"name" json:"name"`
	AgentID           string         `yaml:"agent_id" json:"agent_id"`
	SupervisorPrompt  string         `yaml:"supervisor_prompt" json:"supervisor_prompt"`
	SupervisorLLM     LLMParams      `yaml:"supervisor_llm" json:"supervisor_llm"`
	PreventDuplicate  bool           `yaml:"prevent_duplicate" json:"prevent_duplicate"`
	ShareContext      bool           `yaml:"share_context" json:"share_context"`
	MaxIterations     int            `yaml:"max_iterations" json:"max_iterations"`
	Workers           []WorkerConfig `yaml:"workers" json:"workers"`
}

// Config is the root HierarchyConfig value. Immutable for the life of a run.
type Config struct {
	HierarchyID           string        `yaml:"hierarchy_id" json:"hierarchy_id"`
	GlobalPrompt          string        `yaml:"global_prompt" json:"global_prompt"`
	GlobalLLM             LLMParams     `yaml:"global_llm" json:"global_llm"`
	GlobalAgentID         string        `yaml:"global_agent_id" json:"global_agent_id"`
	ExecutionMode         ExecutionMode `yaml:"execution_mode" json:"execution_mode"`
	EnableContextSharing  bool          `yaml:"enable_context_sharing" json:"enable_context_sharing"`
	MaxIterations         int           `yaml:"max_iterations" json:"max_iterations"`
	Teams                 []TeamConfig  `yaml:"teams" json:"teams"`
}

// WorkerByName returns the worker config with the given name, or false.
func (t *TeamConfig) WorkerByName(name string) (WorkerConfig, bool) {
	for _, w := range t.Workers {
		if w.Name == name {
			return w, true
		}
	}
	return WorkerConfig{}, false
}

// TeamByName returns the team config with the given name, or false.
func (c *Config) TeamByName(name string) (TeamConfig, bool) {
	for _, t := range c.Teams {
		if t.Name == name {
			return t, true
		}
	}
	return TeamConfig{}, false
}
