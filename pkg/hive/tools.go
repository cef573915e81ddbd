package hive

import (
	"encoding/json"

	"github.com/agentfleet/hive/pkg/llmclient"
)

// taskArgumentSchema is the JSON Schema shared by every worker and team
// tool definition: a single required "task" string the model fills in with
// the sub-task text to hand down the hierarchy.
const taskArgumentSchema = `{"type":"object","properties":{"task":{"type":"string"}},"required":["task"]}`

// toolDefinition builds the llmclient.ToolDefinition exposed to a
// supervisor's LLM for one child (worker or team), named after the child
// and described by description.
func toolDefinition(name, description string) llmclient.ToolDefinition {
	return llmclient.ToolDefinition{
		Name:             name,
		Description:      description,
		ParametersSchema: taskArgumentSchema,
	}
}

// extractStringField pulls a top-level string field out of a JSON object
// without requiring callers to define a struct for every tool's arguments.
func extractStringField(argumentsJSON, field string) (string, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(argumentsJSON), &m); err != nil {
		return "", false
	}
	raw, ok := m[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
