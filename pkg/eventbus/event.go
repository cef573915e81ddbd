// Package eventbus is the single chokepoint through which every observable
// event in a run flows: it assigns the monotonic per-run sequence, tags the
// event with its timestamp, and fans it out to live subscribers and to a
// durable EventStore. Grounded on pkg/events/manager.go (ConnectionManager's
// channel subscription bookkeeping and drop-tolerant broadcast) and
// pkg/events/publisher.go (typed publish methods over a single internal
// persist-and-notify primitive).
package eventbus

import (
	"encoding/json"
	"time"
)

// AgentType is the closed set of source kinds an event can be attributed to.
type AgentType string

const (
	AgentTypeGlobalSupervisor AgentType = "global_supervisor"
	AgentTypeTeamSupervisor   AgentType = "team_supervisor"
	AgentTypeWorker           AgentType = "worker"
	AgentTypeSystem           AgentType = "system"
)

// Source identifies which agent produced an event.
type Source struct {
	AgentID   string    `json:"agent_id"`
	AgentType AgentType `json:"agent_type"`
	AgentName string    `json:"agent_name"`
	// TeamName is nil for global and system sources.
	TeamName *string `json:"team_name,omitempty"`
}

// SystemSource is the fixed Source used for run-lifecycle events emitted by
// the Runner itself rather than by any agent.
var SystemSource = Source{AgentID: "system", AgentType: AgentTypeSystem, AgentName: "system"}

// Category is the closed top-level grouping of an event's action.
type Category string

const (
	CategoryLifecycle Category = "lifecycle"
	CategoryLLM       Category = "llm"
	CategoryDispatch  Category = "dispatch"
	CategorySystem    Category = "system"
)

// Kind is the (category, action) pair attached to every event. The action
// set is closed per category.
type Kind struct {
	Category Category `json:"category"`
	Action   string   `json:"action"`
}

// Closed Kind values, one constant per valid (category, action) pair.
var (
	LifecycleStarted   = Kind{CategoryLifecycle, "started"}
	LifecycleCompleted = Kind{CategoryLifecycle, "completed"}
	LifecycleFailed    = Kind{CategoryLifecycle, "failed"}
	LifecycleCancelled = Kind{CategoryLifecycle, "cancelled"}

	LLMStream     = Kind{CategoryLLM, "stream"}
	LLMReasoning  = Kind{CategoryLLM, "reasoning"}
	LLMToolCall   = Kind{CategoryLLM, "tool_call"}
	LLMToolResult = Kind{CategoryLLM, "tool_result"}

	DispatchTeam   = Kind{CategoryDispatch, "team"}
	DispatchWorker = Kind{CategoryDispatch, "worker"}

	SystemTopology = Kind{CategorySystem, "topology"}
	SystemWarning  = Kind{CategorySystem, "warning"}
	SystemError    = Kind{CategorySystem, "error"}
	SystemClose    = Kind{CategorySystem, "close"}
)

// String renders a Kind as "category.action", the event name used on the
// SSE wire.
func (k Kind) String() string {
	return string(k.Category) + "." + k.Action
}

// Event is the append-only, never-mutated record at the heart of the data
// flow.
type Event struct {
	RunID     int64          `json:"run_id"`
	Sequence  int64          `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Source    Source         `json:"source"`
	Kind      Kind           `json:"event"`
	Data      map[string]any `json:"data"`
}

// wireEvent exists only so json.Marshal/Unmarshal produce exactly the
// millisecond-precision RFC3339 timestamp format the wire contract requires.
// Go's default time.Time marshaling uses RFC3339Nano, which drops trailing
// zero digits of the fraction, so the three-digit layout is pinned here.
type wireEvent struct {
	RunID     int64          `json:"run_id"`
	Sequence  int64          `json:"sequence"`
	Timestamp string         `json:"timestamp"`
	Source    Source         `json:"source"`
	Kind      Kind           `json:"event"`
	Data      map[string]any `json:"data"`
}

// MarshalJSON implements json.Marshaler to pin the timestamp format.
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		RunID:     e.RunID,
		Sequence:  e.Sequence,
		Timestamp: e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Source:    e.Source,
		Kind:      e.Kind,
		Data:      e.Data,
	})
}

// UnmarshalJSON implements json.Unmarshaler, the inverse of MarshalJSON.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	ts, err := time.Parse("2006-01-02T15:04:05.000Z", w.Timestamp)
	if err != nil {
		// Fall back to RFC3339Nano for events round-tripped through a
		// store that normalizes timestamps differently.
		ts, err = time.Parse(time.RFC3339Nano, w.Timestamp)
		if err != nil {
			return err
		}
	}
	e.RunID = w.RunID
	e.Sequence = w.Sequence
	e.Timestamp = ts
	e.Source = w.Source
	e.Kind = w.Kind
	e.Data = w.Data
	return nil
}
