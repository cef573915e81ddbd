package llmclient

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Turn is one scripted LLM call outcome: the chunks to emit, in order, each
// separated by Delay. Used by Scripted to drive deterministic tests of the
// Run Execution Engine without a real provider.
type Turn struct {
	Chunks []Chunk
	Delay  time.Duration
}

// Scripted is a deterministic Client driven entirely by pre-programmed
// Turns, one consumed per Generate call for a given AgentID. It plays the
// same role pkg/agent/tool_executor.go's StubToolExecutor plays for tools:
// a canned-response double standing in for the real SDK.
type Scripted struct {
	mu    sync.Mutex
	turns map[string][]Turn
	next  map[string]int
}

// NewScripted creates an empty Scripted client.
func NewScripted() *Scripted {
	return &Scripted{
		turns: make(map[string][]Turn),
		next:  make(map[string]int),
	}
}

// Script appends turns to be returned, in order, for calls with this
// AgentID. Calling it multiple times for the same AgentID appends.
func (s *Scripted) Script(agentID string, turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[agentID] = append(s.turns[agentID], turns...)
}

// Generate returns the next scripted Turn's chunks for input.AgentID over a
// channel, honoring cancellation and each chunk's Delay.
func (s *Scripted) Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error) {
	s.mu.Lock()
	idx := s.next[input.AgentID]
	turns := s.turns[input.AgentID]
	if idx >= len(turns) {
		s.mu.Unlock()
		return nil, fmt.Errorf("llmclient: no scripted turn left for agent %q (call %d)", input.AgentID, idx+1)
	}
	turn := turns[idx]
	s.next[input.AgentID] = idx + 1
	s.mu.Unlock()

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for _, chunk := range turn.Chunks {
			if turn.Delay > 0 {
				timer := time.NewTimer(turn.Delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return
				}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
