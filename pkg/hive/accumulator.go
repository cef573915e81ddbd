package hive

import (
	"fmt"
	"strings"
	"sync"
)

// priorResultsHeader delimits accumulated team results prepended to a later
// team's user prompt when context sharing is enabled.
const priorResultsHeader = "=== Prior team results ==="

// contextAccumulator is a per-run, append-only list of (team name, result)
// pairs. It is a pure formatting concern: the list itself carries no policy
// about which teams should see it, just serialized access for concurrent
// writers.
type contextAccumulator struct {
	mu      sync.Mutex
	entries []teamResult
}

type teamResult struct {
	teamName string
	result   string
}

func newContextAccumulator() *contextAccumulator {
	return &contextAccumulator{}
}

// record appends a completed team's result.
func (c *contextAccumulator) record(teamName, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, teamResult{teamName: teamName, result: result})
}

// prefixPrompt prepends the accumulator's serialized contents to prompt
// under a delimited header, if anything has been recorded yet. Returns
// prompt unchanged when the accumulator is empty (no prior teams ran yet).
func (c *contextAccumulator) prefixPrompt(prompt string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(priorResultsHeader)
	b.WriteString("\n")
	for _, e := range c.entries {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", e.teamName, e.result)
	}
	b.WriteString(prompt)
	return b.String()
}
