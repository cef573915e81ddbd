package hive

import (
	"context"
	"fmt"

	"github.com/agentfleet/hive/pkg/llmclient"
	"github.com/agentfleet/hive/pkg/toolprovider"
)

// Worker is a leaf agent: it sees its configured system prompt and a fixed
// set of external tools, and has no child agents.
type Worker struct {
	core *agentCore
	name string
}

// Invoke implements Agent. The returned text is wrapped as
// "[<worker_name>] <response>" so upstream supervisors can attribute it.
func (w *Worker) Invoke(ctx context.Context, task string) (string, error) {
	text, err := w.core.invoke(ctx, task)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] %s", w.name, text), nil
}

// workerToolResolver invokes an external tool by name through provider,
// forwarding the model's JSON arguments verbatim.
func workerToolResolver(provider toolprovider.Provider) toolResolver {
	return func(ctx context.Context, call llmclient.ToolCall) (string, error) {
		handle, err := provider.Resolve(ctx, call.Name)
		if err != nil {
			return "", fmt.Errorf("resolve tool %q: %w", call.Name, err)
		}
		return handle.Invoke(ctx, call.Arguments)
	}
}
