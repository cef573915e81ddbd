package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI is a Client backed by the OpenAI chat completions streaming API.
// Grounded on internal/agent/providers/openai.go's stream-to-chunk
// conversion, narrowed to the core's closed Chunk set (no vision/retry
// policy — a real deployment wraps this in its own retry middleware rather
// than baking one in here).
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates an OpenAI-backed Client for apiKey.
func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{client: openai.NewClient(apiKey)}
}

// Generate implements Client.
func (o *OpenAI) Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error) {
	req := openai.ChatCompletionRequest{
		Model:       input.Params.ModelID,
		Messages:    toOpenAIMessages(input.Messages),
		Stream:      true,
		Temperature: float32(input.Params.Temperature),
		TopP:        float32(input.Params.TopP),
	}
	if input.Params.MaxTokens > 0 {
		req.MaxTokens = input.Params.MaxTokens
	}
	if len(input.Tools) > 0 {
		req.Tools = toOpenAITools(input.Tools)
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llmclient/openai: create stream: %w", err)
	}

	out := make(chan Chunk)
	go streamOpenAI(ctx, stream, out)
	return out, nil
}

func streamOpenAI(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- Chunk) {
	defer close(out)
	defer stream.Close()

	type pendingCall struct{ id, name, args string }
	calls := make(map[int]*pendingCall)
	order := make([]int, 0, 4)

	emit := func(c Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	flushCalls := func() bool {
		for _, idx := range order {
			call := calls[idx]
			if !emit(&ToolCallChunk{CallID: call.id, Name: call.name, Arguments: call.args}) {
				return false
			}
		}
		calls = make(map[int]*pendingCall)
		order = order[:0]
		return true
	}

	var usage UsageChunk
	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flushCalls()
				if usage.TotalTokens > 0 {
					emit(&usage)
				}
				return
			}
			emit(&ErrorChunk{Message: err.Error(), Retryable: false})
			return
		}

		if resp.Usage != nil {
			usage = UsageChunk{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
				TotalTokens:  resp.Usage.TotalTokens,
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]

		if choice.Delta.Content != "" {
			if !emit(&TextChunk{Content: choice.Delta.Content}) {
				return
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := calls[idx]
			if !ok {
				call = &pendingCall{}
				calls[idx] = call
				order = append(order, idx)
			}
			if tc.ID != "" {
				call.id = tc.ID
			}
			if tc.Function.Name != "" {
				call.name = tc.Function.Name
			}
			call.args += tc.Function.Arguments
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			if !flushCalls() {
				return
			}
		}
	}
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
				Name:       m.ToolName,
			})
		case RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, oaiMsg)
		default:
			out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		}
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal([]byte(t.ParametersSchema), &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}
