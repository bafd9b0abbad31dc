package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider drives the chat completions API with streaming tool
// calls. Safe for concurrent use.
type OpenAIProvider struct {
	client *openai.Client
	retry  retrySchedule
}

// NewOpenAIProvider builds a provider. An empty apiKey yields a provider
// whose Complete fails with a configuration error rather than a nil
// pointer, so construction can stay infallible.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	p := &OpenAIProvider{retry: newRetrySchedule(0, 0)}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000, SupportsVision: true},
	}
}

func (p *OpenAIProvider) SupportsTools() bool { return true }

func (p *OpenAIProvider) CountTokens(req *agent.CompletionRequest) int {
	return estimateRequestTokens(req)
}

// Complete streams a chat completion. Tool call arguments arrive as
// indexed fragments across deltas; they are assembled per index and
// emitted once the model signals the calls are complete.
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if p.client == nil {
		return nil, errors.New("openai: API key not configured")
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: p.convertMessages(req.Messages, req.System),
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	err := p.retry.run(ctx, IsRetryable, func() error {
		var streamErr error
		stream, streamErr = p.client.CreateChatCompletionStream(ctx, chatReq)
		if streamErr != nil {
			return p.wrapError(streamErr, req.Model)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.drainStream(ctx, stream, chunks, req.Model)
	return chunks, nil
}

func (p *OpenAIProvider) drainStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *agent.CompletionChunk, model string) {
	defer close(chunks)
	defer stream.Close()

	// Argument fragments for each tool call accumulate under the delta's
	// index until a tool_calls finish reason (or EOF) flushes them.
	assembling := map[int]*models.ToolCall{}
	argFragments := map[int]*strings.Builder{}

	flush := func() {
		indices := make([]int, 0, len(assembling))
		for i := range assembling {
			indices = append(indices, i)
		}
		sort.Ints(indices)
		for _, i := range indices {
			tc := assembling[i]
			if tc.ID == "" || tc.Name == "" {
				continue
			}
			if frag, ok := argFragments[i]; ok {
				tc.Input = json.RawMessage(frag.String())
			}
			chunks <- &agent.CompletionChunk{ToolCall: tc}
		}
		assembling = map[int]*models.ToolCall{}
		argFragments = map[int]*strings.Builder{}
	}

	for {
		if ctx.Err() != nil {
			chunks <- &agent.CompletionChunk{Error: ctx.Err(), Done: true}
			return
		}

		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flush()
				chunks <- &agent.CompletionChunk{Done: true}
				return
			}
			chunks <- &agent.CompletionChunk{Error: p.wrapError(err, model), Done: true}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]

		if choice.Delta.Content != "" {
			chunks <- &agent.CompletionChunk{Text: choice.Delta.Content}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			call := assembling[index]
			if call == nil {
				call = &models.ToolCall{}
				assembling[index] = call
				argFragments[index] = &strings.Builder{}
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Name = tc.Function.Name
			}
			argFragments[index].WriteString(tc.Function.Arguments)
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			flush()
		}
	}
}

// convertMessages maps the transcript onto chat messages. The API wants
// the system prompt as the first message and one tool-role message per
// tool result, keyed by tool_call_id.
func (p *OpenAIProvider) convertMessages(messages []agent.CompletionMessage, system string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		if len(msg.ToolResults) > 0 {
			for _, tr := range msg.ToolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
			continue
		}

		converted := openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Input),
				},
			})
		}
		out = append(out, converted)
	}
	return out
}

// convertTools maps registry definitions onto function tools. The chat
// API accepts the JSON schema as a decoded map; a schema that fails to
// decode degrades to an empty object rather than dropping the tool.
func (p *OpenAIProvider) convertTools(tools []agent.Tool) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schema map[string]any
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  schema,
			},
		}
	}
	return out
}

// wrapError lifts an SDK error into a ProviderError, taking the status
// and code from the API error when present.
func (p *OpenAIProvider) wrapError(err error, model string) error {
	if err == nil || IsProviderError(err) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe := (&ProviderError{Provider: "openai", Model: model, Cause: err, Message: apiErr.Message}).
			WithStatus(apiErr.HTTPStatusCode)
		if code, ok := apiErr.Code.(string); ok && code != "" {
			pe.WithCode(code)
		}
		return pe
	}
	return NewProviderError("openai", model, err)
}
