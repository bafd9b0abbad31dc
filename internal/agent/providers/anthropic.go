package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// minThinkingBudget is the smallest extended-thinking budget the API
// accepts; requests below it are bumped to a usable default.
const (
	minThinkingBudget     = 1024
	defaultThinkingBudget = 10000
)

// AnthropicConfig configures an AnthropicProvider. Only APIKey is
// required; the rest default sensibly.
type AnthropicConfig struct {
	APIKey string

	// BaseURL overrides the API endpoint, for proxies and test servers.
	BaseURL string

	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// AnthropicProvider drives the Anthropic Messages API with streaming.
// Safe for concurrent use; each Complete call owns its own stream.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	retry        retrySchedule
}

// NewAnthropicProvider builds a provider from config.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(options...),
		defaultModel: config.DefaultModel,
		retry:        newRetrySchedule(config.MaxRetries, config.RetryDelay),
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextSize: 200000, SupportsVision: true},
	}
}

func (p *AnthropicProvider) SupportsTools() bool { return true }

// CountTokens estimates the request's token footprint; see
// estimateRequestTokens for the heuristic and its accuracy.
func (p *AnthropicProvider) CountTokens(req *agent.CompletionRequest) int {
	return estimateRequestTokens(req)
}

// Complete streams a Messages API response. The returned channel closes
// after a Done or Error chunk. Every failure, including request
// construction, arrives as an Error chunk; the returned error is always nil.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	chunks := make(chan *agent.CompletionChunk)

	go func() {
		defer close(chunks)

		model := pickModel(req.Model, p.defaultModel)
		params, err := p.buildParams(req, model)
		if err != nil {
			chunks <- &agent.CompletionChunk{Error: err}
			return
		}

		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		err = p.retry.run(ctx, IsRetryable, func() error {
			stream = p.client.Messages.NewStreaming(ctx, params)
			if streamErr := stream.Err(); streamErr != nil {
				return p.wrapError(streamErr, model)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				chunks <- &agent.CompletionChunk{Error: ctx.Err()}
				return
			}
			chunks <- &agent.CompletionChunk{Error: fmt.Errorf("anthropic: request failed: %w", p.wrapError(err, model))}
			return
		}

		p.drainStream(stream, chunks, model)
	}()

	return chunks, nil
}

func (p *AnthropicProvider) buildParams(req *agent.CompletionRequest, model string) (anthropic.MessageNewParams, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(pickMaxTokens(req.MaxTokens)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: convert tools: %w", err)
		}
		params.Tools = tools
	}
	if req.EnableThinking {
		budget := int64(req.ThinkingBudgetTokens)
		if budget < minThinkingBudget {
			budget = defaultThinkingBudget
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	return params, nil
}

// toolCallAssembly accumulates a tool_use block while its input JSON
// streams in across content_block_delta events.
type toolCallAssembly struct {
	call  *models.ToolCall
	input strings.Builder
}

// drainStream walks the SSE event sequence, emitting text and thinking
// deltas as they arrive and tool calls once their input JSON completes
// at content_block_stop.
func (p *AnthropicProvider) drainStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *agent.CompletionChunk, model string) {
	var pending *toolCallAssembly
	inThinking := false
	inputTokens, outputTokens := 0, 0

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			if start.Message.Usage.InputTokens > 0 {
				inputTokens = int(start.Message.Usage.InputTokens)
			}

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			switch block.Type {
			case "thinking":
				inThinking = true
				chunks <- &agent.CompletionChunk{ThinkingStart: true}
			case "tool_use":
				use := block.AsToolUse()
				pending = &toolCallAssembly{call: &models.ToolCall{ID: use.ID, Name: use.Name}}
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					chunks <- &agent.CompletionChunk{Text: delta.Text}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					chunks <- &agent.CompletionChunk{Thinking: delta.Thinking}
				}
			case "input_json_delta":
				if pending != nil {
					pending.input.WriteString(delta.PartialJSON)
				}
			}

		case "content_block_stop":
			switch {
			case inThinking:
				inThinking = false
				chunks <- &agent.CompletionChunk{ThinkingEnd: true}
			case pending != nil:
				pending.call.Input = json.RawMessage(pending.input.String())
				chunks <- &agent.CompletionChunk{ToolCall: pending.call}
				pending = nil
			}

		case "message_delta":
			delta := event.AsMessageDelta()
			if delta.Usage.OutputTokens > 0 {
				outputTokens = int(delta.Usage.OutputTokens)
			}

		case "message_stop":
			chunks <- &agent.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
			return

		case "error":
			chunks <- &agent.CompletionChunk{Error: p.wrapError(errors.New("anthropic: stream error"), model)}
			return
		}
	}

	if err := stream.Err(); err != nil {
		chunks <- &agent.CompletionChunk{Error: p.wrapError(err, model)}
	}
}

// convertMessages maps the loop's transcript onto Anthropic content
// blocks. The system prompt travels separately in params.System, so
// system-role messages are skipped here; tool-role messages become user
// messages carrying tool_result blocks, per the Messages API contract.
func (p *AnthropicProvider) convertMessages(messages []agent.CompletionMessage) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		for _, tr := range msg.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]any
			if err := json.Unmarshal(tc.Input, &input); err != nil {
				return nil, fmt.Errorf("tool call %s has invalid input: %w", tc.ID, err)
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		if len(blocks) == 0 {
			continue
		}

		if msg.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, nil
}

// convertTools builds the tool union params from registry definitions.
// The registry already validated each schema compiles, so an unmarshal
// failure here is a bug, not user input.
func (p *AnthropicProvider) convertTools(tools []agent.Tool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			return nil, fmt.Errorf("tool %s has invalid schema: %w", tool.Name(), err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name())
		if param.OfTool == nil {
			return nil, fmt.Errorf("tool %s: schema did not produce a tool definition", tool.Name())
		}
		param.OfTool.Description = anthropic.String(tool.Description())
		out = append(out, param)
	}
	return out, nil
}

// anthropicErrorBody is the error envelope the API returns.
type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

// wrapError lifts an SDK error into a ProviderError, pulling the status,
// error type, and request id out of the API's error envelope when the
// error is an *anthropic.Error.
func (p *AnthropicProvider) wrapError(err error, model string) error {
	if err == nil || IsProviderError(err) {
		return err
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return NewProviderError("anthropic", model, err)
	}

	pe := (&ProviderError{Provider: "anthropic", Model: model, Cause: err}).WithStatus(apiErr.StatusCode)
	pe.RequestID = apiErr.RequestID
	if raw := apiErr.RawJSON(); raw != "" {
		var body anthropicErrorBody
		if json.Unmarshal([]byte(raw), &body) == nil {
			if body.Error.Message != "" {
				pe.WithMessage(body.Error.Message)
			}
			if body.Error.Type != "" {
				pe.WithCode(body.Error.Type)
			}
			if body.RequestID != "" {
				pe.WithRequestID(body.RequestID)
			}
		}
	}
	if pe.Message == "" {
		pe.Message = "anthropic request failed"
	}
	return pe
}
