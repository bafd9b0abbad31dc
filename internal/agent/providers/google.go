package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/agent/toolconv"
	"github.com/haasonsaas/agentcore/pkg/models"
	"google.golang.org/genai"
)

// GoogleConfig configures a GoogleProvider. Only APIKey is required.
type GoogleConfig struct {
	APIKey       string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// GoogleProvider drives the Gemini API through the genai SDK. Gemini
// streams via a Go iterator rather than an SSE stream, and does not
// assign tool call ids, so this provider synthesizes them and resolves
// them back to function names when returning results. Safe for
// concurrent use.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
	retry        retrySchedule
}

// NewGoogleProvider builds a provider from config.
func NewGoogleProvider(config GoogleConfig) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}

	return &GoogleProvider{
		client:       client,
		defaultModel: config.DefaultModel,
		retry:        newRetrySchedule(config.MaxRetries, config.RetryDelay),
	}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextSize: 1000000, SupportsVision: true},
		{ID: "gemini-2.0-flash-lite", Name: "Gemini 2.0 Flash Lite", ContextSize: 1000000, SupportsVision: true},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", ContextSize: 2000000, SupportsVision: true},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", ContextSize: 1000000, SupportsVision: true},
	}
}

func (p *GoogleProvider) SupportsTools() bool { return true }

func (p *GoogleProvider) CountTokens(req *agent.CompletionRequest) int {
	return estimateRequestTokens(req)
}

// Complete streams a Gemini response. Each retry attempt restarts the
// whole generation, so a mid-stream failure after partial output is
// surfaced as an error instead of being silently replayed.
func (p *GoogleProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	chunks := make(chan *agent.CompletionChunk)

	go func() {
		defer close(chunks)

		model := pickModel(req.Model, p.defaultModel)
		contents := p.convertMessages(req.Messages)
		config := p.buildConfig(req)

		emitted := false
		err := p.retry.run(ctx, func(err error) bool {
			// Only retry failures that happened before any output reached
			// the caller; replaying a half-delivered stream would duplicate
			// text the subscriber already saw.
			return !emitted && IsRetryable(err)
		}, func() error {
			stream := p.client.Models.GenerateContentStream(ctx, model, contents, config)
			return p.drainStream(ctx, stream, chunks, &emitted)
		})

		if err != nil {
			if ctx.Err() != nil {
				chunks <- &agent.CompletionChunk{Error: ctx.Err()}
				return
			}
			chunks <- &agent.CompletionChunk{Error: p.wrapError(err, model)}
			return
		}
		chunks <- &agent.CompletionChunk{Done: true}
	}()

	return chunks, nil
}

func (p *GoogleProvider) drainStream(ctx context.Context, stream iter.Seq2[*genai.GenerateContentResponse, error], chunks chan<- *agent.CompletionChunk, emitted *bool) error {
	for resp, err := range stream {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		if resp == nil {
			continue
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					*emitted = true
					chunks <- &agent.CompletionChunk{Text: part.Text}
				}
				if part.FunctionCall != nil {
					args, jsonErr := json.Marshal(part.FunctionCall.Args)
					if jsonErr != nil {
						args = []byte("{}")
					}
					*emitted = true
					chunks <- &agent.CompletionChunk{ToolCall: &models.ToolCall{
						ID:    syntheticToolCallID(part.FunctionCall.Name),
						Name:  part.FunctionCall.Name,
						Input: args,
					}}
				}
			}
		}
	}
	return nil
}

// convertMessages maps the transcript onto Gemini contents. The system
// prompt travels via SystemInstruction; tool results become function
// responses on the user side, named by resolving the call id against
// earlier assistant tool calls.
func (p *GoogleProvider) convertMessages(messages []agent.CompletionMessage) []*genai.Content {
	var out []*genai.Content
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		content := &genai.Content{Role: genai.RoleUser}
		if msg.Role == "assistant" {
			content.Role = genai.RoleModel
		}

		if msg.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal(tc.Input, &args); err != nil {
				args = map[string]any{}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args},
			})
		}
		for _, tr := range msg.ToolResults {
			var response map[string]any
			if err := json.Unmarshal([]byte(tr.Content), &response); err != nil {
				response = map[string]any{"result": tr.Content, "error": tr.IsError}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     toolNameForCallID(tr.ToolCallID, messages),
					Response: response,
				},
			})
		}

		if len(content.Parts) > 0 {
			out = append(out, content)
		}
	}
	return out
}

func (p *GoogleProvider) buildConfig(req *agent.CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(min(req.MaxTokens, math.MaxInt32))
	}
	if len(req.Tools) > 0 {
		config.Tools = toolconv.ToGeminiTools(req.Tools)
	}
	return config
}

func (p *GoogleProvider) wrapError(err error, model string) error {
	if err == nil || IsProviderError(err) {
		return err
	}
	return NewProviderError("google", model, err)
}

// syntheticToolCallID invents a call id for a Gemini function call so the
// transcript's call/result pairing works the same as providers that issue
// their own ids. The name is embedded so toolNameForCallID can fall back
// to parsing it if the originating message has been compacted away.
func syntheticToolCallID(name string) string {
	return fmt.Sprintf("call_%s_%d", name, time.Now().UnixNano())
}

// toolNameForCallID resolves a call id back to its function name, first
// from the transcript, then from the id format syntheticToolCallID uses.
func toolNameForCallID(callID string, messages []agent.CompletionMessage) string {
	for _, msg := range messages {
		for _, tc := range msg.ToolCalls {
			if tc.ID == callID {
				return tc.Name
			}
		}
	}
	var name string
	if _, err := fmt.Sscanf(callID, "call_%s", &name); err == nil {
		if idx := lastUnderscore(name); idx > 0 {
			return name[:idx]
		}
	}
	return ""
}

func lastUnderscore(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			return i
		}
	}
	return -1
}
