package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/agent/toolconv"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// BedrockConfig configures a BedrockProvider. Credentials come from the
// default AWS chain (env, shared config, IAM role) unless set explicitly.
type BedrockConfig struct {
	// Region is the AWS region. Default: us-east-1.
	Region string

	// AccessKeyID/SecretAccessKey/SessionToken bypass the default
	// credential chain when all required fields are set.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// BedrockProvider drives Bedrock-hosted models through the Converse
// streaming API, which normalizes Claude, Titan, and Llama behind one
// wire shape. Safe for concurrent use.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
	retry        retrySchedule
}

// NewBedrockProvider builds a provider from cfg, loading AWS credentials
// from the default chain unless explicit keys are given.
func NewBedrockProvider(cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		retry:        newRetrySchedule(cfg.MaxRetries, cfg.RetryDelay),
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

// Models lists commonly enabled Bedrock models; actual availability
// depends on the account's model access grants.
func (p *BedrockProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "anthropic.claude-3-5-sonnet-20241022-v2:0", Name: "Claude 3.5 Sonnet (Bedrock)", ContextSize: 200000, SupportsVision: true},
		{ID: "anthropic.claude-3-opus-20240229-v1:0", Name: "Claude 3 Opus (Bedrock)", ContextSize: 200000, SupportsVision: true},
		{ID: "anthropic.claude-3-haiku-20240307-v1:0", Name: "Claude 3 Haiku (Bedrock)", ContextSize: 200000, SupportsVision: true},
		{ID: "amazon.titan-text-express-v1", Name: "Titan Text Express", ContextSize: 8192, SupportsVision: false},
		{ID: "meta.llama3-70b-instruct-v1:0", Name: "Llama 3 70B (Bedrock)", ContextSize: 8192, SupportsVision: false},
	}
}

func (p *BedrockProvider) SupportsTools() bool { return true }

func (p *BedrockProvider) CountTokens(req *agent.CompletionRequest) int {
	return estimateRequestTokens(req)
}

// Complete streams a Converse response.
func (p *BedrockProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if p.client == nil {
		return nil, NewProviderError("bedrock", req.Model, errors.New("client not initialized"))
	}

	model := pickModel(req.Model, p.defaultModel)
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: p.convertMessages(req.Messages),
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.MaxTokens > 0 {
		input.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(min(req.MaxTokens, math.MaxInt32))),
		}
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = toolconv.ToBedrockTools(req.Tools)
	}

	var stream *bedrockruntime.ConverseStreamOutput
	err := p.retry.run(ctx, p.isRetryable, func() error {
		var callErr error
		stream, callErr = p.client.ConverseStream(ctx, input)
		if callErr != nil {
			return p.wrapError(callErr, model)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.drainStream(ctx, stream, chunks, model)
	return chunks, nil
}

func (p *BedrockProvider) drainStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, chunks chan<- *agent.CompletionChunk, model string) {
	defer close(chunks)
	events := stream.GetStream()
	defer events.Close()

	var pending *toolCallAssembly

	flushPending := func() {
		if pending != nil && pending.call.ID != "" {
			pending.call.Input = json.RawMessage(pending.input.String())
			chunks <- &agent.CompletionChunk{ToolCall: pending.call}
			pending = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			chunks <- &agent.CompletionChunk{Error: ctx.Err(), Done: true}
			return
		case event, ok := <-events.Events():
			if !ok {
				flushPending()
				if err := events.Err(); err != nil {
					chunks <- &agent.CompletionChunk{Error: p.wrapError(err, model), Done: true}
				} else {
					chunks <- &agent.CompletionChunk{Done: true}
				}
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if use, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					pending = &toolCallAssembly{call: &models.ToolCall{
						ID:   aws.ToString(use.Value.ToolUseId),
						Name: aws.ToString(use.Value.Name),
					}}
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						chunks <- &agent.CompletionChunk{Text: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if pending != nil && delta.Value.Input != nil {
						pending.input.WriteString(*delta.Value.Input)
					}
				}

			case *types.ConverseStreamOutputMemberContentBlockStop:
				flushPending()

			case *types.ConverseStreamOutputMemberMessageStop:
				chunks <- &agent.CompletionChunk{Done: true}
				return
			}
		}
	}
}

// convertMessages maps the transcript onto Converse messages: text, tool
// use, and tool result blocks, with the system prompt carried separately.
func (p *BedrockProvider) convertMessages(messages []agent.CompletionMessage) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []types.ContentBlock
		if msg.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
		}
		for _, tr := range msg.ToolResults {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: tr.Content},
					},
				},
			})
		}
		for _, tc := range msg.ToolCalls {
			var inputDoc any
			if err := json.Unmarshal(tc.Input, &inputDoc); err != nil {
				inputDoc = map[string]any{}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(inputDoc),
				},
			})
		}
		if len(content) == 0 {
			continue
		}

		role := types.ConversationRoleUser
		if msg.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: content})
	}
	return out
}

// isRetryable extends the shared classification with the AWS exception
// names Bedrock throttling surfaces as.
func (p *BedrockProvider) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	if strings.Contains(text, "ThrottlingException") ||
		strings.Contains(text, "TooManyRequestsException") ||
		strings.Contains(text, "ServiceUnavailableException") {
		return true
	}
	return IsRetryable(err)
}

func (p *BedrockProvider) wrapError(err error, model string) error {
	if err == nil || IsProviderError(err) {
		return err
	}
	return NewProviderError("bedrock", model, err)
}
