package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"forgeshell/internal/logger"
	"forgeshell/pkg/forgetypes"
)

// AnthropicClient implements the ProviderClient interface for Anthropic's API.
// It provides lazy initialization of the Anthropic client and handles
// all Anthropic-specific communication logic.
type AnthropicClient struct {
	apiKey string
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client with lazy initialization.
// The actual Anthropic client is created only when the first request is made.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		apiKey: apiKey,
		client: nil, // Will be initialized lazily
	}
}

// ProviderName returns the provider name for this client.
func (c *AnthropicClient) ProviderName() string {
	return "anthropic"
}

// IsConfigured returns true if the client has a valid API key.
func (c *AnthropicClient) IsConfigured() bool {
	return c.apiKey != ""
}

// initializeClientIfNeeded initializes the Anthropic client if it hasn't been initialized yet.
func (c *AnthropicClient) initializeClientIfNeeded() error {
	if c.client != nil {
		return nil // Already initialized
	}

	if c.apiKey == "" {
		return fmt.Errorf("anthropic API key not configured")
	}

	client := anthropic.NewClient(option.WithAPIKey(c.apiKey))
	c.client = &client

	logger.Debug("Anthropic client initialized", "provider", "anthropic")
	return nil
}

// Send performs one completion call, declaring the tool catalog, and decodes
// the response into the canonical Reply shape.
func (c *AnthropicClient) Send(ctx context.Context, req forgetypes.SendRequest) (*forgetypes.Reply, error) {
	logger.Debug("Anthropic Send starting", "model", req.Model)

	if err := c.initializeClientIfNeeded(); err != nil {
		return nil, &Error{Provider: "anthropic", Err: err}
	}

	messages := convertMessagesToAnthropic(req.History)
	logger.Debug("Messages converted", "message_count", len(messages))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  messages,
		Tools:     anthropicToolCatalog(),
	}

	if system := combineSystem(req.SystemPrompt, req.History); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		logger.Error("Anthropic request failed", "error", err)
		return nil, &Error{Provider: "anthropic", Err: err}
	}

	return decodeAnthropicMessage(message)
}

// anthropicToolCatalog converts the fixed tool catalog to Anthropic tool params.
func anthropicToolCatalog() []anthropic.ToolUnionParam {
	specs := Catalog()
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: spec.Properties(),
					Required:   spec.RequiredParams(),
				},
			},
		})
	}
	return tools
}

// convertMessagesToAnthropic converts the canonical history to Anthropic
// message params. System messages are handled separately via the system
// parameter. Assistant tool-call turns are replayed as tool_use blocks and
// tool results as tool_result blocks inside user messages, which is the shape
// the Anthropic API requires.
func convertMessagesToAnthropic(history []forgetypes.Message) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case forgetypes.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case forgetypes.RoleAssistant:
			if msg.ToolCallID == "" {
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
				continue
			}
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(msg.ToolCallID, json.RawMessage(msg.ToolArgs), msg.ToolName))
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case forgetypes.RoleToolResult:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)))
		case forgetypes.RoleSystem:
			// Folded into the system parameter by combineSystem.
			continue
		}
	}
	return messages
}

// decodeAnthropicMessage extracts conversation text and at most one tool
// request from the response blocks.
func decodeAnthropicMessage(message *anthropic.Message) (*forgetypes.Reply, error) {
	if len(message.Content) == 0 {
		return nil, fmt.Errorf("%w: empty anthropic message", ErrMalformedResponse)
	}

	reply := &forgetypes.Reply{}
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			reply.Text += variant.Text
		case anthropic.ToolUseBlock:
			if reply.ToolRequest != nil {
				return nil, fmt.Errorf("%w: multiple tool calls in one anthropic message", ErrMalformedResponse)
			}
			args, err := decodeToolArgs(variant.Input)
			if err != nil {
				return nil, err
			}
			request, err := newToolRequest(variant.ID, variant.Name, args)
			if err != nil {
				return nil, err
			}
			reply.ToolRequest = request
		}
	}

	if reply.Text == "" && reply.ToolRequest == nil {
		return nil, fmt.Errorf("%w: no usable content blocks", ErrMalformedResponse)
	}

	logger.Debug("Anthropic response decoded",
		"content_length", len(reply.Text),
		"tool_requested", reply.ToolRequest != nil)
	return reply, nil
}
