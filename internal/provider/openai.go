package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"forgeshell/internal/logger"
	"forgeshell/pkg/forgetypes"
)

// OpenAIClient implements the ProviderClient interface for OpenAI's API.
// It provides lazy initialization of the OpenAI client and handles
// all OpenAI-specific communication logic.
type OpenAIClient struct {
	apiKey string
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client with lazy initialization.
// The actual OpenAI client is created only when the first request is made.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey: apiKey,
		client: nil, // Will be initialized lazily
	}
}

// ProviderName returns the provider name for this client.
func (c *OpenAIClient) ProviderName() string {
	return "openai"
}

// IsConfigured returns true if the client has a valid API key.
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// initializeClientIfNeeded initializes the OpenAI client if it hasn't been initialized yet.
func (c *OpenAIClient) initializeClientIfNeeded() error {
	if c.client != nil {
		return nil // Already initialized
	}

	if c.apiKey == "" {
		return fmt.Errorf("OpenAI API key not configured")
	}

	client := openai.NewClient(option.WithAPIKey(c.apiKey))
	c.client = &client

	logger.Debug("OpenAI client initialized", "provider", "openai")
	return nil
}

// Send performs one chat completion call, declaring the tool catalog, and
// decodes the response into the canonical Reply shape.
func (c *OpenAIClient) Send(ctx context.Context, req forgetypes.SendRequest) (*forgetypes.Reply, error) {
	logger.Debug("OpenAI Send starting", "model", req.Model)

	if err := c.initializeClientIfNeeded(); err != nil {
		return nil, &Error{Provider: "openai", Err: err}
	}

	messages := convertMessagesToOpenAI(req.History)
	if system := combineSystem(req.SystemPrompt, nil); system != "" {
		messages = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system)}, messages...)
	}
	logger.Debug("Messages converted", "message_count", len(messages))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(req.Model),
		Messages:            messages,
		Tools:               openaiToolCatalog(),
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("OpenAI request failed", "error", err)
		return nil, &Error{Provider: "openai", Err: err}
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response choices returned", ErrMalformedResponse)
	}
	return decodeOpenAIChoice(completion.Choices[0])
}

// openaiToolCatalog converts the fixed tool catalog to OpenAI function tools.
func openaiToolCatalog() []openai.ChatCompletionToolParam {
	specs := Catalog()
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  shared.FunctionParameters(spec.JSONSchema()),
			},
		})
	}
	return tools
}

// convertMessagesToOpenAI converts the canonical history to OpenAI message
// params. Assistant tool-call turns are replayed with their tool_calls entry
// and tool results as tool messages keyed by the call id.
func convertMessagesToOpenAI(history []forgetypes.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case forgetypes.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case forgetypes.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case forgetypes.RoleAssistant:
			if msg.ToolCallID == "" {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: []openai.ChatCompletionMessageToolCallParam{{
					ID: msg.ToolCallID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      msg.ToolName,
						Arguments: msg.ToolArgs,
					},
				}},
			}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case forgetypes.RoleToolResult:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}
	return messages
}

// decodeOpenAIChoice extracts conversation text and at most one tool request
// from a completion choice.
func decodeOpenAIChoice(choice openai.ChatCompletionChoice) (*forgetypes.Reply, error) {
	reply := &forgetypes.Reply{Text: choice.Message.Content}

	if len(choice.Message.ToolCalls) > 1 {
		return nil, fmt.Errorf("%w: multiple tool calls in one openai message", ErrMalformedResponse)
	}
	if len(choice.Message.ToolCalls) == 1 {
		call := choice.Message.ToolCalls[0]
		args, err := decodeToolArgsJSON([]byte(call.Function.Arguments))
		if err != nil {
			return nil, err
		}
		request, err := newToolRequest(call.ID, call.Function.Name, args)
		if err != nil {
			return nil, err
		}
		reply.ToolRequest = request
	}

	if reply.Text == "" && reply.ToolRequest == nil {
		return nil, fmt.Errorf("%w: empty response content", ErrMalformedResponse)
	}

	logger.Debug("OpenAI response decoded",
		"content_length", len(reply.Text),
		"tool_requested", reply.ToolRequest != nil)
	return reply, nil
}
