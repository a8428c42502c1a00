package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"forgeshell/internal/logger"
	"forgeshell/pkg/forgetypes"
)

// GeminiClient implements the ProviderClient interface for Google Gemini API.
// It provides lazy initialization of the Gemini client and handles
// all Gemini-specific communication logic.
type GeminiClient struct {
	apiKey string
	client *genai.Client
}

// NewGeminiClient creates a new Gemini client with lazy initialization.
// The actual Gemini client is created only when the first request is made.
func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		apiKey: apiKey,
		client: nil, // Will be initialized lazily
	}
}

// ProviderName returns the provider name for this client.
func (c *GeminiClient) ProviderName() string {
	return "gemini"
}

// IsConfigured returns true if the client has a valid API key.
func (c *GeminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

// initializeClientIfNeeded initializes the Gemini client if it hasn't been initialized yet.
func (c *GeminiClient) initializeClientIfNeeded(ctx context.Context) error {
	if c.client != nil {
		return nil // Already initialized
	}

	if c.apiKey == "" {
		return fmt.Errorf("google API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.apiKey})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c.client = client
	logger.Debug("Gemini client initialized", "provider", "gemini")
	return nil
}

// Send performs one generate-content call, declaring the tool catalog, and
// decodes the response into the canonical Reply shape.
func (c *GeminiClient) Send(ctx context.Context, req forgetypes.SendRequest) (*forgetypes.Reply, error) {
	logger.Debug("Gemini Send starting", "model", req.Model)

	if err := c.initializeClientIfNeeded(ctx); err != nil {
		return nil, &Error{Provider: "gemini", Err: err}
	}

	contents := convertMessagesToGemini(req.History)
	logger.Debug("Messages converted", "content_count", len(contents))

	config := &genai.GenerateContentConfig{
		Tools: geminiToolCatalog(),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if system := combineSystem(req.SystemPrompt, req.History); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		logger.Error("Gemini request failed", "error", err)
		return nil, &Error{Provider: "gemini", Err: err}
	}

	return decodeGeminiResponse(result)
}

// geminiToolCatalog converts the fixed tool catalog to Gemini function declarations.
func geminiToolCatalog() []*genai.Tool {
	specs := Catalog()
	declarations := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		properties := make(map[string]*genai.Schema, len(spec.Params))
		for _, p := range spec.Params {
			properties[p.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.Description,
			}
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   spec.RequiredParams(),
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertMessagesToGemini converts the canonical history to Gemini contents.
// System messages are folded into the system instruction separately. Assistant
// tool-call turns are replayed as function-call parts and tool results as
// function-response parts.
func convertMessagesToGemini(history []forgetypes.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case forgetypes.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case forgetypes.RoleAssistant:
			if msg.ToolCallID == "" {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
				continue
			}
			args, err := decodeToolArgsJSON([]byte(msg.ToolArgs))
			if err != nil {
				args = map[string]any{}
			}
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			parts = append(parts, genai.NewPartFromFunctionCall(msg.ToolName, args))
			contents = append(contents, &genai.Content{Role: string(genai.RoleModel), Parts: parts})
		case forgetypes.RoleToolResult:
			response := map[string]any{"result": msg.Content}
			contents = append(contents, &genai.Content{
				Role:  string(genai.RoleUser),
				Parts: []*genai.Part{genai.NewPartFromFunctionResponse(msg.ToolName, response)},
			})
		case forgetypes.RoleSystem:
			continue
		}
	}
	return contents
}

// decodeGeminiResponse extracts conversation text and at most one tool
// request from the generate-content response.
func decodeGeminiResponse(result *genai.GenerateContentResponse) (*forgetypes.Reply, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in gemini response", ErrMalformedResponse)
	}

	reply := &forgetypes.Reply{Text: result.Text()}

	calls := result.FunctionCalls()
	if len(calls) > 1 {
		return nil, fmt.Errorf("%w: multiple function calls in one gemini response", ErrMalformedResponse)
	}
	if len(calls) == 1 {
		call := calls[0]
		args := call.Args
		if args == nil {
			args = map[string]any{}
		}
		// Gemini does not assign call ids; newToolRequest generates one.
		request, err := newToolRequest(call.ID, call.Name, args)
		if err != nil {
			return nil, err
		}
		reply.ToolRequest = request
	}

	if reply.Text == "" && reply.ToolRequest == nil {
		return nil, fmt.Errorf("%w: no content in gemini response", ErrMalformedResponse)
	}

	logger.Debug("Gemini response decoded",
		"content_length", len(reply.Text),
		"tool_requested", reply.ToolRequest != nil)
	return reply, nil
}
