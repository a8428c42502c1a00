package provider

// ParamSpec describes one tool parameter in the provider-agnostic catalog.
type ParamSpec struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ToolSpec describes one invocable tool. Every spec carries the mandatory
// rationale_text parameter: the backend must justify an action before the
// broker ever sees it.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ParamSpec
}

// rationaleParam is attached to every tool schema.
var rationaleParam = ParamSpec{
	Name:        "rationale_text",
	Type:        "string",
	Description: "Justification for this action: intent, exact action, expected outcome, and risk. Required before the action can be accepted.",
	Required:    true,
}

// Catalog returns the fixed set of tools declared to the backend on every
// call. The broker's handler table mirrors these names.
func Catalog() []ToolSpec {
	return []ToolSpec{
		{
			Name:        "runCommand",
			Description: "Run a shell command and capture stdout, stderr and the exit code. The operator must confirm before anything runs.",
			Params: []ParamSpec{
				{Name: "command", Type: "string", Description: "Shell command to execute.", Required: true},
				{Name: "working_directory", Type: "string", Description: "Directory to run the command in. Defaults to the session working directory.", Required: false},
				rationaleParam,
			},
		},
		{
			Name:        "readFile",
			Description: "Read a file and return its content.",
			Params: []ParamSpec{
				{Name: "path", Type: "string", Description: "Path of the file to read.", Required: true},
				rationaleParam,
			},
		},
		{
			Name:        "writeFile",
			Description: "Write content to a file, creating or overwriting it.",
			Params: []ParamSpec{
				{Name: "path", Type: "string", Description: "Path of the file to write.", Required: true},
				{Name: "content", Type: "string", Description: "Full content to write.", Required: true},
				rationaleParam,
			},
		},
	}
}

// Properties renders the parameters as a JSON-schema properties map.
func (t ToolSpec) Properties() map[string]any {
	props := make(map[string]any, len(t.Params))
	for _, p := range t.Params {
		props[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
	}
	return props
}

// RequiredParams lists the names of required parameters, in declaration order.
func (t ToolSpec) RequiredParams() []string {
	var required []string
	for _, p := range t.Params {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return required
}

// JSONSchema renders the full object schema for providers that take one blob.
func (t ToolSpec) JSONSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": t.Properties(),
		"required":   t.RequiredParams(),
	}
}
