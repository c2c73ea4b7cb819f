package llm

import "encoding/json"

// Tool describes a callable tool as advertised by a tool server.
type Tool struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// ParametersSchema returns the tool schema, defaulting to an empty object schema.
func (t Tool) ParametersSchema() json.RawMessage {
	if len(t.Schema) == 0 || string(t.Schema) == "null" {
		return emptyObjectSchema
	}
	return t.Schema
}

func ToolNames(tools []Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}

func FindTool(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
