package mcp

import (
	"encoding/json"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
)

func sampleDescriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        "weather::get_weather",
		Description: "Get the current weather for a location",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "The city and state",
				},
				"units": map[string]any{
					"type": "string",
					"enum": []any{"celsius", "fahrenheit"},
				},
			},
			Required: []string{"location"},
		},
		ProviderID:   "weather",
		ProviderName: "weather",
		Transport:    TransportSpawn,
	}
}

func TestDescriptorsToOllama(t *testing.T) {
	tools := DescriptorsToOllama([]ToolDescriptor{sampleDescriptor()})
	if len(tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(tools))
	}

	fn := tools[0].Function
	if tools[0].Type != "function" {
		t.Errorf("tool type = %q, want function", tools[0].Type)
	}
	if fn.Name != "weather::get_weather" {
		t.Errorf("name = %q, want the qualified form", fn.Name)
	}
	if fn.Parameters.Type != "object" {
		t.Errorf("parameters type = %q, want object", fn.Parameters.Type)
	}
	if len(fn.Parameters.Required) != 1 || fn.Parameters.Required[0] != "location" {
		t.Errorf("required = %v, want [location]", fn.Parameters.Required)
	}

	loc, ok := fn.Parameters.Properties["location"]
	if !ok {
		t.Fatal("missing location property")
	}
	if len(loc.Type) != 1 || loc.Type[0] != "string" {
		t.Errorf("location type = %v, want [string]", loc.Type)
	}
	if loc.Description != "The city and state" {
		t.Errorf("location description = %q", loc.Description)
	}

	units, ok := fn.Parameters.Properties["units"]
	if !ok {
		t.Fatal("missing units property")
	}
	if len(units.Enum) != 2 {
		t.Errorf("units enum = %v, want two entries", units.Enum)
	}
}

func TestSchemaPropertyToOllamaTypeVariants(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  api.PropertyType
	}{
		{
			name:  "string type",
			input: map[string]any{"type": "integer"},
			want:  api.PropertyType{"integer"},
		},
		{
			name:  "type list",
			input: map[string]any{"type": []any{"string", "null"}},
			want:  api.PropertyType{"string", "null"},
		},
		{
			name:  "missing type",
			input: map[string]any{"description": "untyped"},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prop := schemaPropertyToOllama(tt.input)
			if len(prop.Type) != len(tt.want) {
				t.Fatalf("type = %v, want %v", prop.Type, tt.want)
			}
			for i := range tt.want {
				if prop.Type[i] != tt.want[i] {
					t.Errorf("type[%d] = %q, want %q", i, prop.Type[i], tt.want[i])
				}
			}
		})
	}
}

func TestSchemaPropertyToOllamaAnyOf(t *testing.T) {
	prop := schemaPropertyToOllama(map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "number"},
		},
	})
	if len(prop.AnyOf) != 2 {
		t.Fatalf("anyOf = %v, want two branches", prop.AnyOf)
	}
	if prop.AnyOf[0].Type[0] != "string" || prop.AnyOf[1].Type[0] != "number" {
		t.Errorf("anyOf branch types = %v, %v", prop.AnyOf[0].Type, prop.AnyOf[1].Type)
	}
}

func TestOllamaToolCallArgs(t *testing.T) {
	call := api.ToolCall{
		Function: api.ToolCallFunction{
			Name:      "weather::get_weather",
			Arguments: map[string]any{"location": "Berlin"},
		},
	}

	name, args := OllamaToolCallArgs(call)
	if name != "weather::get_weather" {
		t.Errorf("name = %q", name)
	}
	if args["location"] != "Berlin" {
		t.Errorf("arguments = %v", args)
	}
}

func TestDescriptorsToOpenAI(t *testing.T) {
	if got := DescriptorsToOpenAI(nil); got != nil {
		t.Errorf("nil descriptors should yield nil, got %v", got)
	}

	tools := DescriptorsToOpenAI([]ToolDescriptor{sampleDescriptor()})
	if len(tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(tools))
	}

	// The union param is opaque; assert on its wire encoding.
	encoded, err := json.Marshal(tools[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire struct {
		Type     string `json:"type"`
		Function struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			Parameters  map[string]any `json:"parameters"`
		} `json:"function"`
	}
	if err := json.Unmarshal(encoded, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.Type != "function" {
		t.Errorf("type = %q, want function", wire.Type)
	}
	if wire.Function.Name != "weather::get_weather" {
		t.Errorf("name = %q", wire.Function.Name)
	}
	if wire.Function.Parameters["type"] != "object" {
		t.Errorf("parameters type = %v, want object", wire.Function.Parameters["type"])
	}
	if _, ok := wire.Function.Parameters["required"]; !ok {
		t.Error("required fields should be carried through")
	}
}

func TestDescriptorsToAnthropic(t *testing.T) {
	if got := DescriptorsToAnthropic(nil); got != nil {
		t.Errorf("nil descriptors should yield nil, got %v", got)
	}

	tools := DescriptorsToAnthropic([]ToolDescriptor{sampleDescriptor()})
	if len(tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(tools))
	}
	if tools[0].OfTool == nil {
		t.Fatal("expected a plain tool variant")
	}
	if tools[0].OfTool.Name != "weather::get_weather" {
		t.Errorf("name = %q", tools[0].OfTool.Name)
	}
	if tools[0].OfTool.InputSchema.Properties == nil {
		t.Error("input schema properties should be carried through")
	}
}
