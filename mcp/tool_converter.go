package mcp

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// DescriptorsToOllama converts provider-qualified tool descriptors to the
// Ollama API tool format. The qualified name is what the model sees, so tool
// calls come back already routable.
func DescriptorsToOllama(descriptors []ToolDescriptor) []api.Tool {
	ollamaTools := make([]api.Tool, 0, len(descriptors))

	for _, desc := range descriptors {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        desc.Name,
				Description: desc.Description,
				Parameters:  schemaToOllamaParameters(desc),
			},
		})
	}

	return ollamaTools
}

func schemaToOllamaParameters(desc ToolDescriptor) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       desc.InputSchema.Type,
		Required:   desc.InputSchema.Required,
		Properties: make(map[string]api.ToolProperty),
	}

	if desc.InputSchema.Defs != nil {
		params.Defs = desc.InputSchema.Defs
	}

	for propName, propValue := range desc.InputSchema.Properties {
		params.Properties[propName] = schemaPropertyToOllama(propValue)
	}

	return params
}

// schemaPropertyToOllama converts one JSON-schema property into an Ollama
// ToolProperty, tolerating the loose shapes real servers emit.
func schemaPropertyToOllama(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		// Not a map; round-trip through JSON to normalize.
		raw, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return toolProp
		}
		propMap = m
	}

	// "type" can be a string or a list of strings.
	if typeVal, ok := propMap["type"]; ok {
		switch t := typeVal.(type) {
		case string:
			toolProp.Type = api.PropertyType{t}
		case []string:
			toolProp.Type = api.PropertyType(t)
		case []any:
			types := make([]string, 0, len(t))
			for _, v := range t {
				if s, ok := v.(string); ok {
					types = append(types, s)
				}
			}
			toolProp.Type = api.PropertyType(types)
		}
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}

	if enumVal, ok := propMap["enum"]; ok {
		if enumSlice, ok := enumVal.([]any); ok {
			toolProp.Enum = enumSlice
		}
	}

	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}

	if anyOfVal, ok := propMap["anyOf"]; ok {
		if anyOfSlice, ok := anyOfVal.([]any); ok {
			anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
			for _, item := range anyOfSlice {
				anyOfProps = append(anyOfProps, schemaPropertyToOllama(item))
			}
			toolProp.AnyOf = anyOfProps
		}
	}

	return toolProp
}

// OllamaToolCallArgs extracts the qualified tool name and argument map from
// an Ollama tool call.
func OllamaToolCallArgs(toolCall api.ToolCall) (string, map[string]any) {
	return toolCall.Function.Name, map[string]any(toolCall.Function.Arguments)
}

// DescriptorsToOpenAI converts descriptors to the OpenAI function-tool
// format. OpenRouter shares this shape.
func DescriptorsToOpenAI(descriptors []ToolDescriptor) []openai.ChatCompletionToolUnionParam {
	if len(descriptors) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(descriptors))

	for i, desc := range descriptors {
		// Both sides are JSON Schema; the struct just flattens to a map.
		params := openai.FunctionParameters{
			"type":       desc.InputSchema.Type,
			"properties": desc.InputSchema.Properties,
		}

		if len(desc.InputSchema.Required) > 0 {
			params["required"] = desc.InputSchema.Required
		}

		if desc.InputSchema.Defs != nil {
			params["$defs"] = desc.InputSchema.Defs
		}

		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        desc.Name,
				Description: openai.String(desc.Description),
				Parameters:  params,
			},
		)
	}

	return result
}

// DescriptorsToAnthropic converts descriptors to Anthropic's tool-use format.
func DescriptorsToAnthropic(descriptors []ToolDescriptor) []anthropic.ToolUnionParam {
	if len(descriptors) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(descriptors))

	for i, desc := range descriptors {
		inputSchema := anthropic.ToolInputSchemaParam{
			// Type defaults to "object" when omitted.
			Properties: desc.InputSchema.Properties,
		}

		if len(desc.InputSchema.Required) > 0 {
			inputSchema.Required = desc.InputSchema.Required
		}

		if desc.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": desc.InputSchema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, desc.Name)

		if desc.Description != "" {
			result[i].OfTool.Description = anthropic.String(desc.Description)
		}
	}

	return result
}
