package mcp

import (
	"encoding/json"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ToolResult is the minimal shape contract every tool invocation result must
// satisfy before it is trusted: a boolean success flag, the echoed tool name
// and arguments, and diagnostic strings. Anything that fails validation is
// downgraded to a synthetic failure result, never propagated as an error.
type ToolResult struct {
	Success   bool           `json:"success"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Output    string         `json:"output,omitempty"`
	Stdout    string         `json:"stdout,omitempty"`
	Stderr    string         `json:"stderr,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// FailureResult builds a synthetic failure result for a call that never
// produced a trustworthy response.
func FailureResult(name string, args map[string]any, reason string) *ToolResult {
	return &ToolResult{
		Success:   false,
		Name:      name,
		Arguments: args,
		Error:     reason,
	}
}

// parseToolResponse validates a raw HTTP-daemon response body against the
// shape contract. Fields are checked in a fixed order - success, then name,
// then arguments - and the first malformed field wins: its name is cited in
// the synthetic failure so multi-field garbage still yields one deterministic
// diagnosis.
func parseToolResponse(body []byte, name string, args map[string]any) *ToolResult {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return FailureResult(name, args, fmt.Sprintf("malformed tool response: not a JSON object: %v", err))
	}

	result := &ToolResult{Name: name, Arguments: args}

	successRaw, ok := raw["success"]
	if !ok {
		return FailureResult(name, args, "malformed tool response: missing required field \"success\"")
	}
	if err := json.Unmarshal(successRaw, &result.Success); err != nil {
		return FailureResult(name, args, "malformed tool response: field \"success\" is not a boolean")
	}

	if nameRaw, ok := raw["name"]; ok {
		var echoed string
		if err := json.Unmarshal(nameRaw, &echoed); err != nil {
			return FailureResult(name, args, "malformed tool response: field \"name\" is not a string")
		}
		result.Name = echoed
	}

	if argsRaw, ok := raw["arguments"]; ok {
		var echoed map[string]any
		if err := json.Unmarshal(argsRaw, &echoed); err != nil {
			return FailureResult(name, args, "malformed tool response: field \"arguments\" is not an object")
		}
		result.Arguments = echoed
	}

	// Diagnostic strings are optional; absent fields stay empty.
	decodeString(raw, "output", &result.Output)
	decodeString(raw, "stdout", &result.Stdout)
	decodeString(raw, "stderr", &result.Stderr)
	decodeString(raw, "error", &result.Error)

	return result
}

func decodeString(raw map[string]json.RawMessage, key string, dst *string) {
	if v, ok := raw[key]; ok {
		// A non-string diagnostic is kept as its raw JSON text rather than
		// failing the whole response.
		if err := json.Unmarshal(v, dst); err != nil {
			*dst = string(v)
		}
	}
}

// resultFromMCP converts an MCP call result from a spawned provider into the
// shape contract. MCP reports errors in-band via IsError, so a faulty call
// still becomes a structured failure.
func resultFromMCP(name string, args map[string]any, res *mcptypes.CallToolResult) *ToolResult {
	if res == nil {
		return FailureResult(name, args, "tool returned no result")
	}

	output := flattenContent(res.Content)

	if res.IsError {
		return &ToolResult{
			Success:   false,
			Name:      name,
			Arguments: args,
			Stderr:    output,
			Error:     output,
		}
	}

	return &ToolResult{
		Success:   true,
		Name:      name,
		Arguments: args,
		Output:    output,
		Stdout:    output,
	}
}

// flattenContent extracts the text of an MCP content list. Non-text content
// is carried as its JSON encoding so nothing is silently dropped.
func flattenContent(content []mcptypes.Content) string {
	if len(content) == 0 {
		return ""
	}

	var out string
	for i, item := range content {
		if i > 0 {
			out += "\n"
		}
		switch tc := item.(type) {
		case mcptypes.TextContent:
			out += tc.Text
			continue
		case *mcptypes.TextContent:
			out += tc.Text
			continue
		}
		encoded, err := json.Marshal(item)
		if err != nil {
			out += fmt.Sprintf("(unrenderable content: %v)", err)
			continue
		}
		out += string(encoded)
	}
	return out
}
