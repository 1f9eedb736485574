package provider

import (
	"strings"

	"chatd/mcp"
)

// The OpenAI-compatible APIs require tool names matching ^[a-zA-Z0-9_-]{1,64}$,
// which rejects the "::" in provider-qualified names. Qualified names are
// rewritten to a double-underscore form on the way out and restored on the
// way back.

func sanitizeDescriptorNames(tools []mcp.ToolDescriptor) []mcp.ToolDescriptor {
	converted := make([]mcp.ToolDescriptor, len(tools))
	for i, tool := range tools {
		converted[i] = tool
		converted[i].Name = strings.ReplaceAll(tool.Name, mcp.QualifiedNameSeparator, "__")
	}
	return converted
}

func restoreQualifiedName(toolName string) string {
	return strings.Replace(toolName, "__", mcp.QualifiedNameSeparator, 1)
}
