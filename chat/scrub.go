package chat

import (
	"regexp"
	"strings"
)

var (
	// JSON array tool calls, with argument key variations.
	leakedJSONArray = regexp.MustCompile(`\[\s*\{\s*"name"\s*:\s*"[^"]+"\s*,\s*"(?:arguments|param|parameters|input)"\s*:\s*\{[^}]*\}\s*\}\s*\]`)

	// Single JSON object tool calls.
	leakedJSONObject = regexp.MustCompile(`\{\s*"name"\s*:\s*"[^"]+"\s*,\s*"(?:arguments|param|parameters|input)"\s*:\s*\{[^}]*\}\s*\}`)

	// XML-style tool calls.
	leakedXML = regexp.MustCompile(`<(?:tool_call|function_call)>\s*<name>[^<]+</name>\s*<arguments>[^<]*</arguments>\s*</(?:tool_call|function_call)>`)

	// qwen3-coder style calls: <function=NAME><parameter=NAME>VALUE</parameter></function>
	leakedQwenXML = regexp.MustCompile(`(?s)<function=[^>]+><parameter=[^>]+>.*?</parameter></function>(?:</tool_call>)?`)
)

// scrubLeakedToolCalls removes tool-call syntax that models sometimes emit
// as plain text instead of structured calls, so it never reaches the
// persisted transcript.
func scrubLeakedToolCalls(content string) string {
	content = leakedJSONArray.ReplaceAllString(content, "")
	content = leakedJSONObject.ReplaceAllString(content, "")
	content = leakedXML.ReplaceAllString(content, "")
	content = leakedQwenXML.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
