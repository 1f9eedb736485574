package provider

import (
	"encoding/json"
	"regexp"

	"chatd/model"
)

var (
	// JSON tool calls leaked into content, bare object or array element,
	// with the argument key variations seen across models.
	leakedJSONCall = regexp.MustCompile(`\{\s*"name"\s*:\s*"([^"]+)"\s*,\s*"(?:arguments|param|parameters|input)"\s*:\s*(\{[^}]*\})\s*\}`)

	// XML-style tool calls: <tool_call><name>N</name><arguments>{...}</arguments></tool_call>
	leakedXMLCall = regexp.MustCompile(`<(?:tool_call|function_call)>\s*<name>([^<]+)</name>\s*<arguments>([^<]*)</arguments>\s*</(?:tool_call|function_call)>`)

	// qwen3-coder style: <function=NAME><parameter=KEY>VALUE</parameter>...</function>
	leakedQwenCall  = regexp.MustCompile(`(?s)<function=([^>]+)>(.*?)</function>`)
	leakedQwenParam = regexp.MustCompile(`(?s)<parameter=([^>]+)>(.*?)</parameter>`)
)

// ParseLeakedJSONToolCalls extracts tool calls that a model emitted as JSON
// text instead of structured API tool calls. Returns nil when the content
// holds none.
func ParseLeakedJSONToolCalls(content string) []model.ToolCall {
	matches := leakedJSONCall.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	var calls []model.ToolCall
	for _, m := range matches {
		args := map[string]any{}
		if err := json.Unmarshal([]byte(m[2]), &args); err != nil {
			continue
		}
		calls = append(calls, model.ToolCall{Name: m[1], Arguments: args})
	}
	return calls
}

// ParseLeakedXMLToolCalls extracts tool calls emitted as XML-ish text, both
// the <tool_call> wrapper form and the qwen3-coder <function=...> form.
func ParseLeakedXMLToolCalls(content string) []model.ToolCall {
	var calls []model.ToolCall

	for _, m := range leakedXMLCall.FindAllStringSubmatch(content, -1) {
		args := map[string]any{}
		if m[2] != "" {
			if err := json.Unmarshal([]byte(m[2]), &args); err != nil {
				continue
			}
		}
		calls = append(calls, model.ToolCall{Name: m[1], Arguments: args})
	}

	for _, m := range leakedQwenCall.FindAllStringSubmatch(content, -1) {
		args := map[string]any{}
		for _, p := range leakedQwenParam.FindAllStringSubmatch(m[2], -1) {
			args[p[1]] = p[2]
		}
		calls = append(calls, model.ToolCall{Name: m[1], Arguments: args})
	}

	return calls
}
