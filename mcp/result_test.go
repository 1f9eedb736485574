package mcp

import (
	"strings"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func TestParseToolResponse(t *testing.T) {
	args := map[string]any{"path": "main.go"}

	tests := []struct {
		name        string
		body        string
		wantSuccess bool
		wantErrPart string
	}{
		{
			name:        "valid success response",
			body:        `{"success": true, "name": "read_file", "arguments": {"path": "main.go"}, "output": "package main"}`,
			wantSuccess: true,
		},
		{
			name:        "valid failure response",
			body:        `{"success": false, "error": "no such file"}`,
			wantSuccess: false,
			wantErrPart: "no such file",
		},
		{
			name:        "not a JSON object",
			body:        `[1, 2, 3]`,
			wantSuccess: false,
			wantErrPart: "not a JSON object",
		},
		{
			name:        "missing success field",
			body:        `{"name": "read_file"}`,
			wantSuccess: false,
			wantErrPart: `missing required field "success"`,
		},
		{
			name:        "success is not a boolean",
			body:        `{"success": "yes"}`,
			wantSuccess: false,
			wantErrPart: `"success" is not a boolean`,
		},
		{
			name:        "name is not a string",
			body:        `{"success": true, "name": 42}`,
			wantSuccess: false,
			wantErrPart: `"name" is not a string`,
		},
		{
			name:        "arguments is not an object",
			body:        `{"success": true, "arguments": "nope"}`,
			wantSuccess: false,
			wantErrPart: `"arguments" is not an object`,
		},
		{
			// Multi-field garbage cites the first checked field only.
			name:        "success checked before name",
			body:        `{"success": "yes", "name": 42, "arguments": []}`,
			wantSuccess: false,
			wantErrPart: `"success" is not a boolean`,
		},
		{
			name:        "name checked before arguments",
			body:        `{"success": true, "name": 42, "arguments": []}`,
			wantSuccess: false,
			wantErrPart: `"name" is not a string`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parseToolResponse([]byte(tt.body), "files::read_file", args)
			if res.Success != tt.wantSuccess {
				t.Errorf("success = %v, want %v", res.Success, tt.wantSuccess)
			}
			if tt.wantErrPart != "" && !strings.Contains(res.Error, tt.wantErrPart) {
				t.Errorf("error = %q, want substring %q", res.Error, tt.wantErrPart)
			}
			if res.Name == "" {
				t.Error("result must always carry a tool name")
			}
		})
	}
}

func TestParseToolResponseEchoesRequestOnFailure(t *testing.T) {
	args := map[string]any{"k": "v"}
	res := parseToolResponse([]byte(`{}`), "files::read_file", args)

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Name != "files::read_file" {
		t.Errorf("name = %q, want the requested name", res.Name)
	}
	if res.Arguments["k"] != "v" {
		t.Error("failure result should echo the requested arguments")
	}
}

func TestParseToolResponseNonStringDiagnostics(t *testing.T) {
	res := parseToolResponse([]byte(`{"success": true, "output": {"nested": 1}}`), "t", nil)
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if !strings.Contains(res.Output, "nested") {
		t.Errorf("non-string output should be kept as raw JSON, got %q", res.Output)
	}
}

func TestResultFromMCP(t *testing.T) {
	args := map[string]any{"expr": "2+2"}

	t.Run("nil result", func(t *testing.T) {
		res := resultFromMCP("math::calculate", args, nil)
		if res.Success {
			t.Error("nil result must be a failure")
		}
	})

	t.Run("text content success", func(t *testing.T) {
		res := resultFromMCP("math::calculate", args, &mcptypes.CallToolResult{
			Content: []mcptypes.Content{
				mcptypes.TextContent{Type: "text", Text: "4"},
			},
		})
		if !res.Success {
			t.Fatalf("unexpected failure: %s", res.Error)
		}
		if res.Output != "4" || res.Stdout != "4" {
			t.Errorf("output = %q / stdout = %q, want 4", res.Output, res.Stdout)
		}
	})

	t.Run("in-band error", func(t *testing.T) {
		res := resultFromMCP("math::calculate", args, &mcptypes.CallToolResult{
			IsError: true,
			Content: []mcptypes.Content{
				mcptypes.TextContent{Type: "text", Text: "division by zero"},
			},
		})
		if res.Success {
			t.Error("IsError result must be a failure")
		}
		if res.Error != "division by zero" || res.Stderr != "division by zero" {
			t.Errorf("error = %q / stderr = %q", res.Error, res.Stderr)
		}
	})

	t.Run("multiple content blocks joined", func(t *testing.T) {
		res := resultFromMCP("t", nil, &mcptypes.CallToolResult{
			Content: []mcptypes.Content{
				mcptypes.TextContent{Type: "text", Text: "line1"},
				mcptypes.TextContent{Type: "text", Text: "line2"},
			},
		})
		if res.Output != "line1\nline2" {
			t.Errorf("output = %q, want joined lines", res.Output)
		}
	})
}

func TestQualifiedNames(t *testing.T) {
	if got := QualifyName("files", "read_file"); got != "files::read_file" {
		t.Errorf("QualifyName = %q", got)
	}

	provider, tool, ok := SplitQualifiedName("files::read_file")
	if !ok || provider != "files" || tool != "read_file" {
		t.Errorf("SplitQualifiedName = (%q, %q, %v)", provider, tool, ok)
	}

	provider, tool, ok = SplitQualifiedName("bare_tool")
	if ok {
		t.Error("bare name should not report qualified")
	}
	if tool != "bare_tool" {
		t.Errorf("bare tool name = %q, want bare_tool", tool)
	}
	_ = provider
}
