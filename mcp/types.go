package mcp

import (
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// TransportKind selects how a tool provider is reached.
type TransportKind string

const (
	TransportSpawn      TransportKind = "spawn"
	TransportHTTPDaemon TransportKind = "http-daemon"
)

// ProviderStatus is the lifecycle state of a registered provider.
type ProviderStatus string

const (
	StatusDisconnected ProviderStatus = "disconnected"
	StatusConnecting   ProviderStatus = "connecting"
	StatusConnected    ProviderStatus = "connected"
	StatusError        ProviderStatus = "error"
)

// Auth types for provider endpoints.
const (
	AuthNone   = "none"
	AuthAPIKey = "api-key"
	AuthBearer = "bearer"
	AuthOAuth  = "oauth"
)

// InternalProviderID names the always-available pseudo-provider. Connecting
// it performs no I/O.
const InternalProviderID = "internal"

// QualifiedNameSeparator joins provider name and tool name in routing keys.
const QualifiedNameSeparator = "::"

// SubPaths holds the HTTP-daemon endpoint layout. Zero values fall back to
// the defaults below.
type SubPaths struct {
	Health        string
	CallTool      string
	ListTools     string
	ListResources string
}

const (
	defaultHealthPath        = "/health"
	defaultCallToolPath      = "/call-tool"
	defaultListToolsPath     = "/list-tools"
	defaultListResourcesPath = "/list-resources"
)

func (p SubPaths) health() string {
	if p.Health != "" {
		return p.Health
	}
	return defaultHealthPath
}

func (p SubPaths) callTool() string {
	if p.CallTool != "" {
		return p.CallTool
	}
	return defaultCallToolPath
}

func (p SubPaths) listTools() string {
	if p.ListTools != "" {
		return p.ListTools
	}
	return defaultListToolsPath
}

func (p SubPaths) listResources() string {
	if p.ListResources != "" {
		return p.ListResources
	}
	return defaultListResourcesPath
}

// ToolProvider is the manager's read-mostly working copy of a provider
// registration. The persisted form is owned by the storage layer.
type ToolProvider struct {
	ID   string
	Name string

	Transport TransportKind

	// Spawn transport parameters.
	Command string
	Args    []string
	Env     map[string]string

	// HTTP-daemon transport parameters.
	BaseURL  string
	SubPaths SubPaths

	AuthType    string
	APIKey      string
	BearerToken string

	ConnectTimeout time.Duration
	CallTimeout    time.Duration
	MaxRetries     int
	RetryDelay     time.Duration

	Enabled     bool
	AutoConnect bool

	// LastConnected is stamped by the manager on every successful connect.
	LastConnected time.Time
}

// Capabilities is an immutable snapshot of a provider's declared tools,
// resources and prompts, loaded at connect time and replaced wholesale on
// reconnect. Never mutate a snapshot in place.
type Capabilities struct {
	Tools     []mcptypes.Tool
	Resources []mcptypes.Resource
	Prompts   []mcptypes.Prompt
}

// Session is the live channel to one connected provider. It is exclusively
// owned by the manager entry for that provider and never shared.
type Session struct {
	ProviderID string
	Transport  TransportKind

	// Spawn transport.
	Client  *client.Client
	Process *exec.Cmd

	// HTTP-daemon transport.
	BaseURL    string
	Paths      SubPaths
	HTTPClient *http.Client
	Headers    map[string]string

	LastActivity time.Time
}

// ToolDescriptor is a flattened, provider-qualified tool ready for
// invocation. The back-references route a call without a second lookup.
type ToolDescriptor struct {
	Name         string // providerName::toolName
	Description  string
	InputSchema  mcptypes.ToolInputSchema
	ProviderID   string
	ProviderName string
	Transport    TransportKind
}

// ResourceDescriptor is a flattened, provider-qualified readable resource.
type ResourceDescriptor struct {
	Name         string // providerName::resourceName
	URI          string
	Description  string
	MIMEType     string
	ProviderID   string
	ProviderName string
	Transport    TransportKind
}

// QualifyName builds a provider-qualified tool or resource name.
func QualifyName(providerName, name string) string {
	return providerName + QualifiedNameSeparator + name
}

// SplitQualifiedName splits "provider::tool" into its parts. ok is false for
// legacy unqualified names.
func SplitQualifiedName(qualified string) (providerName, name string, ok bool) {
	idx := strings.Index(qualified, QualifiedNameSeparator)
	if idx == -1 {
		return "", qualified, false
	}
	return qualified[:idx], qualified[idx+len(QualifiedNameSeparator):], true
}
