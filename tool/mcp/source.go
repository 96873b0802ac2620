// Package mcp bridges tools offered by Model Context Protocol servers into
// the local tool registry. Each configured server becomes a tool.Source;
// its tools are namespaced as mcp_<server>_<tool> so names from different
// servers cannot collide.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/threadloop/threadloop/core"
	"github.com/threadloop/threadloop/logging"
	"github.com/threadloop/threadloop/tool"
)

// ServerConfig describes one MCP server connection.
type ServerConfig struct {
	// Name identifies the server and prefixes its tool names.
	Name string `yaml:"name"`
	// Transport selects the connection type: "stdio" or "http".
	Transport string `yaml:"transport"`

	// Command, Args and Env apply to stdio servers.
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`

	// URL applies to http servers.
	URL string `yaml:"url,omitempty"`
}

// client is the subset of the MCP client used by the source. Narrowed to an
// interface so tests can substitute a fake.
type client interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Source connects to a single MCP server and exposes its tools.
type Source struct {
	name   string
	client client
	logger logging.Logger
}

var _ tool.Source = (*Source)(nil)

// Connect establishes the connection described by cfg and performs the MCP
// initialize handshake.
func Connect(ctx context.Context, cfg ServerConfig, logger logging.Logger) (*Source, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("mcp server name must not be empty")
	}

	var c *mcpclient.Client
	switch strings.ToLower(cfg.Transport) {
	case "", "stdio":
		if cfg.Command == "" {
			return nil, fmt.Errorf("mcp server %q: stdio transport requires a command", cfg.Name)
		}
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		stdio, err := mcpclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("mcp server %q: start stdio client: %w", cfg.Name, err)
		}
		c = stdio
	case "http", "streamable-http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp server %q: http transport requires a url", cfg.Name)
		}
		t, err := transport.NewStreamableHTTP(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("mcp server %q: create http transport: %w", cfg.Name, err)
		}
		c = mcpclient.NewClient(t)
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("mcp server %q: start http client: %w", cfg.Name, err)
		}
	default:
		return nil, fmt.Errorf("mcp server %q: unsupported transport %q", cfg.Name, cfg.Transport)
	}

	return newSource(ctx, cfg.Name, c, logger)
}

func newSource(ctx context.Context, name string, c client, logger logging.Logger) (*Source, error) {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "threadloop", Version: "0.1.0"}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("mcp server %q: initialize: %w", name, err)
	}

	return &Source{name: name, client: c, logger: logger}, nil
}

// SourceName implements tool.Source.
func (s *Source) SourceName() string { return "mcp:" + s.name }

// Discover implements tool.Source by listing the server's tools and
// wrapping each one.
func (s *Source) Discover(ctx context.Context) ([]tool.Tool, error) {
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp server %q: list tools: %w", s.name, err)
	}

	tools := make([]tool.Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools = append(tools, &serverTool{
			source:     s,
			remoteName: t.Name,
			localName:  toolName(s.name, t.Name),
			desc:       t.Description,
			schema:     convertSchema(t.InputSchema),
		})
		s.logger.Debug("mcp.tool.discovered", "server", s.name, "tool", t.Name)
	}

	return tools, nil
}

// Shutdown implements tool.Source.
func (s *Source) Shutdown() error {
	return s.client.Close()
}

var toolNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// toolName builds the namespaced local name for a remote tool.
func toolName(server, remote string) string {
	return fmt.Sprintf("mcp_%s_%s",
		toolNameSanitizer.ReplaceAllString(server, "_"),
		toolNameSanitizer.ReplaceAllString(remote, "_"))
}

// convertSchema turns the SDK's schema struct back into the plain map the
// registry compiles.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || len(out) == 0 {
		return map[string]any{"type": "object"}
	}
	return out
}

// serverTool proxies one remote tool through the source's client.
type serverTool struct {
	source     *Source
	remoteName string
	localName  string
	desc       string
	schema     map[string]any
}

// Name implements tool.Tool.
func (t *serverTool) Name() string { return t.localName }

// Description implements tool.Tool.
func (t *serverTool) Description() string { return t.desc }

// InputSchema implements tool.Tool.
func (t *serverTool) InputSchema() map[string]any { return t.schema }

// Call implements tool.Tool by forwarding the call to the server. A result
// flagged IsError by the server is surfaced as an error so the executor
// records it the same way as a local failure.
func (t *serverTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = t.remoteName
	req.Params.Arguments = args

	result, err := t.source.client.CallTool(toolCtx.Context(), req)
	if err != nil {
		return nil, fmt.Errorf("mcp server %q: call %q: %w", t.source.name, t.remoteName, err)
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return nil, fmt.Errorf("%s", text)
	}

	return text, nil
}

func flattenContent(content []mcp.Content) string {
	var sb strings.Builder
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
