package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// mcpProtocolVersion is the protocol version reported to the CLI during the
// bridged initialize handshake.
const mcpProtocolVersion = "2024-11-05"

// McpStdioServerConfig represents an MCP stdio server configuration.
type McpStdioServerConfig struct {
	Type    string            `json:"type,omitempty"` // "stdio" or empty
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

func (c *McpStdioServerConfig) mcpServerConfigType() string { return "stdio" }

// McpSSEServerConfig represents an MCP SSE server configuration.
type McpSSEServerConfig struct {
	Type    string            `json:"type"` // "sse"
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (c *McpSSEServerConfig) mcpServerConfigType() string { return "sse" }

// McpHTTPServerConfig represents an MCP HTTP server configuration.
type McpHTTPServerConfig struct {
	Type    string            `json:"type"` // "http"
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (c *McpHTTPServerConfig) mcpServerConfigType() string { return "http" }

// McpSdkServerConfig represents an in-process SDK MCP server configuration.
type McpSdkServerConfig struct {
	Type     string      `json:"type"` // "sdk"
	Name     string      `json:"name"`
	Instance *ToolServer `json:"-"` // Not serialized to JSON
}

func (c *McpSdkServerConfig) mcpServerConfigType() string { return "sdk" }

// McpServerConfig is a sealed interface for MCP server configurations.
type McpServerConfig interface {
	mcpServerConfigType() string
}

// ToolHandler is the function signature for in-process tool handlers.
type ToolHandler func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)

// Tool is a tool definition for an in-process MCP server.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Handler     ToolHandler
}

// NewTool creates a tool definition. A nil schema means the tool takes an
// empty object.
func NewTool(name, description string, inputSchema *jsonschema.Schema, handler ToolHandler) *Tool {
	return &Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
		Handler:     handler,
	}
}

// TextResult builds a successful tool result with a single text block.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// ErrorResult builds a failed tool result with a single text block.
func ErrorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// ToolServer hosts tools in-process and answers the CLI's bridged JSONRPC
// messages. The tools run on a real MCP server connected to an in-memory
// client session; HandleMessage translates between the CLI's raw maps and
// that session.
type ToolServer struct {
	Name    string
	Version string
	Tools   []*Tool

	connectOnce sync.Once
	session     *mcp.ClientSession
	connectErr  error
}

// NewToolServer creates an in-process MCP server configuration hosting the
// given tools.
func NewToolServer(name, version string, tools ...*Tool) *McpSdkServerConfig {
	return &McpSdkServerConfig{
		Type: "sdk",
		Name: name,
		Instance: &ToolServer{
			Name:    name,
			Version: version,
			Tools:   tools,
		},
	}
}

// connect wires the server to an in-memory client session. Runs once; later
// calls return the stored outcome.
func (s *ToolServer) connect(ctx context.Context) error {
	s.connectOnce.Do(func() {
		server := mcp.NewServer(&mcp.Implementation{
			Name:    s.Name,
			Version: s.Version,
		}, nil)

		for _, tool := range s.Tools {
			handler := tool.Handler
			mcp.AddTool(server, &mcp.Tool{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			}, func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
				result, err := handler(ctx, args)
				return result, nil, err
			})
		}

		clientTransport, serverTransport := mcp.NewInMemoryTransports()
		if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
			s.connectErr = err
			return
		}

		client := mcp.NewClient(&mcp.Implementation{
			Name:    s.Name + "-bridge",
			Version: s.Version,
		}, nil)
		session, err := client.Connect(ctx, clientTransport, nil)
		if err != nil {
			s.connectErr = err
			return
		}
		s.session = session
	})
	return s.connectErr
}

// HandleMessage answers one bridged JSONRPC message from the CLI. It never
// returns a Go error for tool-level failures; those become JSONRPC error
// objects so the CLI can surface them to the model.
func (s *ToolServer) HandleMessage(ctx context.Context, message map[string]any) map[string]any {
	method, _ := message["method"].(string)
	id := message["id"]
	params, _ := message["params"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	switch method {
	case "initialize":
		return map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"result": map[string]any{
				"protocolVersion": mcpProtocolVersion,
				"capabilities": map[string]any{
					"tools": map[string]any{},
				},
				"serverInfo": map[string]any{
					"name":    s.Name,
					"version": s.Version,
				},
			},
		}

	case "notifications/initialized":
		return map[string]any{"jsonrpc": "2.0", "result": map[string]any{}}

	case "tools/list":
		if err := s.connect(ctx); err != nil {
			return jsonrpcError(id, -32603, err.Error())
		}
		listed, err := s.session.ListTools(ctx, &mcp.ListToolsParams{})
		if err != nil {
			return jsonrpcError(id, -32603, err.Error())
		}
		tools := make([]map[string]any, 0, len(listed.Tools))
		for _, t := range listed.Tools {
			m, err := toRawMap(t)
			if err != nil {
				return jsonrpcError(id, -32603, err.Error())
			}
			tools = append(tools, m)
		}
		return map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"result":  map[string]any{"tools": tools},
		}

	case "tools/call":
		if err := s.connect(ctx); err != nil {
			return jsonrpcError(id, -32603, err.Error())
		}
		name, _ := params["name"].(string)
		args, _ := params["arguments"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		result, err := s.session.CallTool(ctx, &mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		})
		if err != nil {
			return jsonrpcError(id, -32603, err.Error())
		}
		resultMap, err := toRawMap(result)
		if err != nil {
			return jsonrpcError(id, -32603, err.Error())
		}
		return map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"result":  resultMap,
		}

	default:
		return jsonrpcError(id, -32601, fmt.Sprintf("Method '%s' not found", method))
	}
}

func jsonrpcError(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// toRawMap converts an SDK value to the raw map shape the wire expects.
func toRawMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
