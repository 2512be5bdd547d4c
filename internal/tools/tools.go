// Package tools exposes the symbol graph to MCP clients over stdio. Each
// tool handler resolves its project, runs a read-only projection (or the
// context assembler), and returns a JSON text payload.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nishanttri/code-graph/internal/config"
	"github.com/nishanttri/code-graph/internal/mcplog"
	"github.com/nishanttri/code-graph/internal/store"
)

// Version is the current release version, reported in the MCP handshake.
const Version = "0.4.0"

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp      *mcp.Server
	log      *mcplog.Logger
	handlers map[string]mcp.ToolHandler

	// defaultProject is used when a request omits project_path.
	defaultProject string

	mu     sync.Mutex
	stores map[string]*store.Store // project path → open store
}

// NewServer creates an MCP server with all tools registered. defaultProject
// is the project root used when requests omit project_path.
func NewServer(defaultProject string) *Server {
	s := &Server{
		log:            mcplog.FromEnv(),
		handlers:       make(map[string]mcp.ToolHandler),
		defaultProject: defaultProject,
		stores:         make(map[string]*store.Store),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "code-graph", Version: Version},
		nil,
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves MCP over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Close closes all project stores.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stores {
		_ = st.Close()
	}
	s.stores = map[string]*store.Store{}
}

// resolveProject returns the store and root for a request's project_path,
// falling back to the server default. The project must be initialised.
func (s *Server) resolveProject(projectPath string) (*store.Store, string, error) {
	if projectPath == "" {
		projectPath = s.defaultProject
	}
	if projectPath == "" {
		return nil, "", fmt.Errorf("no project_path given and no default project configured")
	}
	if !config.Initialised(projectPath) {
		return nil, "", fmt.Errorf("project not initialised: %s (run: code-graph init)", projectPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stores[projectPath]; ok {
		return st, projectPath, nil
	}
	st, err := store.OpenProject(projectPath)
	if err != nil {
		return nil, "", fmt.Errorf("open store: %w", err)
	}
	s.stores[projectPath] = st
	return st, projectPath, nil
}

// CallTool invokes a tool handler directly by name, bypassing MCP transport
// (CLI mode and tests).
func (s *Server) CallTool(ctx context.Context, name string, argsJSON json.RawMessage) (*mcp.CallToolResult, error) {
	handler, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if len(argsJSON) == 0 {
		argsJSON = json.RawMessage(`{}`)
	}
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name, Arguments: argsJSON},
	}
	return handler(ctx, req)
}

// ToolNames returns all registered tool names in sorted order.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// addTool registers a tool with request/response logging wrapped around the
// handler.
func (s *Server) addTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	wrapped := func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		if s.log.Enabled() {
			var args any
			_ = json.Unmarshal(req.Params.Arguments, &args)
			s.log.Request(tool.Name, args)
		}
		result, err := handler(ctx, req)
		if s.log.Enabled() {
			text, errMsg := "", ""
			if err != nil {
				errMsg = err.Error()
			} else if result != nil {
				for _, c := range result.Content {
					if tc, ok := c.(*mcp.TextContent); ok {
						text = tc.Text
						break
					}
				}
				if result.IsError {
					errMsg = text
				}
			}
			s.log.Response(tool.Name, text, time.Since(start), errMsg)
		}
		return result, err
	}
	s.mcp.AddTool(tool, wrapped)
	s.handlers[tool.Name] = wrapped
}

// jsonResult wraps a payload as a single JSON text content.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("marshal result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// errResult returns an error payload with the IsError flag set.
func errResult(msg string) *mcp.CallToolResult {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}

// parseArgs decodes raw tool arguments into a generic map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}
	return m, nil
}

func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func getIntArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func getBoolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}
