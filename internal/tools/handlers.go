package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nishanttri/code-graph/internal/assemble"
	"github.com/nishanttri/code-graph/internal/graph"
	"github.com/nishanttri/code-graph/internal/store"
)

// nodeView is the JSON projection of a graph node used in responses.
type nodeView struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	FilePath  string         `json:"filePath"`
	LineStart int            `json:"lineStart"`
	LineEnd   int            `json:"lineEnd"`
	Language  string         `json:"language,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func viewNode(n *graph.Node) nodeView {
	return nodeView{
		ID:        n.ID,
		Type:      string(n.Type),
		Name:      n.Name,
		FilePath:  n.FilePath,
		LineStart: n.LineStart,
		LineEnd:   n.LineEnd,
		Language:  n.Language,
		Metadata:  n.Metadata,
	}
}

func viewNodes(nodes []*graph.Node) []nodeView {
	out := make([]nodeView, len(nodes))
	for i, n := range nodes {
		out[i] = viewNode(n)
	}
	return out
}

// edgeView is the JSON projection of a graph edge.
type edgeView struct {
	ID       string         `json:"id"`
	SourceID string         `json:"sourceId"`
	TargetID string         `json:"targetId"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func viewEdges(edges []*graph.Edge) []edgeView {
	out := make([]edgeView, len(edges))
	for i, e := range edges {
		out[i] = edgeView{ID: e.ID, SourceID: e.SourceID, TargetID: e.TargetID,
			Type: string(e.Type), Metadata: e.Metadata}
	}
	return out
}

func (s *Server) handleGetFileContext(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	filePath := getStringArg(args, "file_path")
	if filePath == "" {
		return errResult("file_path is required"), nil
	}
	st, _, err := s.resolveProject(getStringArg(args, "project_path"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	fc, err := st.GetFileContext(filePath)
	if err != nil {
		return errResult(fmt.Sprintf("file context: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"file":     filePath,
		"symbols":  viewNodes(fc.Nodes),
		"incoming": viewEdges(fc.Incoming),
		"outgoing": viewEdges(fc.Outgoing),
	}), nil
}

func (s *Server) handleSearchSymbols(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	query := getStringArg(args, "query")
	if query == "" {
		return errResult("query is required"), nil
	}
	st, _, err := s.resolveProject(getStringArg(args, "project_path"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	nodes, err := st.SearchByName(query, 100)
	if err != nil {
		return errResult(fmt.Sprintf("search: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"query":   query,
		"count":   len(nodes),
		"results": viewNodes(nodes),
	}), nil
}

func (s *Server) handleFindReferences(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	symbol := getStringArg(args, "symbol")
	if symbol == "" {
		return errResult("symbol is required"), nil
	}
	st, _, err := s.resolveProject(getStringArg(args, "project_path"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	defs, err := findDefinitions(st, symbol)
	if err != nil {
		return errResult(fmt.Sprintf("find: %v", err)), nil
	}

	type reference struct {
		Definition nodeView   `json:"definition"`
		Usages     []nodeView `json:"usages"`
	}
	var refs []reference
	for _, def := range defs {
		usages, err := st.EdgesByTarget(def.ID)
		if err != nil {
			return errResult(fmt.Sprintf("usages: %v", err)), nil
		}
		var usageNodes []nodeView
		for _, e := range usages {
			if e.Type == graph.EdgeContains {
				continue
			}
			src, err := st.GetNode(e.SourceID)
			if err != nil || src == nil {
				continue
			}
			usageNodes = append(usageNodes, viewNode(src))
		}
		refs = append(refs, reference{Definition: viewNode(def), Usages: usageNodes})
	}
	return jsonResult(map[string]any{"symbol": symbol, "references": refs}), nil
}

func (s *Server) handleGetCallGraph(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	name := getStringArg(args, "function_name")
	if name == "" {
		return errResult("function_name is required"), nil
	}
	st, _, err := s.resolveProject(getStringArg(args, "project_path"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	defs, err := findDefinitions(st, name)
	if err != nil {
		return errResult(fmt.Sprintf("find: %v", err)), nil
	}
	var fn *graph.Node
	for _, d := range defs {
		switch d.Type {
		case graph.NodeFunction, graph.NodeMethod, graph.NodeEndpoint:
			fn = d
		}
		if fn != nil {
			break
		}
	}
	if fn == nil {
		return errResult(fmt.Sprintf("no function or method named %q", name)), nil
	}

	callers, err := st.ResolvedCallersOf(fn.ID)
	if err != nil {
		return errResult(fmt.Sprintf("callers: %v", err)), nil
	}
	callees, err := st.ResolvedCalleesOf(fn.ID)
	if err != nil {
		return errResult(fmt.Sprintf("callees: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"function": viewNode(fn),
		"callers":  viewNodes(callers),
		"callees":  viewNodes(callees),
	}), nil
}

func (s *Server) handleGetByType(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	nodeType := getStringArg(args, "node_type")
	if nodeType == "" {
		return errResult("node_type is required"), nil
	}
	st, _, err := s.resolveProject(getStringArg(args, "project_path"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	nodes, err := st.GetByType(graph.NodeType(nodeType))
	if err != nil {
		return errResult(fmt.Sprintf("by type: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"type":  nodeType,
		"count": len(nodes),
		"nodes": viewNodes(nodes),
	}), nil
}

func (s *Server) handleGetGraphStats(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	st, _, err := s.resolveProject(getStringArg(args, "project_path"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	stats, err := st.GetStats()
	if err != nil {
		return errResult(fmt.Sprintf("stats: %v", err)), nil
	}
	resolution, err := st.GetResolutionStats()
	if err != nil {
		return errResult(fmt.Sprintf("resolution stats: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"stats":      stats,
		"resolution": resolution,
	}), nil
}

func (s *Server) handleGetImpactAnalysis(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	filePath := getStringArg(args, "file_path")
	if filePath == "" {
		return errResult("file_path is required"), nil
	}
	st, _, err := s.resolveProject(getStringArg(args, "project_path"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	fc, err := st.GetFileContext(filePath)
	if err != nil {
		return errResult(fmt.Sprintf("file context: %v", err)), nil
	}

	var exports []nodeView
	for _, n := range fc.Nodes {
		if b, _ := n.Metadata["isExported"].(bool); b {
			exports = append(exports, viewNode(n))
		}
	}

	dependentSet := map[string]bool{}
	for _, e := range fc.Incoming {
		src, err := st.GetNode(e.SourceID)
		if err != nil || src == nil || src.FilePath == filePath {
			continue
		}
		dependentSet[src.FilePath] = true
	}
	dependents := make([]string, 0, len(dependentSet))
	for p := range dependentSet {
		dependents = append(dependents, p)
	}

	risk := "low"
	switch {
	case len(dependents) > 10:
		risk = "high"
	case len(dependents) > 3:
		risk = "medium"
	}

	return jsonResult(map[string]any{
		"file":           filePath,
		"exports":        exports,
		"dependentFiles": dependents,
		"dependentCount": len(dependents),
		"risk":           risk,
	}), nil
}

func (s *Server) handleGetEditingContext(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	filePath := getStringArg(args, "file_path")
	if filePath == "" {
		return errResult("file_path is required"), nil
	}
	st, root, err := s.resolveProject(getStringArg(args, "project_path"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	a := &assemble.Assembler{Store: st, Root: root}
	ctx, err := a.Build(filePath, assemble.Options{
		Task:         getStringArg(args, "task"),
		MaxTokens:    getIntArg(args, "max_tokens", assemble.DefaultMaxTokens),
		IncludeTests: getBoolArg(args, "include_tests"),
	})
	if err != nil {
		return errResult(fmt.Sprintf("assemble: %v", err)), nil
	}
	return jsonResult(ctx), nil
}

// findDefinitions returns nodes whose full name or member name equals the
// symbol, preferring exact full-name matches.
func findDefinitions(st *store.Store, symbol string) ([]*graph.Node, error) {
	nodes, err := st.SearchByName(symbol, 0)
	if err != nil {
		return nil, err
	}
	var exact, member []*graph.Node
	for _, n := range nodes {
		switch {
		case n.Name == symbol:
			exact = append(exact, n)
		case graph.MemberName(n.Name) == symbol:
			member = append(member, n)
		}
	}
	if len(exact) > 0 {
		return exact, nil
	}
	return member, nil
}
