package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nishanttri/code-graph/internal/graph"
)

func (s *Server) handleGetSourceCode(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	st, root, err := s.resolveProject(getStringArg(args, "project_path"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	contextLines := getIntArg(args, "context_lines", 0)

	var node *graph.Node
	if id := getStringArg(args, "node_id"); id != "" {
		node, err = st.GetNode(id)
		if err != nil {
			return errResult(fmt.Sprintf("lookup: %v", err)), nil
		}
		if node == nil {
			return errResult(fmt.Sprintf("no node with id %q", id)), nil
		}
	} else {
		symbol := getStringArg(args, "symbol_name")
		if symbol == "" {
			return errResult("symbol_name or node_id is required"), nil
		}
		defs, err := findDefinitions(st, symbol)
		if err != nil {
			return errResult(fmt.Sprintf("lookup: %v", err)), nil
		}
		if len(defs) == 0 {
			// Symbol not found is not an error: suggest close names instead.
			suggestions, _ := st.SearchByName(symbol, 10)
			return jsonResult(map[string]any{
				"symbol":      symbol,
				"found":       false,
				"suggestions": viewNodes(suggestions),
			}), nil
		}
		node = defs[0]
	}

	source, before, after, err := readSlice(root, node, contextLines)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"node":   viewNode(node),
		"source": source,
		"before": before,
		"after":  after,
	}), nil
}

func (s *Server) handleGetUsageExamples(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	symbol := getStringArg(args, "symbol_name")
	if symbol == "" {
		return errResult("symbol_name is required"), nil
	}
	st, root, err := s.resolveProject(getStringArg(args, "project_path"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	maxExamples := getIntArg(args, "max_examples", 5)
	contextLines := getIntArg(args, "context_lines", 2)

	defs, err := findDefinitions(st, symbol)
	if err != nil {
		return errResult(fmt.Sprintf("lookup: %v", err)), nil
	}
	if len(defs) == 0 {
		suggestions, _ := st.SearchByName(symbol, 10)
		return jsonResult(map[string]any{
			"symbol":      symbol,
			"found":       false,
			"suggestions": viewNodes(suggestions),
		}), nil
	}

	type example struct {
		FilePath string `json:"filePath"`
		Line     int    `json:"line"`
		Caller   string `json:"caller,omitempty"`
		Snippet  string `json:"snippet"`
	}
	var examples []example

	for _, def := range defs {
		if len(examples) >= maxExamples {
			break
		}
		edges, err := st.EdgesByTarget(def.ID)
		if err != nil {
			continue
		}
		for _, e := range edges {
			if len(examples) >= maxExamples {
				break
			}
			if e.Type == graph.EdgeContains {
				continue
			}
			src, err := st.GetNode(e.SourceID)
			if err != nil || src == nil {
				continue
			}
			line := usageLine(e, src)
			snippet := snippetAround(root, src.FilePath, line, contextLines)
			if snippet == "" {
				continue
			}
			examples = append(examples, example{
				FilePath: src.FilePath,
				Line:     line,
				Caller:   src.Name,
				Snippet:  snippet,
			})
		}
	}

	return jsonResult(map[string]any{
		"symbol":   symbol,
		"count":    len(examples),
		"examples": examples,
	}), nil
}

// usageLine prefers the recorded call-site line, falling back to the source
// node's own start.
func usageLine(e *graph.Edge, src *graph.Node) int {
	if e.Metadata != nil {
		if f, ok := e.Metadata["line"].(float64); ok {
			return int(f)
		}
	}
	return src.LineStart
}

// readSlice reads a node's line range plus contextLines before and after.
func readSlice(root string, n *graph.Node, contextLines int) (source, before, after string, err error) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(n.FilePath)))
	if err != nil {
		return "", "", "", fmt.Errorf("read %s: %w", n.FilePath, err)
	}
	lines := strings.Split(string(content), "\n")

	start, end := n.LineStart, n.LineEnd
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) || end < start {
		return "", "", "", fmt.Errorf("line range %d-%d out of bounds for %s", n.LineStart, n.LineEnd, n.FilePath)
	}

	source = strings.Join(lines[start-1:end], "\n")
	if contextLines > 0 {
		bStart := start - 1 - contextLines
		if bStart < 0 {
			bStart = 0
		}
		before = strings.Join(lines[bStart:start-1], "\n")
		aEnd := end + contextLines
		if aEnd > len(lines) {
			aEnd = len(lines)
		}
		after = strings.Join(lines[end:aEnd], "\n")
	}
	return source, before, after, nil
}

// snippetAround returns the context window around a 1-based line.
func snippetAround(root, filePath string, line, contextLines int) string {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(filePath)))
	if err != nil {
		return ""
	}
	lines := strings.Split(string(content), "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	start := line - 1 - contextLines
	if start < 0 {
		start = 0
	}
	end := line + contextLines
	if end > len(lines) {
		end = len(lines)
	}
	var b strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%4d | %s\n", i+1, lines[i])
	}
	return strings.TrimRight(b.String(), "\n")
}
