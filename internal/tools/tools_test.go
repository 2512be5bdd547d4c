package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/nishanttri/code-graph/internal/config"
	"github.com/nishanttri/code-graph/internal/resolve"
	"github.com/nishanttri/code-graph/internal/scan"
	"github.com/nishanttri/code-graph/internal/store"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

// testProject initialises and indexes a small project on disk.
func testProject(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	cfg, err := config.Init(root, false)
	require.NoError(t, err)

	writeFile(t, root, "src/a.ts", `export class A { greet(){ return "hi"; } }
export function use(){ const a = new A(); return a.greet(); }
`)
	writeFile(t, root, "src/b.ts", `import { use } from "./a";
export function main(){ return use(); }
`)

	st, err := store.OpenProject(root)
	require.NoError(t, err)
	rec := scan.New(st, root, cfg)
	_, err = rec.FullSync(context.Background())
	require.NoError(t, err)
	_, err = resolve.New(st).Resolve()
	require.NoError(t, err)
	require.NoError(t, st.Close())

	srv := NewServer(root)
	t.Cleanup(srv.Close)
	return srv, root
}

func call(t *testing.T, srv *Server, tool string, args map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	result, err := srv.CallTool(context.Background(), tool, raw)
	require.NoError(t, err)
	require.False(t, result.IsError, "tool %s returned error: %v", tool, result.Content)
	return decodeResult(t, result)
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var text string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			text = tc.Text
			break
		}
	}
	require.NotEmpty(t, text)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	return payload
}

func TestToolNamesComplete(t *testing.T) {
	srv, _ := testProject(t)
	require.ElementsMatch(t, []string{
		"get_file_context", "search_symbols", "find_references",
		"get_call_graph", "get_by_type", "get_graph_stats",
		"get_impact_analysis", "get_source_code", "get_usage_examples",
		"get_editing_context",
	}, srv.ToolNames())
}

func TestUnknownTool(t *testing.T) {
	srv, _ := testProject(t)
	_, err := srv.CallTool(context.Background(), "nope", nil)
	require.Error(t, err)
}

func TestSearchSymbols(t *testing.T) {
	srv, _ := testProject(t)
	payload := call(t, srv, "search_symbols", map[string]any{"query": "greet"})
	require.EqualValues(t, 1, payload["count"])
}

func TestGetFileContext(t *testing.T) {
	srv, _ := testProject(t)
	payload := call(t, srv, "get_file_context", map[string]any{"file_path": "src/a.ts"})
	symbols := payload["symbols"].([]any)
	require.Len(t, symbols, 4) // file, class, method, function
	incoming := payload["incoming"].([]any)
	require.NotEmpty(t, incoming) // main → use
}

func TestGetCallGraph(t *testing.T) {
	srv, _ := testProject(t)
	payload := call(t, srv, "get_call_graph", map[string]any{"function_name": "use"})
	callers := payload["callers"].([]any)
	callees := payload["callees"].([]any)
	require.Len(t, callers, 1)
	require.Len(t, callees, 1)
}

func TestGetByTypeEndpointEmpty(t *testing.T) {
	srv, _ := testProject(t)
	payload := call(t, srv, "get_by_type", map[string]any{"node_type": "endpoint"})
	require.EqualValues(t, 0, payload["count"])
}

func TestGetGraphStats(t *testing.T) {
	srv, _ := testProject(t)
	payload := call(t, srv, "get_graph_stats", nil)
	stats := payload["stats"].(map[string]any)
	require.Greater(t, stats["totalNodes"].(float64), float64(0))
	resolution := payload["resolution"].(map[string]any)
	require.EqualValues(t, 0, resolution["unresolved"])
}

func TestGetImpactAnalysis(t *testing.T) {
	srv, _ := testProject(t)
	payload := call(t, srv, "get_impact_analysis", map[string]any{"file_path": "src/a.ts"})
	require.Equal(t, "low", payload["risk"])
	require.NotEmpty(t, payload["dependentFiles"])
}

func TestGetSourceCodeSuggestions(t *testing.T) {
	srv, _ := testProject(t)
	// Unknown symbol is not an error: suggestions come back instead.
	payload := call(t, srv, "get_source_code", map[string]any{"symbol_name": "gree"})
	require.Equal(t, false, payload["found"])
	require.NotEmpty(t, payload["suggestions"])
}

func TestGetSourceCode(t *testing.T) {
	srv, _ := testProject(t)
	payload := call(t, srv, "get_source_code", map[string]any{
		"symbol_name": "use", "context_lines": 1,
	})
	require.Contains(t, payload["source"], "function use")
}

func TestGetUsageExamples(t *testing.T) {
	srv, _ := testProject(t)
	payload := call(t, srv, "get_usage_examples", map[string]any{"symbol_name": "use"})
	require.EqualValues(t, 1, payload["count"])
}

func TestGetEditingContext(t *testing.T) {
	srv, _ := testProject(t)
	payload := call(t, srv, "get_editing_context", map[string]any{
		"file_path": "src/a.ts", "max_tokens": 1000,
	})
	require.LessOrEqual(t, payload["tokenEstimate"].(float64), float64(1000))
}

func TestMissingArgumentIsError(t *testing.T) {
	srv, _ := testProject(t)
	result, err := srv.CallTool(context.Background(), "search_symbols", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	payload := decodeResult(t, result)
	require.Contains(t, payload["error"], "query")
}

func TestUninitialisedProject(t *testing.T) {
	srv, _ := testProject(t)
	result, err := srv.CallTool(context.Background(), "search_symbols",
		json.RawMessage(`{"query":"x","project_path":"`+filepath.ToSlash(t.TempDir())+`"}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	payload := decodeResult(t, result)
	require.Contains(t, payload["error"], "not initialised")
}
