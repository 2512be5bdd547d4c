package tools

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// projectPathProp is shared by every tool schema.
const projectPathProp = `"project_path": {
	"type": "string",
	"description": "Project root to query. Defaults to the server's project."
}`

func (s *Server) registerTools() {
	s.registerGraphTools()
	s.registerSourceTools()
}

func (s *Server) registerGraphTools() {
	s.addTool(&mcp.Tool{
		Name:        "get_file_context",
		Description: "Get the symbol graph view of one file: its symbols plus incoming and outgoing cross-file dependency edges. Use before editing a file to see what it touches and what depends on it.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {"type": "string", "description": "Project-relative file path"},
				` + projectPathProp + `
			},
			"required": ["file_path"]
		}`),
	}, s.handleGetFileContext)

	s.addTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Search symbols by name substring (case-preserving). Returns up to 100 matching nodes ordered by name.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Name substring to search for"},
				` + projectPathProp + `
			},
			"required": ["query"]
		}`),
	}, s.handleSearchSymbols)

	s.addTool(&mcp.Tool{
		Name:        "find_references",
		Description: "Find definitions of a symbol and every resolved usage pointing at them. Use search_symbols first when unsure of the exact name.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol": {"type": "string", "description": "Symbol name (exact or Owner.member)"},
				` + projectPathProp + `
			},
			"required": ["symbol"]
		}`),
	}, s.handleFindReferences)

	s.addTool(&mcp.Tool{
		Name:        "get_call_graph",
		Description: "Get resolved callers and callees of the first function/method matching the given name.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"function_name": {"type": "string", "description": "Function or method name"},
				` + projectPathProp + `
			},
			"required": ["function_name"]
		}`),
	}, s.handleGetCallGraph)

	s.addTool(&mcp.Tool{
		Name:        "get_by_type",
		Description: "List all nodes of a type: file, class, interface, function, method, variable, import, export, module, controller, service, repository, component, bean, endpoint.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_type": {"type": "string", "description": "Node type to list"},
				` + projectPathProp + `
			},
			"required": ["node_type"]
		}`),
	}, s.handleGetByType)

	s.addTool(&mcp.Tool{
		Name:        "get_graph_stats",
		Description: "Totals and per-type/per-language breakdowns of the symbol graph, plus edge resolution progress.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + projectPathProp + `}
		}`),
	}, s.handleGetGraphStats)

	s.addTool(&mcp.Tool{
		Name:        "get_impact_analysis",
		Description: "Estimate the blast radius of changing a file: its exported symbols, the files depending on it, and a high/medium/low risk rating.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {"type": "string", "description": "Project-relative file path"},
				` + projectPathProp + `
			},
			"required": ["file_path"]
		}`),
	}, s.handleGetImpactAnalysis)
}

func (s *Server) registerSourceTools() {
	s.addTool(&mcp.Tool{
		Name:        "get_source_code",
		Description: "Read the source of a symbol by name or node id, with surrounding context lines. When the symbol is unknown, returns name-search suggestions instead of an error.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol_name": {"type": "string", "description": "Symbol name to look up"},
				"node_id": {"type": "string", "description": "Exact node id (alternative to symbol_name)"},
				"context_lines": {"type": "integer", "description": "Context lines before and after (default 0)"},
				` + projectPathProp + `
			}
		}`),
	}, s.handleGetSourceCode)

	s.addTool(&mcp.Tool{
		Name:        "get_usage_examples",
		Description: "Show snippets of call sites and other usages of a symbol across the project.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol_name": {"type": "string", "description": "Symbol name to look up"},
				"max_examples": {"type": "integer", "description": "Maximum snippets (default 5)"},
				"context_lines": {"type": "integer", "description": "Context lines around each usage (default 2)"},
				` + projectPathProp + `
			},
			"required": ["symbol_name"]
		}`),
	}, s.handleGetUsageExamples)

	s.addTool(&mcp.Tool{
		Name:        "get_editing_context",
		Description: "Assemble a token-budgeted editing context for a file: the file itself, sources of its imports, dependent usage snippets, related types, and task-matched similar functions.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {"type": "string", "description": "Project-relative file path"},
				"task": {"type": "string", "description": "Free-text description of the editing task"},
				"max_tokens": {"type": "integer", "description": "Token budget (default 8000)"},
				"include_tests": {"type": "boolean", "description": "Include test files in dependents (default false)"},
				` + projectPathProp + `
			},
			"required": ["file_path"]
		}`),
	}, s.handleGetEditingContext)
}
