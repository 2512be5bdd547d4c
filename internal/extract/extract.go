// Package extract turns source files into graph nodes and edges. One
// extractor per language family; all are pure functions from
// (filePath, content) to an extraction result. Cross-file references are
// emitted as ref: placeholder edges for the resolver to bind.
package extract

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/nishanttri/code-graph/internal/graph"
	"github.com/nishanttri/code-graph/internal/lang"
)

// Result is the output of one extractor invocation.
type Result struct {
	Nodes []*graph.Node
	Edges []*graph.Edge
}

// Func is a pure extractor for one language family.
type Func func(filePath string, content []byte) (*Result, error)

// ForPath returns the extractor and language for a file path, based on its
// extension.
func ForPath(path string) (Func, lang.Language, bool) {
	l, ok := lang.ForExtension(filepath.Ext(path))
	if !ok {
		return nil, "", false
	}
	switch l {
	case lang.TypeScript, lang.JavaScript:
		return ExtractTypeScript, l, true
	case lang.Python:
		return ExtractPython, l, true
	case lang.Java:
		return ExtractJava, l, true
	}
	return nil, "", false
}

// Supported reports whether some extractor handles the path.
func Supported(path string) bool {
	_, _, ok := ForPath(path)
	return ok
}

// newResult seeds a result with the mandatory file node: name = basename,
// lines 1..last, no metadata beyond the language field.
func newResult(filePath string, content []byte, language lang.Language) (*Result, *graph.Node) {
	fileNode := &graph.Node{
		ID:        graph.NodeID(filePath, graph.NodeFile, filepath.Base(filePath), 1),
		Type:      graph.NodeFile,
		Name:      filepath.Base(filePath),
		FilePath:  filePath,
		LineStart: 1,
		LineEnd:   countLines(content),
		Language:  string(language),
	}
	r := &Result{Nodes: []*graph.Node{fileNode}}
	return r, fileNode
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 1
	}
	n := bytes.Count(content, []byte{'\n'}) + 1
	if content[len(content)-1] == '\n' {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

// addNode registers a node and its contains edge from the parent.
func (r *Result) addNode(n *graph.Node, parentID string) {
	r.Nodes = append(r.Nodes, n)
	r.Edges = append(r.Edges, graph.NewEdge(parentID, n.ID, graph.EdgeContains, nil))
}

// callSink deduplicates call edges by call name within one owner.
type callSink struct {
	owner string
	seen  map[string]bool
	r     *Result
	kind  graph.RefKind
	skip  map[string]bool
}

func newCallSink(r *Result, ownerID string, kind graph.RefKind, skip map[string]bool) *callSink {
	return &callSink{owner: ownerID, seen: map[string]bool{}, r: r, kind: kind, skip: skip}
}

// add emits at most one calls edge per unique call name, recording the
// 1-based line of the first occurrence.
func (c *callSink) add(callName string, line int) {
	if callName == "" || c.seen[callName] {
		return
	}
	if c.skip != nil && c.skip[callName] {
		return
	}
	c.seen[callName] = true
	c.r.Edges = append(c.r.Edges, graph.UnresolvedEdge(
		c.owner, c.kind, callName, graph.EdgeCalls, map[string]any{"line": line}))
}

// stripGenerics removes a trailing generic argument list from a type
// expression: "Repo<User, long>" → "Repo".
func stripGenerics(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		return strings.TrimSpace(name[:i])
	}
	return strings.TrimSpace(name)
}

// pythonBuiltins are trivial identifiers skipped when collecting Python calls.
var pythonBuiltins = map[string]bool{
	"print": true, "len": true, "range": true, "str": true, "int": true,
	"float": true, "list": true, "dict": true, "set": true, "tuple": true,
	"type": true, "isinstance": true, "hasattr": true, "getattr": true,
	"setattr": true, "open": true, "super": true, "enumerate": true,
	"zip": true, "map": true, "filter": true, "sorted": true,
	"reversed": true, "any": true, "all": true, "min": true, "max": true,
	"sum": true, "abs": true, "round": true, "format": true, "repr": true,
	"id": true, "hash": true, "callable": true, "dir": true, "vars": true,
	"globals": true, "locals": true, "input": true, "eval": true,
	"exec": true, "compile": true,
}
