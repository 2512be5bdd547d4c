// Package resolve binds ref: placeholder edges to concrete node identities.
// It builds a multi-key symbol index and per-file import maps once per run,
// filters candidates by edge-type compatibility, and ranks survivors with a
// weighted scorer. A winner must beat the runner-up by more than the
// ambiguity gap or the edge is recorded as ambiguous.
package resolve

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/nishanttri/code-graph/internal/graph"
	"github.com/nishanttri/code-graph/internal/store"
)

// Result reports the outcome of one resolver run.
type Result struct {
	Resolved   int `json:"resolved"`
	Ambiguous  int `json:"ambiguous"`
	Unresolved int `json:"unresolved"`
}

// ambiguityGap is the score margin the best candidate must exceed.
const ambiguityGap = 10

// maxAmbiguousCandidates caps the recorded candidate list.
const maxAmbiguousCandidates = 5

// compatible lists the node types each edge type may bind to. Edge types
// missing from the table pass through unfiltered.
var compatible = map[graph.EdgeType][]graph.NodeType{
	graph.EdgeCalls: {graph.NodeFunction, graph.NodeMethod, graph.NodeEndpoint},
	graph.EdgeUses: {graph.NodeVariable, graph.NodeClass, graph.NodeInterface,
		graph.NodeFunction, graph.NodeMethod},
	graph.EdgeExtends:    {graph.NodeClass, graph.NodeInterface},
	graph.EdgeImplements: {graph.NodeInterface},
	graph.EdgeImports: {graph.NodeModule, graph.NodeFile, graph.NodeClass,
		graph.NodeFunction, graph.NodeVariable},
	graph.EdgeAutowires: {graph.NodeClass, graph.NodeInterface, graph.NodeService,
		graph.NodeRepository, graph.NodeComponent, graph.NodeController},
	graph.EdgeInjects: {graph.NodeClass, graph.NodeInterface, graph.NodeService,
		graph.NodeRepository, graph.NodeComponent, graph.NodeController},
}

// candidate is one indexed symbol the resolver may bind to.
type candidate struct {
	NodeID   string
	Name     string // short name (last segment)
	FullName string
	Type     graph.NodeType
	FilePath string
	Language string
	Exported bool
}

// importInfo is the resolver's view of one import node.
type importInfo struct {
	ModuleSpecifier string
	IsRelative      bool
	DefaultImport   string
	NamespaceImport string
	Named           []importName
}

type importName struct {
	Name  string
	Alias string
}

// Resolver performs one whole-graph resolution pass over a store snapshot.
type Resolver struct {
	store *store.Store

	nodes   map[string]*graph.Node
	index   map[string][]*candidate    // name key → candidates
	imports map[string][]*importInfo   // file path → imports
	exports map[string]map[string]bool // file path → exported names
}

// New creates a Resolver over the given store.
func New(st *store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve runs one pass: every unresolved edge is bound, marked ambiguous,
// or left as-is. Running it twice in a row yields identical edges.
func (r *Resolver) Resolve() (Result, error) {
	if err := r.buildIndices(); err != nil {
		return Result{}, err
	}

	edges, err := r.store.GetUnresolvedEdges()
	if err != nil {
		return Result{}, fmt.Errorf("unresolved edges: %w", err)
	}

	var res Result
	for _, e := range edges {
		switch r.resolveEdge(e) {
		case outcomeResolved:
			res.Resolved++
		case outcomeAmbiguous:
			res.Ambiguous++
		default:
			res.Unresolved++
		}
	}

	slog.Info("resolve.done", "resolved", res.Resolved,
		"ambiguous", res.Ambiguous, "unresolved", res.Unresolved)
	return res, nil
}

type outcome int

const (
	outcomeUnresolved outcome = iota
	outcomeResolved
	outcomeAmbiguous
)

func (r *Resolver) resolveEdge(e *graph.Edge) outcome {
	targetName := e.TargetName()
	if targetName == "" {
		return outcomeUnresolved
	}
	src, ok := r.nodes[e.SourceID]
	if !ok {
		return outcomeUnresolved
	}

	cleaned := cleanTargetName(targetName)
	cands := r.gatherCandidates(cleaned, src)
	cands = filterCompatible(cands, e.Type)

	switch len(cands) {
	case 0:
		return outcomeUnresolved
	case 1:
		if err := r.store.UpdateEdgeTarget(e.ID, cands[0].NodeID, false); err != nil {
			slog.Warn("resolve.update.err", "edge", e.ID, "err", err)
			return outcomeUnresolved
		}
		return outcomeResolved
	}

	scored := r.rank(cands, cleaned, src)
	if scored[0].score > scored[1].score+ambiguityGap {
		if err := r.store.UpdateEdgeTarget(e.ID, scored[0].cand.NodeID, false); err != nil {
			slog.Warn("resolve.update.err", "edge", e.ID, "err", err)
			return outcomeUnresolved
		}
		return outcomeResolved
	}

	// Ambiguous: stays unresolved, candidates recorded for inspection.
	n := len(scored)
	if n > maxAmbiguousCandidates {
		n = maxAmbiguousCandidates
	}
	listed := make([]string, n)
	for i := 0; i < n; i++ {
		listed[i] = fmt.Sprintf("%s (%s)", scored[i].cand.FullName, scored[i].cand.FilePath)
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	meta["ambiguousCandidates"] = listed
	if err := r.store.UpdateEdgeMetadata(e.ID, meta); err != nil {
		slog.Warn("resolve.meta.err", "edge", e.ID, "err", err)
	}
	return outcomeAmbiguous
}

// gatherCandidates collects candidates from the three sources of §4.4 step
// 4, deduplicated by node id.
func (r *Resolver) gatherCandidates(cleaned string, src *graph.Node) []*candidate {
	seen := map[string]bool{}
	var out []*candidate
	add := func(cands []*candidate) {
		for _, c := range cands {
			if seen[c.NodeID] {
				continue
			}
			seen[c.NodeID] = true
			out = append(out, c)
		}
	}

	// a. direct index hit
	add(r.index[cleaned])

	// b. dotted fallbacks: last segment, and Owner.member
	if strings.Contains(cleaned, ".") {
		segs := strings.Split(cleaned, ".")
		add(r.index[segs[len(segs)-1]])
		if len(segs) >= 2 {
			add(r.index[segs[len(segs)-2]+"."+segs[len(segs)-1]])
		}
	}

	// c. import-guided lookup
	add(r.importCandidates(cleaned, src))

	return out
}

// importCandidates follows the source file's imports: a local alias matching
// the cleaned name (or its leading segment) is mapped back to the imported
// name, and index hits are kept only when their file matches the module
// specifier.
func (r *Resolver) importCandidates(cleaned string, src *graph.Node) []*candidate {
	var out []*candidate
	for _, imp := range r.imports[src.FilePath] {
		for _, local := range imp.localNames() {
			lookup := ""
			if cleaned == local.local {
				lookup = local.original
				if lookup == "" {
					lookup = cleaned
				}
			} else if strings.HasPrefix(cleaned, local.local+".") {
				lookup = cleaned[len(local.local)+1:]
			} else {
				continue
			}
			for _, c := range r.index[lookup] {
				if moduleMatch(imp, c.FilePath, src.FilePath) {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

type localBinding struct {
	local    string
	original string
}

func (imp *importInfo) localNames() []localBinding {
	var out []localBinding
	if imp.DefaultImport != "" {
		out = append(out, localBinding{imp.DefaultImport, imp.DefaultImport})
	}
	if imp.NamespaceImport != "" {
		out = append(out, localBinding{imp.NamespaceImport, ""})
	}
	for _, n := range imp.Named {
		local := n.Alias
		if local == "" {
			local = n.Name
		}
		out = append(out, localBinding{local, n.Name})
	}
	return out
}

type scoredCandidate struct {
	cand  *candidate
	score int
}

// rank scores each candidate per the §4.4 table and sorts descending,
// breaking ties by node id for determinism.
func (r *Resolver) rank(cands []*candidate, target string, src *graph.Node) []scoredCandidate {
	scored := make([]scoredCandidate, len(cands))
	for i, c := range cands {
		s := 0
		if c.FilePath == src.FilePath {
			s += 100
		}
		if path.Dir(c.FilePath) == path.Dir(src.FilePath) {
			s += 50
		}
		if c.Language == src.Language {
			s += 30
		}
		if c.FullName == target || c.Name == target {
			s += 40
		}
		if c.Exported {
			s += 20
		}
		if r.sourceImportsFile(src.FilePath, c.FilePath) {
			s += 60
		}
		if ownersMatch(target, c.FullName) {
			s += 35
		}
		scored[i] = scoredCandidate{cand: c, score: s}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].cand.NodeID < scored[j].cand.NodeID
	})
	return scored
}

// sourceImportsFile reports whether any import of srcFile resolves to
// candFile.
func (r *Resolver) sourceImportsFile(srcFile, candFile string) bool {
	for _, imp := range r.imports[srcFile] {
		if moduleMatch(imp, candFile, srcFile) {
			return true
		}
	}
	return false
}

// ownersMatch holds when both names are dotted and their owner segments
// match case-insensitively.
func ownersMatch(target, full string) bool {
	to := graph.OwnerName(target)
	fo := graph.OwnerName(full)
	return to != "" && fo != "" && strings.EqualFold(to, fo)
}

// cleanTargetName strips receiver prefixes from a call-site name.
func cleanTargetName(name string) string {
	for _, prefix := range []string{"this.", "self.", "super."} {
		if strings.HasPrefix(name, prefix) {
			return name[len(prefix):]
		}
	}
	return name
}

func filterCompatible(cands []*candidate, edgeType graph.EdgeType) []*candidate {
	allowed, ok := compatible[edgeType]
	if !ok {
		return cands
	}
	out := cands[:0]
	for _, c := range cands {
		for _, t := range allowed {
			if c.Type == t {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// moduleMatch implements the §4.4 module-match rules. Non-relative
// specifiers match by substring (with dots also tried as separators, for
// Python and Java paths); relative specifiers are normalised against the
// source file's directory and compared with and without extension, as a
// prefix or in full.
func moduleMatch(imp *importInfo, candFile, srcFile string) bool {
	spec := imp.ModuleSpecifier
	if spec == "" {
		return false
	}
	if imp.IsRelative || strings.HasPrefix(spec, ".") {
		normalised := normaliseRelative(path.Dir(srcFile), spec)
		return pathMatches(normalised, candFile)
	}
	if strings.Contains(candFile, spec) {
		return true
	}
	if slashed := strings.ReplaceAll(spec, ".", "/"); slashed != spec && strings.Contains(candFile, slashed) {
		return true
	}
	return false
}

// normaliseRelative resolves ".", "..", and identifier segments of spec
// against dir.
func normaliseRelative(dir, spec string) string {
	spec = strings.ReplaceAll(spec, "\\", "/")
	segs := strings.Split(spec, "/")
	parts := strings.Split(path.Clean(dir), "/")
	if len(parts) == 1 && parts[0] == "." {
		parts = nil
	}
	for _, seg := range segs {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/")
}

// pathMatches compares a normalised specifier path with a candidate file,
// with and without the candidate's extension, as a prefix or full match.
func pathMatches(normalised, candFile string) bool {
	if normalised == "" {
		return false
	}
	withoutExt := strings.TrimSuffix(candFile, path.Ext(candFile))
	if candFile == normalised || withoutExt == normalised {
		return true
	}
	return strings.HasPrefix(candFile, normalised+"/") ||
		strings.HasPrefix(withoutExt, normalised+"/")
}

// buildIndices loads the snapshot and constructs the three per-run indices:
// the symbol index, the per-file import map, and the per-file export map.
func (r *Resolver) buildIndices() error {
	nodes, err := r.store.AllNodes()
	if err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}

	r.nodes = make(map[string]*graph.Node, len(nodes))
	r.index = map[string][]*candidate{}
	r.imports = map[string][]*importInfo{}
	r.exports = map[string]map[string]bool{}

	// Pass 1: import and export maps. Export names come from declarations
	// flagged isExported and from re-export nodes' named lists.
	for _, n := range nodes {
		r.nodes[n.ID] = n
		switch n.Type {
		case graph.NodeImport:
			r.imports[n.FilePath] = append(r.imports[n.FilePath], parseImportInfo(n))
		case graph.NodeExport:
			for _, name := range reExportedNames(n) {
				r.addExport(n.FilePath, name)
			}
		case graph.NodeFile:
		default:
			if metaBool(n.Metadata, "isExported") {
				r.addExport(n.FilePath, n.Name)
			}
		}
	}

	// Pass 2: symbol index. file and import nodes are excluded; Exported is
	// sourced from the file-export map.
	for _, n := range nodes {
		switch n.Type {
		case graph.NodeImport, graph.NodeExport, graph.NodeFile:
			continue
		}

		c := &candidate{
			NodeID:   n.ID,
			Name:     graph.MemberName(n.Name),
			FullName: n.Name,
			Type:     n.Type,
			FilePath: n.FilePath,
			Language: n.Language,
			Exported: r.exports[n.FilePath][n.Name],
		}

		keys := map[string]bool{c.Name: true, c.FullName: true}
		if segs := strings.Split(n.Name, "."); len(segs) >= 2 {
			keys[segs[len(segs)-2]+"."+segs[len(segs)-1]] = true
		}
		for key := range keys {
			r.index[key] = append(r.index[key], c)
		}
	}

	// Deterministic candidate order within each key.
	for _, cands := range r.index {
		sort.Slice(cands, func(i, j int) bool { return cands[i].NodeID < cands[j].NodeID })
	}
	return nil
}

func (r *Resolver) addExport(filePath, name string) {
	set, ok := r.exports[filePath]
	if !ok {
		set = map[string]bool{}
		r.exports[filePath] = set
	}
	set[name] = true
}

// reExportedNames lists the names a re-export node makes available from its
// file (`export { a, b as c } from "m"` exports a and c).
func reExportedNames(n *graph.Node) []string {
	if n.Metadata == nil {
		return nil
	}
	raw, ok := n.Metadata["namedExports"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, entry := range raw {
		em, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, _ := em["alias"].(string)
		if name == "" {
			name, _ = em["name"].(string)
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// parseImportInfo decodes an import node's metadata into the resolver view.
func parseImportInfo(n *graph.Node) *importInfo {
	info := &importInfo{ModuleSpecifier: n.Name}
	m := n.Metadata
	if m == nil {
		return info
	}
	if s, ok := m["moduleSpecifier"].(string); ok && s != "" {
		info.ModuleSpecifier = s
	}
	if b, ok := m["isRelative"].(bool); ok {
		info.IsRelative = b
	}
	if strings.HasPrefix(info.ModuleSpecifier, ".") {
		info.IsRelative = true
	}
	if s, ok := m["defaultImport"].(string); ok {
		info.DefaultImport = s
	}
	if s, ok := m["namespaceImport"].(string); ok {
		info.NamespaceImport = s
	}
	if t, _ := m["type"].(string); t == "module" {
		// Python `import X [as Y]`: the module itself becomes a local binding.
		alias, _ := m["alias"].(string)
		info.Named = append(info.Named, importName{Name: info.ModuleSpecifier, Alias: alias})
	}
	if raw, ok := m["namedImports"].([]any); ok {
		for _, entry := range raw {
			em, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			var in importName
			if s, ok := em["name"].(string); ok {
				in.Name = s
			}
			if s, ok := em["alias"].(string); ok {
				in.Alias = s
			}
			if in.Name != "" {
				info.Named = append(info.Named, in)
			}
		}
	}
	return info
}

func metaBool(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}
