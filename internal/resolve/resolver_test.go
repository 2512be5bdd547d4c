package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nishanttri/code-graph/internal/extract"
	"github.com/nishanttri/code-graph/internal/graph"
	"github.com/nishanttri/code-graph/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertResult(t *testing.T, s *store.Store, r *extract.Result) {
	t.Helper()
	require.NoError(t, s.UpsertNodes(r.Nodes))
	require.NoError(t, s.UpsertEdges(r.Edges))
}

func extractInto(t *testing.T, s *store.Store, path, src string) *extract.Result {
	t.Helper()
	fn, _, ok := extract.ForPath(path)
	require.True(t, ok)
	r, err := fn(path, []byte(src))
	require.NoError(t, err)
	insertResult(t, s, r)
	return r
}

func nodeByName(t *testing.T, s *store.Store, typ graph.NodeType, name string) *graph.Node {
	t.Helper()
	nodes, err := s.GetByType(typ)
	require.NoError(t, err)
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

func TestResolveSingleFileTypeScript(t *testing.T) {
	s := testStore(t)
	extractInto(t, s, "src/a.ts", `export class A { greet(){ return "hi"; } }
export function use(){ const a = new A(); return a.greet(); }
`)

	res, err := New(s).Resolve()
	require.NoError(t, err)
	require.Equal(t, 1, res.Resolved)
	require.Zero(t, res.Ambiguous)

	method := nodeByName(t, s, graph.NodeMethod, "A.greet")
	require.NotNil(t, method)

	use := nodeByName(t, s, graph.NodeFunction, "use")
	require.NotNil(t, use)

	edges, err := s.EdgesBySource(use.ID)
	require.NoError(t, err)
	var call *graph.Edge
	for _, e := range edges {
		if e.Type == graph.EdgeCalls {
			call = e
		}
	}
	require.NotNil(t, call)
	require.Equal(t, method.ID, call.TargetID)
	require.Equal(t, false, call.Metadata["unresolved"])
	require.Equal(t, "ref:function:a.greet", call.Metadata["resolvedFrom"])

	rs, err := s.GetResolutionStats()
	require.NoError(t, err)
	require.Zero(t, rs.Unresolved)
}

func TestResolvePythonCrossModule(t *testing.T) {
	s := testStore(t)
	extractInto(t, s, "pkg/m.py", "def compute(x):\n    return x * 2\n")
	extractInto(t, s, "pkg/n.py", "from .m import compute\n\ndef run():\n    return compute(1)\n")

	res, err := New(s).Resolve()
	require.NoError(t, err)
	require.Equal(t, 1, res.Resolved)

	compute := nodeByName(t, s, graph.NodeFunction, "compute")
	run := nodeByName(t, s, graph.NodeFunction, "run")
	require.NotNil(t, compute)
	require.NotNil(t, run)

	callees, err := s.ResolvedCalleesOf(run.ID)
	require.NoError(t, err)
	require.Len(t, callees, 1)
	require.Equal(t, "compute", callees[0].Name)
}

func TestResolveAmbiguousHelpers(t *testing.T) {
	s := testStore(t)
	extractInto(t, s, "src/one.ts", "export function helper(){ return 1; }\n")
	extractInto(t, s, "src/two.ts", "export function helper(){ return 2; }\n")
	extractInto(t, s, "src/caller.ts", "export function go(){ return helper(); }\n")

	before, err := s.GetResolutionStats()
	require.NoError(t, err)

	res, err := New(s).Resolve()
	require.NoError(t, err)
	require.Equal(t, 1, res.Ambiguous)
	require.Zero(t, res.Resolved)

	after, err := s.GetResolutionStats()
	require.NoError(t, err)
	require.Equal(t, before.Unresolved, after.Unresolved)

	goFn := nodeByName(t, s, graph.NodeFunction, "go")
	edges, err := s.EdgesBySource(goFn.ID)
	require.NoError(t, err)
	var call *graph.Edge
	for _, e := range edges {
		if e.Type == graph.EdgeCalls {
			call = e
		}
	}
	require.NotNil(t, call)
	require.True(t, call.Unresolved())
	cands, ok := call.Metadata["ambiguousCandidates"].([]any)
	require.True(t, ok)
	require.Len(t, cands, 2)
}

func TestResolveImportBreaksTie(t *testing.T) {
	s := testStore(t)
	extractInto(t, s, "src/one.ts", "export function helper(){ return 1; }\n")
	extractInto(t, s, "lib/two.ts", "export function helper(){ return 2; }\n")
	extractInto(t, s, "src/caller.ts", `import { helper } from "./one";
export function go(){ return helper(); }
`)

	res, err := New(s).Resolve()
	require.NoError(t, err)
	require.Equal(t, 1, res.Resolved)

	goFn := nodeByName(t, s, graph.NodeFunction, "go")
	callees, err := s.ResolvedCalleesOf(goFn.ID)
	require.NoError(t, err)
	require.Len(t, callees, 1)
	require.Equal(t, "src/one.ts", callees[0].FilePath)
}

func TestResolveExportMapBreaksTie(t *testing.T) {
	s := testStore(t)
	// one.ts exports helper via a deferred clause; two.ts keeps it private.
	// The +20 export bonus alone must clear the ambiguity gap.
	extractInto(t, s, "src/one.ts", "function helper(){ return 1; }\nexport { helper };\n")
	extractInto(t, s, "src/two.ts", "function helper(){ return 2; }\n")
	extractInto(t, s, "src/caller.ts", "export function go(){ return helper(); }\n")

	res, err := New(s).Resolve()
	require.NoError(t, err)
	require.Equal(t, 1, res.Resolved)
	require.Zero(t, res.Ambiguous)

	goFn := nodeByName(t, s, graph.NodeFunction, "go")
	callees, err := s.ResolvedCalleesOf(goFn.ID)
	require.NoError(t, err)
	require.Len(t, callees, 1)
	require.Equal(t, "src/one.ts", callees[0].FilePath)
}

func TestBuildIndicesExportMap(t *testing.T) {
	s := testStore(t)
	extractInto(t, s, "src/lib.ts", "export function target(){ return 1; }\nfunction hidden(){ return 2; }\n")
	extractInto(t, s, "src/barrel.ts", `export { target as publicTarget } from "./lib";
`)

	r := New(s)
	require.NoError(t, r.buildIndices())

	require.True(t, r.exports["src/lib.ts"]["target"])
	require.False(t, r.exports["src/lib.ts"]["hidden"])
	// Re-exports surface under the exported-as name of the barrel file.
	require.True(t, r.exports["src/barrel.ts"]["publicTarget"])

	for _, c := range r.index["target"] {
		if c.FilePath == "src/lib.ts" {
			require.True(t, c.Exported)
		}
	}
	for _, c := range r.index["hidden"] {
		require.False(t, c.Exported)
	}
}

func TestResolveMonotonic(t *testing.T) {
	s := testStore(t)
	extractInto(t, s, "src/one.ts", "export function helper(){ return 1; }\n")
	extractInto(t, s, "src/two.ts", "export function helper(){ return 2; }\n")
	extractInto(t, s, "src/caller.ts", `import { helper } from "./one";
export function go(){ helper(); missing(); }
`)

	_, err := New(s).Resolve()
	require.NoError(t, err)
	first, err := s.AllEdges()
	require.NoError(t, err)

	_, err = New(s).Resolve()
	require.NoError(t, err)
	second, err := s.AllEdges()
	require.NoError(t, err)

	asMap := func(edges []*graph.Edge) map[string]graph.Edge {
		out := map[string]graph.Edge{}
		for _, e := range edges {
			out[e.ID] = *e
		}
		return out
	}
	require.Equal(t, asMap(first), asMap(second))
}

func TestCompatibilityFilter(t *testing.T) {
	s := testStore(t)
	// A variable named exactly like the call target must not satisfy a
	// calls edge.
	extractInto(t, s, "app/consts.py", "HANDLE = 1\n")
	extractInto(t, s, "app/use.py", "def go():\n    return HANDLE()\n")

	res, err := New(s).Resolve()
	require.NoError(t, err)
	require.Zero(t, res.Resolved)
	require.Equal(t, 1, res.Unresolved)
}

func TestAmbiguityGapRule(t *testing.T) {
	r := &Resolver{imports: map[string][]*importInfo{}}
	src := &graph.Node{ID: "s", FilePath: "src/caller.ts", Language: "typescript"}

	a := &candidate{NodeID: "a", Name: "helper", FullName: "helper",
		Type: graph.NodeFunction, FilePath: "src/one.ts", Language: "typescript", Exported: true}
	b := &candidate{NodeID: "b", Name: "helper", FullName: "helper",
		Type: graph.NodeFunction, FilePath: "src/two.ts", Language: "typescript", Exported: true}

	scored := r.rank([]*candidate{a, b}, "helper", src)
	// Identical signals: gap is zero, strictly-more-than-10 rule fails.
	require.Equal(t, scored[0].score, scored[1].score)

	// An import edge worth +60 pushes the winner past the gap.
	r.imports["src/caller.ts"] = []*importInfo{{
		ModuleSpecifier: "./one", IsRelative: true,
		Named: []importName{{Name: "helper"}},
	}}
	scored = r.rank([]*candidate{a, b}, "helper", src)
	require.Equal(t, "a", scored[0].cand.NodeID)
	require.Greater(t, scored[0].score, scored[1].score+ambiguityGap)
}

func TestCleanTargetName(t *testing.T) {
	require.Equal(t, "m", cleanTargetName("this.m"))
	require.Equal(t, "m", cleanTargetName("self.m"))
	require.Equal(t, "m", cleanTargetName("super.m"))
	require.Equal(t, "obj.m", cleanTargetName("obj.m"))
}

func TestModuleMatchRelative(t *testing.T) {
	imp := &importInfo{ModuleSpecifier: "./utils", IsRelative: true}
	require.True(t, moduleMatch(imp, "src/utils.ts", "src/app.ts"))
	require.True(t, moduleMatch(imp, "src/utils/index.ts", "src/app.ts"))
	require.False(t, moduleMatch(imp, "lib/utils.ts", "src/app.ts"))

	up := &importInfo{ModuleSpecifier: "../lib/helper", IsRelative: true}
	require.True(t, moduleMatch(up, "lib/helper.ts", "src/app.ts"))
}

func TestModuleMatchNonRelative(t *testing.T) {
	imp := &importInfo{ModuleSpecifier: "com.example.service"}
	require.True(t, moduleMatch(imp, "src/main/java/com/example/service/UserService.java", "X.java"))

	py := &importInfo{ModuleSpecifier: "pkg.util"}
	require.True(t, moduleMatch(py, "pkg/util.py", "app.py"))
	require.False(t, moduleMatch(py, "other/place.py", "app.py"))
}
