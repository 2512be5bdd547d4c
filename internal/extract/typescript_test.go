package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nishanttri/code-graph/internal/graph"
)

const tsSample = `export class A { greet(){ return "hi"; } }
export function use(){ const a = new A(); return a.greet(); }
`

func findNode(r *Result, typ graph.NodeType, name string) *graph.Node {
	for _, n := range r.Nodes {
		if n.Type == typ && n.Name == name {
			return n
		}
	}
	return nil
}

func findEdge(r *Result, typ graph.EdgeType, sourceID, targetID string) *graph.Edge {
	for _, e := range r.Edges {
		if e.Type == typ && e.SourceID == sourceID && e.TargetID == targetID {
			return e
		}
	}
	return nil
}

func TestTypeScriptBasicFile(t *testing.T) {
	r, err := ExtractTypeScript("src/a.ts", []byte(tsSample))
	require.NoError(t, err)

	file := findNode(r, graph.NodeFile, "a.ts")
	require.NotNil(t, file)
	require.Equal(t, "typescript", file.Language)
	require.Equal(t, 1, file.LineStart)

	cls := findNode(r, graph.NodeClass, "A")
	require.NotNil(t, cls)
	require.Equal(t, true, cls.Metadata["isExported"])

	method := findNode(r, graph.NodeMethod, "A.greet")
	require.NotNil(t, method)

	fn := findNode(r, graph.NodeFunction, "use")
	require.NotNil(t, fn)
	require.Equal(t, true, fn.Metadata["isExported"])

	require.NotNil(t, findEdge(r, graph.EdgeContains, file.ID, cls.ID))
	require.NotNil(t, findEdge(r, graph.EdgeContains, file.ID, fn.ID))
	require.NotNil(t, findEdge(r, graph.EdgeContains, cls.ID, method.ID))

	call := findEdge(r, graph.EdgeCalls, fn.ID, "ref:function:a.greet")
	require.NotNil(t, call)
	require.Equal(t, true, call.Metadata["unresolved"])
	require.Equal(t, "a.greet", call.Metadata["targetName"])
	require.Equal(t, 2, call.Metadata["line"])
}

func TestTypeScriptIDDeterminism(t *testing.T) {
	first, err := ExtractTypeScript("src/a.ts", []byte(tsSample))
	require.NoError(t, err)
	second, err := ExtractTypeScript("src/a.ts", []byte(tsSample))
	require.NoError(t, err)

	ids := func(r *Result) map[string]bool {
		out := map[string]bool{}
		for _, n := range r.Nodes {
			out["n:"+n.ID] = true
		}
		for _, e := range r.Edges {
			out["e:"+e.ID] = true
		}
		return out
	}
	require.Equal(t, ids(first), ids(second))
}

func TestTypeScriptImports(t *testing.T) {
	src := `import { helper, other as alias } from "./utils";
import Default from "../lib/default";
import * as ns from "pkg";
export { reexported } from "./re";
`
	r, err := ExtractTypeScript("src/app.ts", []byte(src))
	require.NoError(t, err)

	utils := findNode(r, graph.NodeImport, "./utils")
	require.NotNil(t, utils)
	named, ok := utils.Metadata["namedImports"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, named, 2)
	require.Equal(t, "helper", named[0]["name"])
	require.Equal(t, "other", named[1]["name"])
	require.Equal(t, "alias", named[1]["alias"])

	def := findNode(r, graph.NodeImport, "../lib/default")
	require.NotNil(t, def)
	require.Equal(t, "Default", def.Metadata["defaultImport"])

	ns := findNode(r, graph.NodeImport, "pkg")
	require.NotNil(t, ns)
	require.Equal(t, "ns", ns.Metadata["namespaceImport"])

	re := findNode(r, graph.NodeExport, "./re")
	require.NotNil(t, re)
}

func TestTypeScriptArrowFunction(t *testing.T) {
	src := `const compute = async (x: number): number => { return helper(x); };
const plain = function (y) { return y; };
const notAFunction = 42;
`
	r, err := ExtractTypeScript("src/fn.ts", []byte(src))
	require.NoError(t, err)

	arrow := findNode(r, graph.NodeFunction, "compute")
	require.NotNil(t, arrow)
	require.Equal(t, true, arrow.Metadata["isArrowFunction"])
	require.Equal(t, true, arrow.Metadata["isAsync"])

	fnExpr := findNode(r, graph.NodeFunction, "plain")
	require.NotNil(t, fnExpr)
	require.Equal(t, false, fnExpr.Metadata["isArrowFunction"])

	require.Nil(t, findNode(r, graph.NodeFunction, "notAFunction"))

	call := findEdge(r, graph.EdgeCalls, arrow.ID, "ref:function:helper")
	require.NotNil(t, call)
}

func TestTypeScriptCallDedup(t *testing.T) {
	src := `function f() {
	log("a");
	log("b");
	this.m();
	obj.m();
}
`
	r, err := ExtractTypeScript("src/dedup.ts", []byte(src))
	require.NoError(t, err)

	fn := findNode(r, graph.NodeFunction, "f")
	require.NotNil(t, fn)

	var calls []*graph.Edge
	for _, e := range r.Edges {
		if e.Type == graph.EdgeCalls && e.SourceID == fn.ID {
			calls = append(calls, e)
		}
	}
	// log deduplicated; this.m and obj.m kept distinct.
	names := map[string]bool{}
	for _, c := range calls {
		names[c.TargetName()] = true
	}
	require.Len(t, calls, 3)
	require.True(t, names["log"])
	require.True(t, names["this.m"])
	require.True(t, names["obj.m"])
}

func TestTypeScriptHeritageStripsGenerics(t *testing.T) {
	src := `interface Shape { area(): number; name: string; }
interface Named extends Shape { }
class Repo<T> extends Base<T> implements Shape { }
`
	r, err := ExtractTypeScript("src/types.ts", []byte(src))
	require.NoError(t, err)

	shape := findNode(r, graph.NodeInterface, "Shape")
	require.NotNil(t, shape)
	require.Contains(t, shape.Metadata["methods"], "area")
	require.Contains(t, shape.Metadata["properties"], "name")

	named := findNode(r, graph.NodeInterface, "Named")
	require.NotNil(t, named)
	require.NotNil(t, findEdge(r, graph.EdgeExtends, named.ID, "ref:interface:Shape"))

	repo := findNode(r, graph.NodeClass, "Repo")
	require.NotNil(t, repo)
	require.NotNil(t, findEdge(r, graph.EdgeExtends, repo.ID, "ref:class:Base"))
	require.NotNil(t, findEdge(r, graph.EdgeImplements, repo.ID, "ref:interface:Shape"))
}

func TestJavaScriptLanguageForced(t *testing.T) {
	src := "class B extends A { run() { go(); } }\n"
	r, err := ExtractTypeScript("src/b.mjs", []byte(src))
	require.NoError(t, err)

	file := findNode(r, graph.NodeFile, "b.mjs")
	require.NotNil(t, file)
	require.Equal(t, "javascript", file.Language)

	cls := findNode(r, graph.NodeClass, "B")
	require.NotNil(t, cls)
	require.NotNil(t, findEdge(r, graph.EdgeExtends, cls.ID, "ref:class:A"))
}

func TestTypeScriptDeferredExportClause(t *testing.T) {
	src := `export { Foo, helper as help };
class Foo { run(){ return 1; } }
function helper(){ return 2; }
function internal(){ return 3; }
export default entry;
function entry(){ return 4; }
`
	r, err := ExtractTypeScript("src/deferred.ts", []byte(src))
	require.NoError(t, err)

	foo := findNode(r, graph.NodeClass, "Foo")
	require.NotNil(t, foo)
	require.Equal(t, true, foo.Metadata["isExported"])

	helper := findNode(r, graph.NodeFunction, "helper")
	require.NotNil(t, helper)
	require.Equal(t, true, helper.Metadata["isExported"])

	entry := findNode(r, graph.NodeFunction, "entry")
	require.NotNil(t, entry)
	require.Equal(t, true, entry.Metadata["isExported"])

	internal := findNode(r, graph.NodeFunction, "internal")
	require.NotNil(t, internal)
	require.Equal(t, false, internal.Metadata["isExported"])
}

func TestTypeScriptClassProperties(t *testing.T) {
	src := `class Svc {
	private readonly repo: Repo;
	static count: number;
	run() { this.repo.find(); }
}
`
	r, err := ExtractTypeScript("src/svc.ts", []byte(src))
	require.NoError(t, err)

	prop := findNode(r, graph.NodeVariable, "Svc.repo")
	require.NotNil(t, prop)
	require.Equal(t, "private", prop.Metadata["visibility"])
	require.Equal(t, "Repo", prop.Metadata["type"])

	count := findNode(r, graph.NodeVariable, "Svc.count")
	require.NotNil(t, count)
	require.Equal(t, true, count.Metadata["isStatic"])
}
