package parser

import (
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/nishanttri/code-graph/internal/lang"
)

func TestParseAllLanguages(t *testing.T) {
	cases := map[lang.Language]string{
		lang.TypeScript: "export function f(x: number): number { return x; }",
		lang.JavaScript: "function f(x) { return x; }",
		lang.Python:     "def f(x):\n    return x\n",
		lang.Java:       "class A { int f(int x) { return x; } }",
	}
	for l, src := range cases {
		tree, err := Parse(l, []byte(src))
		if err != nil {
			t.Fatalf("Parse(%s): %v", l, err)
		}
		if tree.RootNode() == nil {
			t.Fatalf("Parse(%s): nil root", l)
		}
		tree.Close()
	}
}

func TestParseUnsupported(t *testing.T) {
	if _, err := Parse(lang.Language("cobol"), []byte("x")); err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestWalkAndNodeText(t *testing.T) {
	src := []byte("def f(x):\n    return g(x)\n")
	tree, err := Parse(lang.Python, src)
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()

	var calls int
	Walk(tree.RootNode(), func(n *tree_sitter.Node) bool {
		if n.Kind() == "call" {
			calls++
			if NodeText(n, src) != "g(x)" {
				t.Errorf("NodeText = %q", NodeText(n, src))
			}
		}
		return true
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestLineConversion(t *testing.T) {
	if Line(0) != 1 || Line(41) != 42 {
		t.Fatal("Line conversion wrong")
	}
}
