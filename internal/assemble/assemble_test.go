package assemble

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

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

func indexedProject(t *testing.T) (*Assembler, string) {
	t.Helper()
	root := t.TempDir()
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	writeFile(t, root, "src/lib.ts", `export function target(){ return 1; }
export function searchEverything(){ return 2; }
`)
	writeFile(t, root, "src/app.ts", `import { target } from "./lib";
export function go(){ return target(); }
`)
	writeFile(t, root, "src/app.test.ts", `import { go } from "./app";
export function check(){ return go(); }
`)

	rec := scan.New(st, root, config.Default())
	_, err = rec.FullSync(context.Background())
	require.NoError(t, err)
	_, err = resolve.New(st).Resolve()
	require.NoError(t, err)

	return &Assembler{Store: st, Root: root}, root
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 0, EstimateTokens(""))
	require.Equal(t, 1, EstimateTokens("abc"))
	require.Equal(t, 1, EstimateTokens("abcd"))
	require.Equal(t, 2, EstimateTokens("abcde"))
}

func TestBuildWithinBudget(t *testing.T) {
	a, _ := indexedProject(t)

	ctx, err := a.Build("src/app.ts", Options{MaxTokens: 1000})
	require.NoError(t, err)
	require.LessOrEqual(t, ctx.TokenEstimate, 1000)
	require.NotNil(t, ctx.TargetFile)
	require.False(t, ctx.TargetFile.Truncated)
}

func TestTargetTruncation(t *testing.T) {
	a, root := indexedProject(t)

	// A target far over 60% of the budget gets cut at a newline boundary.
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("export const filler = \"0123456789012345678901234567890123456789\";\n")
	}
	writeFile(t, root, "src/big.ts", b.String())

	ctx, err := a.Build("src/big.ts", Options{MaxTokens: 1000})
	require.NoError(t, err)
	require.True(t, ctx.TargetFile.Truncated)
	require.Contains(t, ctx.TargetFile.Source, "[truncated")
	// 1000 * 0.6 tokens → 2400 chars, cut within 80% plus the indicator.
	require.LessOrEqual(t, len(ctx.TargetFile.Source), 2400+len(truncationIndicator))
	require.LessOrEqual(t, ctx.TokenEstimate, 1000)

	// The cut lands on a line boundary before the indicator.
	body := strings.TrimSuffix(ctx.TargetFile.Source, truncationIndicator)
	require.True(t, strings.HasSuffix(body, ";"))
}

func TestImportsInlined(t *testing.T) {
	a, _ := indexedProject(t)

	ctx, err := a.Build("src/app.ts", Options{MaxTokens: 4000})
	require.NoError(t, err)

	var names []string
	for _, s := range ctx.Imports {
		names = append(names, s.Name)
	}
	require.Contains(t, names, "target")
}

func TestDependentsExcludeTests(t *testing.T) {
	a, _ := indexedProject(t)

	ctx, err := a.Build("src/app.ts", Options{MaxTokens: 4000})
	require.NoError(t, err)
	for _, d := range ctx.Dependents {
		require.NotContains(t, d.FilePath, ".test.")
	}

	withTests, err := a.Build("src/app.ts", Options{MaxTokens: 4000, IncludeTests: true})
	require.NoError(t, err)
	found := false
	for _, d := range withTests.Dependents {
		if strings.Contains(d.FilePath, ".test.") {
			found = true
		}
	}
	require.True(t, found, "includeTests should admit test dependents")
}

func TestSimilarFunctions(t *testing.T) {
	a, _ := indexedProject(t)

	ctx, err := a.Build("src/app.ts", Options{
		MaxTokens: 4000,
		Task:      "improve searchEverything and go fast",
	})
	require.NoError(t, err)

	// "go" is too short a word; "searchEverything" matches a function
	// outside the target file.
	var names []string
	for _, s := range ctx.SimilarFunctions {
		names = append(names, s.Name)
		require.NotEqual(t, "src/app.ts", s.FilePath)
	}
	require.Contains(t, names, "searchEverything")
}

func TestIsTestPath(t *testing.T) {
	require.True(t, isTestPath("src/app.test.ts"))
	require.True(t, isTestPath("src/app.spec.ts"))
	require.True(t, isTestPath("src/__tests__/app.ts"))
	require.False(t, isTestPath("src/app.ts"))
}
