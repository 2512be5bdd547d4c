package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebounceCoalesces(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string

	w := New(t.TempDir(), func(_ context.Context, paths []string) {
		mu.Lock()
		batches = append(batches, paths)
		mu.Unlock()
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		w.debounce(ctx, "src/a.ts")
		time.Sleep(50 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) == 1
	}, 3*time.Second, 50*time.Millisecond)

	// No further firings after the window closes.
	time.Sleep(2 * DebounceWindow)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)
	require.Equal(t, []string{"src/a.ts"}, batches[0])
}

func TestDebounceSeparatePaths(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}

	w := New(t.TempDir(), func(_ context.Context, paths []string) {
		mu.Lock()
		for _, p := range paths {
			seen[p]++
		}
		mu.Unlock()
	})

	ctx := context.Background()
	w.debounce(ctx, "src/a.ts")
	w.debounce(ctx, "src/b.ts")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["src/a.ts"] == 1 && seen["src/b.ts"] == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSkipPath(t *testing.T) {
	require.True(t, skipPath(".code-graph/graph.db"))
	require.True(t, skipPath("node_modules/pkg/index.js"))
	require.True(t, skipPath("a/b/__pycache__/x.pyc"))
	require.True(t, skipPath(".git/HEAD"))
	require.False(t, skipPath("src/app.ts"))
}
