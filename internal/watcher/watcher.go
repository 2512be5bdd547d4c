// Package watcher observes the project tree with fsnotify and drives
// incremental reconciliation. Events are coalesced per path with a 500 ms
// window, and a write-stability check keeps half-written files out of the
// pipeline.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nishanttri/code-graph/internal/config"
	"github.com/nishanttri/code-graph/internal/extract"
)

// DebounceWindow is the per-path coalescing window.
const DebounceWindow = 500 * time.Millisecond

// stabilityProbe is the wait between size/mtime probes when checking that a
// write has finished.
const stabilityProbe = 100 * time.Millisecond

// UpdateFunc is invoked with a batch of project-relative paths once their
// events have settled.
type UpdateFunc func(ctx context.Context, paths []string)

// Watcher debounces filesystem events and forwards settled paths.
type Watcher struct {
	root     string
	updateFn UpdateFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher for a project root.
func New(root string, updateFn UpdateFunc) *Watcher {
	return &Watcher{
		root:     root,
		updateFn: updateFn,
		pending:  make(map[string]*time.Timer),
	}
}

// Run blocks until ctx is cancelled, watching the project tree recursively.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}
	slog.Info("watcher.start", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher.err", "err", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if skipPath(rel) {
		return
	}

	// New directories join the watch set.
	if event.Op.Has(fsnotify.Create) {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			_ = w.addRecursive(fw, event.Name)
			return
		}
	}

	if !extract.Supported(rel) {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.debounce(ctx, rel)
}

// debounce (re)arms the per-path timer; the path fires once events stop for
// a full window.
func (w *Watcher) debounce(ctx context.Context, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[rel]; ok {
		t.Reset(DebounceWindow)
		return
	}
	w.pending[rel] = time.AfterFunc(DebounceWindow, func() {
		w.mu.Lock()
		delete(w.pending, rel)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.awaitStable(filepath.Join(w.root, filepath.FromSlash(rel)))
		slog.Info("watcher.changed", "path", rel)
		w.updateFn(ctx, []string{rel})
	})
}

// awaitStable waits until two consecutive probes see the same size and
// mtime, bounded to a handful of probes. Deleted files pass immediately.
func (w *Watcher) awaitStable(absPath string) {
	var prevSize int64 = -1
	var prevMod time.Time
	for i := 0; i < 10; i++ {
		info, err := os.Stat(absPath)
		if err != nil {
			return
		}
		if info.Size() == prevSize && info.ModTime().Equal(prevMod) {
			return
		}
		prevSize = info.Size()
		prevMod = info.ModTime()
		time.Sleep(stabilityProbe)
	}
}

// addRecursive watches dir and every subdirectory, skipping ignored trees.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		if rel != "." && skipPath(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if addErr := fw.Add(path); addErr != nil {
			slog.Warn("watcher.add.err", "dir", path, "err", addErr)
		}
		return nil
	})
}

// skipPath filters the state directory and common junk trees.
func skipPath(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		switch seg {
		case config.Dir, ".git", "node_modules", "__pycache__", "dist",
			"build", "target", "venv", ".venv", "vendor":
			return true
		}
	}
	return false
}
