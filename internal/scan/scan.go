// Package scan walks the project tree, hashes files, and reconciles the
// store against disk: new and changed files are re-extracted, deleted files
// are purged. Re-parse is always delete-then-insert; per-file failures are
// isolated.
package scan

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/nishanttri/code-graph/internal/config"
	"github.com/nishanttri/code-graph/internal/extract"
	"github.com/nishanttri/code-graph/internal/graph"
	"github.com/nishanttri/code-graph/internal/store"
)

// Result summarises a reconciliation run.
type Result struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
	Deleted   int `json:"deleted"`
}

// Changed reports whether the run modified the store.
func (r Result) Changed() bool {
	return r.Processed > 0 || r.Deleted > 0
}

// Reconciler drives extraction and store updates for one project.
type Reconciler struct {
	Store *store.Store
	Root  string
	Cfg   *config.ProjectConfig

	// OnFile, when set, is invoked before each file is processed (CLI
	// progress reporting).
	OnFile func(relPath string)

	include *ignore.GitIgnore
	exclude *ignore.GitIgnore
}

// New creates a Reconciler with compiled include/exclude matchers.
func New(st *store.Store, root string, cfg *config.ProjectConfig) *Reconciler {
	r := &Reconciler{Store: st, Root: root, Cfg: cfg}
	if len(cfg.Include) > 0 {
		r.include = ignore.CompileIgnoreLines(cfg.Include...)
	}
	if len(cfg.Exclude) > 0 {
		r.exclude = ignore.CompileIgnoreLines(cfg.Exclude...)
	}
	return r
}

// Hash returns the xxh3-128 hex digest of content.
func Hash(content []byte) string {
	sum := xxh3.Hash128(content).Bytes()
	return hex.EncodeToString(sum[:])
}

// FullSync enumerates the project, reconciles every file, and purges files
// that disappeared from disk.
func (r *Reconciler) FullSync(ctx context.Context) (Result, error) {
	files, err := r.enumerate()
	if err != nil {
		return Result{}, fmt.Errorf("enumerate: %w", err)
	}
	slog.Info("sync.start", "files", len(files))

	hashes := r.hashAll(ctx, files)

	stored, err := r.Store.AllFileHashes()
	if err != nil {
		return Result{}, fmt.Errorf("stored hashes: %w", err)
	}

	var res Result
	onDisk := make(map[string]bool, len(files))
	for _, rel := range files {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		onDisk[rel] = true
		r.reconcileFile(rel, hashes[rel], stored, &res)
	}

	// Files present in the store but absent on disk.
	for path := range stored {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !onDisk[path] {
			if err := r.deleteFile(path); err != nil {
				slog.Warn("sync.delete.err", "path", path, "err", err)
				res.Errors++
				continue
			}
			res.Deleted++
		}
	}

	r.Store.Checkpoint()
	slog.Info("sync.done", "processed", res.Processed, "skipped", res.Skipped,
		"errors", res.Errors, "deleted", res.Deleted)
	return res, nil
}

// Update reconciles an explicit set of paths (project-relative). A path
// missing from disk triggers deletion from the store.
func (r *Reconciler) Update(ctx context.Context, paths []string) (Result, error) {
	stored, err := r.Store.AllFileHashes()
	if err != nil {
		return Result{}, fmt.Errorf("stored hashes: %w", err)
	}

	var res Result
	for _, rel := range paths {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		rel = filepath.ToSlash(rel)
		abs := filepath.Join(r.Root, filepath.FromSlash(rel))
		if _, statErr := os.Stat(abs); statErr != nil {
			if os.IsNotExist(statErr) {
				if _, had := stored[rel]; had || r.fileKnown(rel) {
					if err := r.deleteFile(rel); err != nil {
						slog.Warn("update.delete.err", "path", rel, "err", err)
						res.Errors++
						continue
					}
					res.Deleted++
				}
				continue
			}
			slog.Warn("update.stat.err", "path", rel, "err", statErr)
			res.Errors++
			continue
		}
		if !extract.Supported(rel) {
			res.Skipped++
			continue
		}
		content, readErr := os.ReadFile(abs)
		if readErr != nil {
			slog.Warn("update.read.err", "path", rel, "err", readErr)
			res.Errors++
			continue
		}
		r.reconcileContent(rel, content, Hash(content), stored, &res)
	}

	return res, nil
}

// fileKnown reports whether the store holds nodes for a path even when its
// hash record is gone.
func (r *Reconciler) fileKnown(rel string) bool {
	nodes, err := r.Store.GetByFile(rel)
	return err == nil && len(nodes) > 0
}

// reconcileFile loads content only when the precomputed hash differs from
// the stored one; hash-unchanged files are skipped without extraction.
func (r *Reconciler) reconcileFile(rel, hash string, stored map[string]graph.FileHash, res *Result) {
	if hash == "" {
		res.Errors++
		return
	}
	if prev, ok := stored[rel]; ok && prev.Hash == hash {
		res.Skipped++
		return
	}
	abs := filepath.Join(r.Root, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	if err != nil {
		slog.Warn("sync.read.err", "path", rel, "err", err)
		res.Errors++
		return
	}
	r.reconcileContent(rel, content, hash, stored, res)
}

// reconcileContent extracts a file and commits the delta atomically.
// On extractor error the file is skipped and prior state is untouched.
func (r *Reconciler) reconcileContent(rel string, content []byte, hash string, stored map[string]graph.FileHash, res *Result) {
	if prev, ok := stored[rel]; ok && prev.Hash == hash {
		res.Skipped++
		return
	}
	if r.OnFile != nil {
		r.OnFile(rel)
	}

	fn, _, ok := extract.ForPath(rel)
	if !ok {
		res.Skipped++
		return
	}
	result, err := fn(rel, content)
	if err != nil {
		slog.Warn("sync.parse.err", "path", rel, "err", err)
		res.Errors++
		return
	}

	var modTime int64
	if info, statErr := os.Stat(filepath.Join(r.Root, filepath.FromSlash(rel))); statErr == nil {
		modTime = info.ModTime().Unix()
	}

	err = r.Store.WithTransaction(func(tx *store.Store) error {
		if err := tx.DeleteByFile(rel); err != nil {
			return err
		}
		if err := tx.UpsertNodes(result.Nodes); err != nil {
			return err
		}
		if err := tx.UpsertEdges(result.Edges); err != nil {
			return err
		}
		return tx.UpsertFileHash(graph.FileHash{Path: rel, Hash: hash, LastModified: modTime})
	})
	if err != nil {
		slog.Warn("sync.commit.err", "path", rel, "err", err)
		res.Errors++
		return
	}
	res.Processed++
}

func (r *Reconciler) deleteFile(rel string) error {
	return r.Store.WithTransaction(func(tx *store.Store) error {
		if err := tx.DeleteByFile(rel); err != nil {
			return err
		}
		return tx.DeleteFileHash(rel)
	})
}

// enumerate walks the project tree and returns the sorted relative paths of
// files matching the include/exclude patterns and a supported extension.
func (r *Reconciler) enumerate() ([]string, error) {
	var files []string
	err := filepath.Walk(r.Root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		rel, relErr := filepath.Rel(r.Root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if info.Name() == config.Dir || info.Name() == ".git" {
				return filepath.SkipDir
			}
			if r.exclude != nil && r.exclude.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if r.exclude != nil && r.exclude.MatchesPath(rel) {
			return nil
		}
		if r.include != nil && !r.include.MatchesPath(rel) {
			return nil
		}
		if !extract.Supported(rel) {
			return nil
		}
		if !r.languageEnabled(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// languageEnabled checks the configured language list for the file's
// language. An empty list enables everything.
func (r *Reconciler) languageEnabled(rel string) bool {
	if len(r.Cfg.Languages) == 0 {
		return true
	}
	_, l, ok := extract.ForPath(rel)
	if !ok {
		return false
	}
	for _, enabled := range r.Cfg.Languages {
		if strings.EqualFold(enabled, string(l)) {
			return true
		}
	}
	return false
}

// hashAll computes content hashes for all files in parallel. Results map
// rel path → hex digest; read failures yield an empty digest.
func (r *Reconciler) hashAll(ctx context.Context, files []string) map[string]string {
	hashes := make([]string, len(files))

	numWorkers := runtime.NumCPU()
	if numWorkers > len(files) {
		numWorkers = len(files)
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i, rel := range files {
		g.Go(func() error {
			content, err := os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(rel)))
			if err == nil {
				hashes[i] = Hash(content)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]string, len(files))
	for i, rel := range files {
		out[rel] = hashes[i]
	}
	return out
}
