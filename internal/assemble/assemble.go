// Package assemble composes token-budgeted editing context for a target
// file: the file itself, inlined sources for its imports, dependent-file
// usage snippets, related types, and task-matched similar functions.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nishanttri/code-graph/internal/graph"
	"github.com/nishanttri/code-graph/internal/store"
)

// DefaultMaxTokens is the budget applied when the caller passes none.
const DefaultMaxTokens = 8000

// truncationIndicator marks a target file cut to fit its budget slot.
const truncationIndicator = "\n// ... [truncated to fit context budget]"

// Budget shares, applied in order against the remaining budget.
const (
	targetShare     = 0.6
	importsShare    = 0.3
	dependentsShare = 0.3
	relatedShare    = 0.5
)

// Slice is one admitted piece of context.
type Slice struct {
	Name      string `json:"name,omitempty"`
	FilePath  string `json:"filePath"`
	LineStart int    `json:"lineStart,omitempty"`
	LineEnd   int    `json:"lineEnd,omitempty"`
	Source    string `json:"source"`
	Truncated bool   `json:"truncated,omitempty"`
}

// EditingContext is the assembled result.
type EditingContext struct {
	TargetFile       *Slice  `json:"targetFile"`
	Imports          []Slice `json:"imports,omitempty"`
	Dependents       []Slice `json:"dependents,omitempty"`
	RelatedTypes     []Slice `json:"relatedTypes,omitempty"`
	SimilarFunctions []Slice `json:"similarFunctions,omitempty"`
	TokenEstimate    int     `json:"tokenEstimate"`
	MaxTokens        int     `json:"maxTokens"`
}

// EstimateTokens approximates token count as ceil(chars/4).
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// Options configures one assembly run.
type Options struct {
	Task         string
	MaxTokens    int
	IncludeTests bool
}

// Assembler builds editing context from the graph and project sources.
type Assembler struct {
	Store *store.Store
	Root  string
}

// Build assembles the context for filePath under the token budget.
func (a *Assembler) Build(filePath string, opts Options) (*EditingContext, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	ctx := &EditingContext{MaxTokens: maxTokens}
	remaining := maxTokens

	// Slot 1: the target file itself.
	target, err := a.targetSlice(filePath, int(float64(remaining)*targetShare))
	if err != nil {
		return nil, err
	}
	ctx.TargetFile = target
	remaining -= EstimateTokens(target.Source)

	fileCtx, err := a.Store.GetFileContext(filePath)
	if err != nil {
		return nil, fmt.Errorf("file context: %w", err)
	}

	// Slot 2: sources of symbols this file imports.
	ctx.Imports, remaining = a.admit(a.importSlices(fileCtx), int(float64(remaining)*importsShare), remaining)

	// Slot 3: dependent-file usage snippets.
	ctx.Dependents, remaining = a.admit(a.dependentSlices(fileCtx, filePath, opts.IncludeTests), int(float64(remaining)*dependentsShare), remaining)

	// Slot 4: related types via extends/implements/uses out-edges.
	ctx.RelatedTypes, remaining = a.admit(a.relatedTypeSlices(fileCtx), int(float64(remaining)*relatedShare), remaining)

	// Slot 5: similar functions matched by task keywords get the rest.
	if opts.Task != "" {
		ctx.SimilarFunctions, remaining = a.admit(a.similarFunctionSlices(opts.Task, filePath), remaining, remaining)
	}

	ctx.TokenEstimate = maxTokens - remaining
	return ctx, nil
}

// targetSlice reads the target file, truncating at the last newline within
// 80% of the char limit when it exceeds its slot.
func (a *Assembler) targetSlice(filePath string, budget int) (*Slice, error) {
	content, err := os.ReadFile(filepath.Join(a.Root, filepath.FromSlash(filePath)))
	if err != nil {
		return nil, fmt.Errorf("read target: %w", err)
	}
	source := string(content)
	s := &Slice{FilePath: filePath, Source: source}

	charLimit := budget * 4
	if len(source) > charLimit {
		cut := int(float64(charLimit) * 0.8)
		if cut > len(source) {
			cut = len(source)
		}
		if nl := strings.LastIndexByte(source[:cut], '\n'); nl > 0 {
			cut = nl
		}
		s.Source = source[:cut] + truncationIndicator
		s.Truncated = true
	}
	return s, nil
}

// admit greedily accepts slices while they fit the slot budget (itself
// bounded by the total remaining budget). Returns the admitted slices and
// the updated remaining total.
func (a *Assembler) admit(slices []Slice, slotBudget, remaining int) ([]Slice, int) {
	if slotBudget > remaining {
		slotBudget = remaining
	}
	var out []Slice
	for _, s := range slices {
		cost := EstimateTokens(s.Source)
		if cost == 0 || cost > slotBudget {
			continue
		}
		out = append(out, s)
		slotBudget -= cost
		remaining -= cost
	}
	return out, remaining
}

// importSlices resolves the file's outgoing resolved edges into target
// nodes in other files and returns their sources.
func (a *Assembler) importSlices(fileCtx *store.FileContext) []Slice {
	var out []Slice
	seen := map[string]bool{}
	for _, e := range fileCtx.Outgoing {
		if graph.IsRef(e.TargetID) || seen[e.TargetID] {
			continue
		}
		seen[e.TargetID] = true
		target, err := a.Store.GetNode(e.TargetID)
		if err != nil || target == nil || target.Type == graph.NodeFile {
			continue
		}
		if src := a.nodeSource(target); src != "" {
			out = append(out, Slice{
				Name:      target.Name,
				FilePath:  target.FilePath,
				LineStart: target.LineStart,
				LineEnd:   target.LineEnd,
				Source:    src,
			})
		}
	}
	return out
}

// dependentSlices returns usage snippets from files that reference this one.
func (a *Assembler) dependentSlices(fileCtx *store.FileContext, filePath string, includeTests bool) []Slice {
	var out []Slice
	seen := map[string]bool{}
	for _, e := range fileCtx.Incoming {
		src, err := a.Store.GetNode(e.SourceID)
		if err != nil || src == nil || src.FilePath == filePath {
			continue
		}
		if !includeTests && isTestPath(src.FilePath) {
			continue
		}
		if seen[src.ID] {
			continue
		}
		seen[src.ID] = true
		if text := a.nodeSource(src); text != "" {
			out = append(out, Slice{
				Name:      src.Name,
				FilePath:  src.FilePath,
				LineStart: src.LineStart,
				LineEnd:   src.LineEnd,
				Source:    text,
			})
		}
	}
	return out
}

// relatedTypeSlices returns the sources of resolved extends/implements/uses
// targets.
func (a *Assembler) relatedTypeSlices(fileCtx *store.FileContext) []Slice {
	var out []Slice
	seen := map[string]bool{}
	for _, e := range fileCtx.Outgoing {
		switch e.Type {
		case graph.EdgeExtends, graph.EdgeImplements, graph.EdgeUses:
		default:
			continue
		}
		if graph.IsRef(e.TargetID) || seen[e.TargetID] {
			continue
		}
		seen[e.TargetID] = true
		target, err := a.Store.GetNode(e.TargetID)
		if err != nil || target == nil {
			continue
		}
		if src := a.nodeSource(target); src != "" {
			out = append(out, Slice{
				Name:      target.Name,
				FilePath:  target.FilePath,
				LineStart: target.LineStart,
				LineEnd:   target.LineEnd,
				Source:    src,
			})
		}
	}
	return out
}

// similarFunctionSlices tokenises the task, keeps up to three words longer
// than three chars, and admits up to two function/method matches per word
// outside the target file.
func (a *Assembler) similarFunctionSlices(task, filePath string) []Slice {
	var words []string
	for _, w := range strings.Fields(task) {
		if len(w) > 3 {
			words = append(words, w)
		}
		if len(words) == 3 {
			break
		}
	}

	var out []Slice
	seen := map[string]bool{}
	for _, word := range words {
		nodes, err := a.Store.SearchByName(word, 0)
		if err != nil {
			continue
		}
		admitted := 0
		for _, n := range nodes {
			if admitted == 2 {
				break
			}
			if n.Type != graph.NodeFunction && n.Type != graph.NodeMethod {
				continue
			}
			if n.FilePath == filePath || seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			if src := a.nodeSource(n); src != "" {
				out = append(out, Slice{
					Name:      n.Name,
					FilePath:  n.FilePath,
					LineStart: n.LineStart,
					LineEnd:   n.LineEnd,
					Source:    src,
				})
				admitted++
			}
		}
	}
	return out
}

// nodeSource reads the node's line range from disk.
func (a *Assembler) nodeSource(n *graph.Node) string {
	if n.LineStart <= 0 || n.LineEnd < n.LineStart {
		return ""
	}
	content, err := os.ReadFile(filepath.Join(a.Root, filepath.FromSlash(n.FilePath)))
	if err != nil {
		return ""
	}
	lines := strings.Split(string(content), "\n")
	if n.LineStart > len(lines) {
		return ""
	}
	end := n.LineEnd
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[n.LineStart-1:end], "\n")
}

// isTestPath matches the conventional test-file markers.
func isTestPath(p string) bool {
	return strings.Contains(p, ".test.") ||
		strings.Contains(p, ".spec.") ||
		strings.Contains(p, "__tests__")
}
