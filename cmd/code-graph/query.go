package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nishanttri/code-graph/internal/graph"
	"github.com/nishanttri/code-graph/internal/store"
)

func newQueryCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "query <stats|file|search|refs|callers|callees|type> [arg]",
		Short: "Run read-only projections over the graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, _, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			sub := args[0]
			arg := ""
			if len(args) > 1 {
				arg = args[1]
			}

			switch sub {
			case "stats":
				return queryStats(st, asJSON)
			case "file":
				if arg == "" {
					return errors.New("query file requires a path")
				}
				return queryFile(st, arg, asJSON)
			case "search":
				if arg == "" {
					return errors.New("query search requires a term")
				}
				return querySearch(st, arg, asJSON)
			case "refs":
				if arg == "" {
					return errors.New("query refs requires a symbol")
				}
				return queryRefs(st, arg, asJSON)
			case "callers", "callees":
				if arg == "" {
					return fmt.Errorf("query %s requires a symbol", sub)
				}
				return queryCalls(st, sub, arg, asJSON)
			case "type":
				if arg == "" {
					return errors.New("query type requires a node type")
				}
				return queryType(st, arg, asJSON)
			default:
				return fmt.Errorf("unknown query: %s", sub)
			}
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw JSON")
	cmd.Flags().String("project", "", "project root (default: working directory)")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printNodes(nodes []*graph.Node) {
	for _, n := range nodes {
		fmt.Printf("  [%s] %-30s %s:%d\n", n.Type, n.Name, n.FilePath, n.LineStart)
	}
}

func queryStats(st *store.Store, asJSON bool) error {
	stats, err := st.GetStats()
	if err != nil {
		return err
	}
	resolution, err := st.GetResolutionStats()
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(map[string]any{"stats": stats, "resolution": resolution})
	}
	fmt.Printf("files: %d  nodes: %d  edges: %d\n", stats.TotalFiles, stats.TotalNodes, stats.TotalEdges)
	fmt.Printf("resolved: %d  unresolved: %d\n", resolution.Resolved, resolution.Unresolved)
	for typ, count := range stats.ByType {
		fmt.Printf("  %-12s %d\n", typ, count)
	}
	for l, count := range stats.ByLanguage {
		fmt.Printf("  %-12s %d\n", l, count)
	}
	return nil
}

func queryFile(st *store.Store, path string, asJSON bool) error {
	fc, err := st.GetFileContext(path)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(map[string]any{
			"file": path, "symbols": fc.Nodes,
			"incoming": fc.Incoming, "outgoing": fc.Outgoing,
		})
	}
	fmt.Printf("%s: %d symbols, %d incoming, %d outgoing\n",
		path, len(fc.Nodes), len(fc.Incoming), len(fc.Outgoing))
	printNodes(fc.Nodes)
	return nil
}

func querySearch(st *store.Store, term string, asJSON bool) error {
	nodes, err := st.SearchByName(term, 100)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(nodes)
	}
	fmt.Printf("%d match(es)\n", len(nodes))
	printNodes(nodes)
	return nil
}

func queryRefs(st *store.Store, symbol string, asJSON bool) error {
	nodes, err := st.SearchByName(symbol, 100)
	if err != nil {
		return err
	}
	type ref struct {
		Definition *graph.Node   `json:"definition"`
		Usages     []*graph.Node `json:"usages"`
	}
	var refs []ref
	for _, n := range nodes {
		if n.Name != symbol && graph.MemberName(n.Name) != symbol {
			continue
		}
		edges, err := st.EdgesByTarget(n.ID)
		if err != nil {
			return err
		}
		var usages []*graph.Node
		for _, e := range edges {
			if e.Type == graph.EdgeContains {
				continue
			}
			src, err := st.GetNode(e.SourceID)
			if err != nil || src == nil {
				continue
			}
			usages = append(usages, src)
		}
		refs = append(refs, ref{Definition: n, Usages: usages})
	}
	if asJSON {
		return printJSON(refs)
	}
	for _, r := range refs {
		fmt.Printf("[%s] %s  %s:%d  (%d usages)\n",
			r.Definition.Type, r.Definition.Name,
			r.Definition.FilePath, r.Definition.LineStart, len(r.Usages))
		printNodes(r.Usages)
	}
	return nil
}

func queryCalls(st *store.Store, direction, symbol string, asJSON bool) error {
	nodes, err := st.SearchByName(symbol, 100)
	if err != nil {
		return err
	}
	var fn *graph.Node
	for _, n := range nodes {
		if n.Name != symbol && graph.MemberName(n.Name) != symbol {
			continue
		}
		switch n.Type {
		case graph.NodeFunction, graph.NodeMethod, graph.NodeEndpoint:
			fn = n
		}
		if fn != nil {
			break
		}
	}
	if fn == nil {
		return fmt.Errorf("no function or method named %q", symbol)
	}

	var related []*graph.Node
	if direction == "callers" {
		related, err = st.ResolvedCallersOf(fn.ID)
	} else {
		related, err = st.ResolvedCalleesOf(fn.ID)
	}
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(map[string]any{"function": fn, direction: related})
	}
	fmt.Printf("[%s] %s  %s:%d\n", fn.Type, fn.Name, fn.FilePath, fn.LineStart)
	fmt.Printf("%s (%d):\n", direction, len(related))
	printNodes(related)
	return nil
}

func queryType(st *store.Store, typ string, asJSON bool) error {
	nodes, err := st.GetByType(graph.NodeType(typ))
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(nodes)
	}
	fmt.Printf("%d node(s) of type %s\n", len(nodes), typ)
	printNodes(nodes)
	return nil
}
