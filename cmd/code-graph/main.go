// Command code-graph builds and serves a persistent symbol graph of a
// source repository.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nishanttri/code-graph/internal/config"
	"github.com/nishanttri/code-graph/internal/resolve"
	"github.com/nishanttri/code-graph/internal/scan"
	"github.com/nishanttri/code-graph/internal/store"
	"github.com/nishanttri/code-graph/internal/tools"
	"github.com/nishanttri/code-graph/internal/watcher"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if os.Getenv("CODE_GRAPH_DEBUG") == "true" {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "code-graph",
		Short:         "Persistent symbol graph for multi-language repositories",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newInitCmd(),
		newSyncCmd(),
		newUpdateCmd(),
		newQueryCmd(),
		newServeCmd(),
		newWatchCmd(),
		newResolveCmd(),
		newStatusCmd(),
		newLogsCmd(),
	)
	return root
}

// projectRoot is the working directory unless overridden by --project.
func projectRoot(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("project"); p != "" {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// openProject loads the config and store for an initialised project.
func openProject(cmd *cobra.Command) (*config.ProjectConfig, *store.Store, string, error) {
	root := projectRoot(cmd)
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, "", err
	}
	st, err := store.OpenProject(root)
	if err != nil {
		return nil, nil, "", err
	}
	return cfg, st, root, nil
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .code-graph/config.json in the current project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := projectRoot(cmd)
			cfg, err := config.Init(root, force)
			if err != nil {
				return err
			}
			fmt.Printf("initialised %s (languages: %s)\n",
				config.Path(root), strings.Join(cfg.Languages, ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	cmd.Flags().String("project", "", "project root (default: working directory)")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var quiet, full, skipResolve bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scan the project and reconcile the symbol graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, st, root, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if full {
				if err := st.ClearFileHashes(); err != nil {
					return fmt.Errorf("clear hashes: %w", err)
				}
			}

			rec := scan.New(st, root, cfg)
			var bar *progressbar.ProgressBar
			if !quiet && isatty.IsTerminal(os.Stderr.Fd()) {
				bar = progressbar.NewOptions(-1,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("syncing"),
					progressbar.OptionSpinnerType(14),
				)
				rec.OnFile = func(rel string) {
					_ = bar.Add(1)
					bar.Describe(rel)
				}
			}

			res, err := rec.FullSync(cmd.Context())
			if bar != nil {
				_ = bar.Finish()
				fmt.Fprintln(os.Stderr)
			}
			if err != nil {
				return err
			}

			if !quiet {
				fmt.Printf("processed %d, skipped %d, deleted %d, errors %d\n",
					res.Processed, res.Skipped, res.Deleted, res.Errors)
			}

			if !skipResolve && res.Changed() {
				rr, err := resolve.New(st).Resolve()
				if err != nil {
					return err
				}
				if !quiet {
					fmt.Printf("resolved %d, ambiguous %d, unresolved %d\n",
						rr.Resolved, rr.Ambiguous, rr.Unresolved)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress progress output")
	cmd.Flags().BoolVar(&full, "full", false, "ignore stored hashes and re-parse everything")
	cmd.Flags().BoolVar(&skipResolve, "skip-resolve", false, "skip the reference resolution pass")
	cmd.Flags().String("project", "", "project root (default: working directory)")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var file, files string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Reconcile specific files without a full scan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var paths []string
			if file != "" {
				paths = append(paths, file)
			}
			for _, p := range strings.Split(files, "\n") {
				if p = strings.TrimSpace(p); p != "" {
					paths = append(paths, p)
				}
			}
			if len(paths) == 0 {
				return errors.New("update requires --file or --files")
			}

			cfg, st, root, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rec := scan.New(st, root, cfg)
			res, err := rec.Update(cmd.Context(), paths)
			if err != nil {
				return err
			}
			fmt.Printf("processed %d, skipped %d, deleted %d, errors %d\n",
				res.Processed, res.Skipped, res.Deleted, res.Errors)

			if res.Changed() {
				rr, err := resolve.New(st).Resolve()
				if err != nil {
					return err
				}
				fmt.Printf("resolved %d, ambiguous %d, unresolved %d\n",
					rr.Resolved, rr.Ambiguous, rr.Unresolved)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "single file to update")
	cmd.Flags().StringVar(&files, "files", "", "newline-separated list of files to update")
	cmd.Flags().String("project", "", "project root (default: working directory)")
	return cmd
}

func newResolveCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Run the cross-file reference resolver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, _, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rr, err := resolve.New(st).Resolve()
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Printf("resolved %d, ambiguous %d, unresolved %d\n",
					rr.Resolved, rr.Ambiguous, rr.Unresolved)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress output")
	cmd.Flags().String("project", "", "project root (default: working directory)")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool protocol over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := projectRoot(cmd)
			if !config.Initialised(root) {
				return config.ErrNotInitialised
			}

			srv := tools.NewServer(root)
			defer srv.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().Bool("mcp", true, "serve the MCP protocol (the only supported transport)")
	cmd.Flags().String("project", "", "project root (default: working directory)")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the project and keep the graph in sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, st, root, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rec := scan.New(st, root, cfg)

			// Catch up before watching.
			if _, err := rec.FullSync(cmd.Context()); err != nil {
				return err
			}
			if _, err := resolve.New(st).Resolve(); err != nil {
				return err
			}

			w := watcher.New(root, func(ctx context.Context, paths []string) {
				res, err := rec.Update(ctx, paths)
				if err != nil {
					slog.Warn("watch.update.err", "err", err)
					return
				}
				if res.Changed() {
					if _, err := resolve.New(st).Resolve(); err != nil {
						slog.Warn("watch.resolve.err", "err", err)
					}
					if !quiet {
						fmt.Printf("updated %s\n", strings.Join(paths, ", "))
					}
				}
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if !quiet {
				fmt.Printf("watching %s\n", root)
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress output")
	cmd.Flags().String("project", "", "project root (default: working directory)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show graph totals and resolution progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, root, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.GetStats()
			if err != nil {
				return err
			}
			resolution, err := st.GetResolutionStats()
			if err != nil {
				return err
			}

			bold := color.New(color.Bold)
			bold.Printf("project: ")
			fmt.Println(root)
			bold.Printf("store:   ")
			fmt.Println(st.DBPath())
			fmt.Printf("files: %d  nodes: %d  edges: %d\n",
				stats.TotalFiles, stats.TotalNodes, stats.TotalEdges)

			pct := 0.0
			if resolution.Total > 0 {
				pct = 100 * float64(resolution.Resolved) / float64(resolution.Total)
			}
			resolved := color.GreenString("%d", resolution.Resolved)
			unresolved := color.YellowString("%d", resolution.Unresolved)
			fmt.Printf("resolution: %s resolved, %s unresolved (%.1f%%)\n",
				resolved, unresolved, pct)

			for typ, count := range stats.ByType {
				fmt.Printf("  %-12s %d\n", typ, count)
			}
			return nil
		},
	}
	cmd.Flags().String("project", "", "project root (default: working directory)")
	return cmd
}
