// Package main provides the CLI entry point for jsonview.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/luisOO/json-view/internal/config"
	"github.com/luisOO/json-view/internal/logging"
	"github.com/luisOO/json-view/internal/search"
	"github.com/luisOO/json-view/internal/tree"
	"github.com/luisOO/json-view/internal/viewer"
)

var version = "dev"

func main() {
	var (
		cfgPath  string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:     "jsonview",
		Short:   "Navigate large JSON documents without loading them whole",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level")

	open := func(path string) (*viewer.Session, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		log := logging.New(cfg.Log.Level, cfg.Log.Console)
		return viewer.Open(path, cfg, log)
	}

	statsCmd := &cobra.Command{
		Use:   "stats [file]",
		Short: "Print structure statistics for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			start := time.Now()
			info, err := s.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("nodes:     %d\n", info.TotalNodes)
			fmt.Printf("objects:   %d\n", info.Objects)
			fmt.Printf("arrays:    %d\n", info.Arrays)
			fmt.Printf("strings:   %d\n", info.Strings)
			fmt.Printf("numbers:   %d\n", info.Numbers)
			fmt.Printf("booleans:  %d\n", info.Bools)
			fmt.Printf("nulls:     %d\n", info.Nulls)
			fmt.Printf("max depth: %d\n", info.MaxDepth)
			fmt.Printf("analyzed in %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	treeCmd := &cobra.Command{
		Use:   "tree [file]",
		Short: "Print the document tree to a bounded depth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			depth, _ := cmd.Flags().GetInt("depth")
			limit, _ := cmd.Flags().GetInt("limit")

			s, err := open(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			return printTree(cmd.Context(), s, s.Root(), 0, depth, limit)
		},
	}
	treeCmd.Flags().Int("depth", 2, "how many levels to expand")
	treeCmd.Flags().Int("limit", 50, "children shown per node")

	searchCmd := &cobra.Command{
		Use:   "search [file] [query]",
		Short: "Search keys, values and paths of a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := search.Options{}
			opts.Regex, _ = cmd.Flags().GetBool("regex")
			opts.Wildcard, _ = cmd.Flags().GetBool("wildcard")
			opts.Fuzzy, _ = cmd.Flags().GetBool("fuzzy")
			opts.CaseSensitive, _ = cmd.Flags().GetBool("case-sensitive")
			opts.Keys, _ = cmd.Flags().GetBool("keys")
			opts.Values, _ = cmd.Flags().GetBool("values")
			opts.Paths, _ = cmd.Flags().GetBool("paths")
			opts.Limit, _ = cmd.Flags().GetInt("limit")
			expand, _ := cmd.Flags().GetInt("expand-depth")

			s, err := open(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			// Only materialized nodes are searchable, so open the document
			// to the requested depth before the query runs.
			if err := expandToDepth(cmd.Context(), s, s.Root(), expand); err != nil {
				return err
			}

			results, err := s.Search(cmd.Context(), args[1], opts)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%-6s %-40s %s\n", r.Category, r.Path, r.Context)
			}
			fmt.Printf("%d match(es)\n", len(results))
			return nil
		},
	}
	searchCmd.Flags().Bool("regex", false, "treat the query as a regular expression")
	searchCmd.Flags().Bool("wildcard", false, "treat the query as a glob pattern (* and ?)")
	searchCmd.Flags().Bool("fuzzy", false, "fuzzy subsequence matching")
	searchCmd.Flags().Bool("case-sensitive", false, "match case exactly")
	searchCmd.Flags().Bool("keys", false, "search keys only")
	searchCmd.Flags().Bool("values", false, "search values only")
	searchCmd.Flags().Bool("paths", false, "search paths only")
	searchCmd.Flags().Int("limit", 0, "maximum results (0 = configured default)")
	searchCmd.Flags().Int("expand-depth", 3, "levels to materialize before searching")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(searchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printTree(ctx context.Context, s *viewer.Session, n *tree.Node, depth, maxDepth, limit int) error {
	for i := 0; i < depth; i++ {
		fmt.Print("  ")
	}
	if n.Path.IsRoot() {
		fmt.Printf("%s %s\n", n.Key, n.Display)
	} else {
		fmt.Printf("%s: %s\n", n.Key, n.Display)
	}

	if depth >= maxDepth || !n.CanExpand() {
		return nil
	}
	children, err := s.Expand(ctx, n.Path)
	if err != nil {
		return err
	}
	shown := children
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, c := range shown {
		if err := printTree(ctx, s, c, depth+1, maxDepth, limit); err != nil {
			return err
		}
	}
	if len(shown) < n.ChildCount {
		for i := 0; i <= depth; i++ {
			fmt.Print("  ")
		}
		fmt.Printf("… %d more\n", n.ChildCount-len(shown))
	}
	return nil
}

func expandToDepth(ctx context.Context, s *viewer.Session, n *tree.Node, depth int) error {
	if depth <= 0 || !n.CanExpand() {
		return nil
	}
	children, err := s.Expand(ctx, n.Path)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := expandToDepth(ctx, s, c, depth-1); err != nil {
			return err
		}
	}
	return nil
}
