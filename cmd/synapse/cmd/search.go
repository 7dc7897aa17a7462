package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuanArchive/synapse-ai-context/internal/search"
	"github.com/YuanArchive/synapse-ai-context/internal/ui"
)

type searchOptions struct {
	limit  int
	depth  int
	format string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	opts := searchOptions{depth: -1}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase with hybrid retrieval.

Vector similarity finds the seed documents; the dependency graph then
pulls in their callers and callees, and both signals are blended into
one ranking.

Examples:
  synapse search "password hashing"
  synapse search "request handler" --limit 10
  synapse search "db connection" --depth 0   # vector only
  synapse search "auth flow" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().IntVarP(&opts.depth, "depth", "d", -1, "Graph expansion depth (0 disables expansion)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	out := ui.New(cmd.OutOrStdout())

	comps, err := openComponents(true)
	if err != nil {
		return err
	}
	defer comps.Close()

	if err := requireIndex(comps.synapseDir); err != nil {
		return err
	}

	searcher, err := search.New(search.Dependencies{
		Store:  comps.store,
		Graph:  comps.graph,
		Root:   comps.root,
		Config: comps.cfg,
	})
	if err != nil {
		return err
	}

	results, err := searcher.Search(cmd.Context(), query, opts.limit, opts.depth)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		out.Printf("no results for %q\n", query)
		return nil
	}

	for i, r := range results {
		out.Printf("%d. %s  %s  %s\n",
			i+1, out.Path(r.Path), out.Score(r.Score), out.Dim(relationLabel(r)))
		if name, ok := r.Meta["name"]; ok && name != "" {
			out.Printf("   %s\n", out.Dim("symbol "+name))
		}
		if snippet := firstLine(r.Text); snippet != "" {
			out.Printf("   %s\n", snippet)
		}
	}
	return nil
}

func relationLabel(r search.Result) string {
	if r.Relation == search.RelationDirect {
		return r.Relation
	}
	return fmt.Sprintf("%s (depth %d)", r.Relation, r.Depth)
}

func firstLine(text string) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if len(line) > 100 {
		line = line[:100] + "..."
	}
	return line
}
