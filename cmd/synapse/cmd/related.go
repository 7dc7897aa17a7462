package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuanArchive/synapse-ai-context/internal/ui"
)

func newRelatedCmd() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "related <path>",
		Short: "Show files related through the dependency graph",
		Long: `Show files related to the given file, ordered by hop distance in
the dependency graph. Direct callers and callees come first, then
files reachable through shared symbols.

Examples:
  synapse related src/auth.py
  synapse related src/auth.py --depth 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelated(cmd, filepath.ToSlash(args[0]), depth)
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", 2, "Maximum hop distance")
	return cmd
}

func runRelated(cmd *cobra.Command, path string, depth int) error {
	out := ui.New(cmd.OutOrStdout())

	comps, err := openComponents(true)
	if err != nil {
		return err
	}
	defer comps.Close()

	if err := requireIndex(comps.synapseDir); err != nil {
		return err
	}

	if !comps.graph.HasNode(path) {
		return fmt.Errorf("%s is not in the index", path)
	}

	related := comps.graph.RelatedFiles(path, depth)
	if len(related) == 0 {
		out.Printf("no related files for %s within %d hops\n", path, depth)
		return nil
	}

	out.Header(fmt.Sprintf("Files related to %s", path))
	for _, p := range related {
		out.Printf("  %s\n", out.Path(p))
	}
	return nil
}
