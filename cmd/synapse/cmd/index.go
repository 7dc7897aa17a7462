package cmd

import (
	"github.com/spf13/cobra"

	"github.com/YuanArchive/synapse-ai-context/internal/index"
	"github.com/YuanArchive/synapse-ai-context/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var incremental bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the project",
		Long: `Index the project: scan the tree, extract symbols, build the
dependency graph and embedding index, and persist everything under
.synapse/.

A full pass (the default) rebuilds from scratch. With --incremental,
only files added, modified or deleted since the last pass are
processed.

Examples:
  synapse index
  synapse index --incremental
  synapse index --root ../other-project`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, incremental)
		},
	}

	cmd.Flags().BoolVarP(&incremental, "incremental", "i", false, "Only process files changed since the last pass")
	return cmd
}

func runIndex(cmd *cobra.Command, incremental bool) error {
	out := ui.New(cmd.OutOrStdout())

	comps, err := openComponents(incremental)
	if err != nil {
		return err
	}
	defer comps.Close()

	runner, err := newRunner(comps)
	if err != nil {
		return err
	}

	var res *index.Result
	if incremental {
		res, err = runner.Incremental(cmd.Context())
	} else {
		res, err = runner.Full(cmd.Context())
	}
	if err != nil {
		return err
	}

	out.Header("Indexed " + comps.root)
	if incremental && res.Changes != nil {
		out.Field("added", len(res.Changes.Added))
		out.Field("modified", len(res.Changes.Modified))
		out.Field("deleted", len(res.Changes.Deleted))
		out.Field("unchanged", len(res.Changes.Unchanged))
	} else {
		out.Field("files analyzed", res.FilesAnalyzed)
	}
	if res.FilesSkipped > 0 {
		out.Warnf("  %d files skipped (see .synapse/logs/)", res.FilesSkipped)
	}
	out.Field("documents", res.Documents)
	out.Field("graph nodes", res.GraphNodes)
	out.Field("graph edges", res.GraphEdges)
	out.Success("done in %s", res.Duration.Round(timeRound))
	return nil
}
