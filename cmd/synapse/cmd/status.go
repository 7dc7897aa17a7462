package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
	"github.com/YuanArchive/synapse-ai-context/internal/index"
	"github.com/YuanArchive/synapse-ai-context/internal/ui"
	"github.com/YuanArchive/synapse-ai-context/internal/watcher"
)

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and watcher state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

type statusReport struct {
	Root    string          `json:"root"`
	Index   *index.Summary  `json:"index,omitempty"`
	Watcher *watcher.Status `json:"watcher,omitempty"`
}

func runStatus(cmd *cobra.Command, format string) error {
	out := ui.New(cmd.OutOrStdout())

	root, err := projectRoot()
	if err != nil {
		return err
	}
	synapseDir := index.Dir(root)

	report := statusReport{Root: root}

	summary, err := index.LoadSummary(synapseDir)
	switch {
	case err == nil:
		report.Index = summary
	case synerr.HasCode(err, synerr.ErrCodeNodeNotFound):
		// Not indexed yet.
	default:
		return err
	}

	if ws, err := watcher.LoadStatus(synapseDir); err == nil {
		report.Watcher = ws
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out.Header("Project " + root)
	if report.Index == nil {
		out.Printf("not indexed, run 'synapse index' first\n")
		return nil
	}

	out.Field("status", report.Index.Status)
	if report.Index.FilesAnalyzed != nil {
		out.Field("files analyzed", *report.Index.FilesAnalyzed)
	}
	if report.Index.ChangedFiles != nil {
		out.Field("changed files", *report.Index.ChangedFiles)
	}
	out.Field("documents", report.Index.DocumentsIndexed)
	out.Field("graph nodes", report.Index.GraphNodes)
	out.Field("graph edges", report.Index.GraphEdges)
	out.Field("last pass", report.Index.UpdatedAt)

	if report.Watcher != nil {
		out.Header("Watcher")
		out.Field("status", report.Watcher.Status)
		out.Field("passes", report.Watcher.Passes)
		if report.Watcher.LastPassAt != "" {
			out.Field("last pass", report.Watcher.LastPassAt)
		}
		if report.Watcher.LastError != "" {
			out.Warnf("  last error: %s", report.Watcher.LastError)
		}
	}
	return nil
}
