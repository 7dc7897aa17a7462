// Package cmd provides the CLI commands for synapse.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuanArchive/synapse-ai-context/internal/logging"
	"github.com/YuanArchive/synapse-ai-context/pkg/version"
)

var (
	flagRoot  string
	flagDebug bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the synapse CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synapse",
		Short: "Incremental code indexing and graph-aware retrieval",
		Long: `Synapse builds a local index of your codebase: a dependency graph
of files and symbols plus an embedding index of their content.
Searches blend vector similarity with graph proximity, so results
include not just matching code but the code it calls and the code
that calls it.

State lives in the .synapse directory at your project root.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("synapse version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&flagRoot, "root", "r", ".", "Project root directory")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging to .synapse/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRelatedCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(*cobra.Command, []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	level := "info"
	if flagDebug {
		level = "debug"
	}
	cleanup, err := logging.SetupDefault(root, level)
	if err != nil {
		// Logging is never worth failing the command for.
		return nil
	}
	loggingCleanup = cleanup
	return nil
}

func projectRoot() (string, error) {
	root := flagRoot
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
