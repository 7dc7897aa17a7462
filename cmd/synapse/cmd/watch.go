package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuanArchive/synapse-ai-context/internal/config"
	"github.com/YuanArchive/synapse-ai-context/internal/ui"
	"github.com/YuanArchive/synapse-ai-context/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the project and reindex on changes",
		Long: `Watch the project tree and run an incremental indexing pass after
each debounced batch of file changes. An initial pass runs at startup
so the index is fresh before watching begins.

Stops on Ctrl-C. Daemon state is written to .synapse/` + watcher.StatusFile + `.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	out := ui.New(cmd.OutOrStdout())

	comps, err := openComponents(true)
	if err != nil {
		return err
	}
	defer comps.Close()

	runner, err := newRunner(comps)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catch up before watching so the first batch starts from a
	// consistent index.
	res, err := runner.Incremental(ctx)
	if err != nil {
		return err
	}
	out.Printf("initial pass: %d changed files\n", res.Changes.TotalChanged())

	w, err := watcher.New(comps.root, watcher.Options{
		Debounce:    comps.cfg.DebounceWindow(),
		ExcludeDirs: comps.cfg.Paths.ExcludeDirs,
		Extensions:  comps.cfg.Paths.Extensions,
	}, nil)
	if err != nil {
		return err
	}

	svc := watcher.NewService(w, comps.synapseDir, func(ctx context.Context) error {
		_, err := runner.Incremental(ctx)
		return err
	}, nil)

	// Pick up .synapse.yaml edits without restarting. The running
	// watcher keeps the filters and debounce it was started with.
	svc.OnConfigChange(func() error {
		fresh, err := config.Load(comps.root)
		if err != nil {
			return err
		}
		*comps.cfg = *fresh
		return nil
	})

	out.Success("watching %s (debounce %s), Ctrl-C to stop", comps.root, comps.cfg.DebounceWindow())

	err = svc.Run(ctx)
	if errors.Is(err, context.Canceled) {
		out.Printf("stopped\n")
		return nil
	}
	return err
}
