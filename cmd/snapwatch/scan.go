package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/snapwatch/internal/engine"
	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
	"github.com/bamsammich/snapwatch/internal/ui"
)

func newScanCmd(a *app) *cobra.Command {
	var (
		opts      scanOptions
		ephemeral bool
	)

	cmd := &cobra.Command{
		Use:   "scan [ROOT...]",
		Short: "Scan each root once and report changes since its baseline",
		Long: `Scan each root once, compare it with the stored baseline, report the
differences, and store the new tree as the baseline.

The first scan of a root reports every entry as added. Files that are
still being written are held back until a later scan sees them settle.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigDefaults(cmd, a.cfg.Defaults, &opts); err != nil {
				return &exitError{code: 2, err: err}
			}
			roots, err := resolveRoots(args, a.cfg.Defaults.Roots)
			if err != nil {
				return err
			}
			output, err := ui.ParseOutput(opts.format)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			scanCfg, err := opts.scannerConfig()
			if err != nil {
				return &exitError{code: 2, err: fmt.Errorf("ignore rules: %w", err)}
			}

			st, err := a.openStore(ephemeral)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			collector := stats.NewCollector()
			slog.Debug("starting scan",
				"roots", roots,
				"db", a.dbPath,
				"ephemeral", ephemeral,
				"workers", opts.workers,
			)

			var failed int
			err = runFeed(ctx, feedConfig{
				stdout:    cmd.OutOrStdout(),
				stderr:    cmd.ErrOrStderr(),
				collector: collector,
				theme:     a.cfg.Theme,
				output:    output,
				roots:     roots,
				verbose:   a.verbose,
				quiet:     a.quiet,
				logEvents: a.logFile != "",
			}, func(ctx context.Context, events chan<- event.Event) {
				obs := engine.NewObserver(ctx, engine.ObserverConfig{
					Store:         st,
					Events:        events,
					Stats:         collector,
					Scanner:       scanCfg,
					MaxConcurrent: opts.maxConcurrent,
					Recheck:       -1,
				})
				for _, root := range roots {
					if err := obs.Trigger(root); err != nil {
						slog.Error("trigger scan", "root", root, "error", err)
					}
				}
				obs.Close()
				failed = obs.Failed()
			})
			if err != nil {
				return err
			}

			if failed > 0 {
				return &exitError{code: 1} // some cycles failed
			}
			return nil
		},
	}

	addScanFlags(cmd.Flags(), &opts)
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep baselines in memory only (every entry is reported as added)")
	return cmd
}
