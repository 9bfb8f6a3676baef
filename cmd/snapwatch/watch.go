package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bamsammich/snapwatch/internal/config"
	"github.com/bamsammich/snapwatch/internal/engine"
	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/stats"
	"github.com/bamsammich/snapwatch/internal/ui"
	"github.com/bamsammich/snapwatch/internal/watch"
)

// watchOptions are the trigger flags of the watch command.
type watchOptions struct {
	metricsAddr  string
	debounce     time.Duration
	minInterval  time.Duration
	pollInterval time.Duration
}

func (w *watchOptions) applyConfig(cmd *cobra.Command, defaults config.DefaultsConfig) error {
	for _, d := range []struct {
		dst  *time.Duration
		src  *string
		flag string
	}{
		{flag: "debounce", dst: &w.debounce, src: defaults.Debounce},
		{flag: "min-rescan-interval", dst: &w.minInterval, src: defaults.MinRescanInterval},
		{flag: "poll-interval", dst: &w.pollInterval, src: defaults.PollInterval},
	} {
		if cmd.Flags().Changed(d.flag) || d.src == nil {
			continue
		}
		v, err := config.Duration(d.src)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.flag, err)
		}
		*d.dst = v
	}
	return nil
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		opts  scanOptions
		wopts watchOptions
	)

	cmd := &cobra.Command{
		Use:   "watch [ROOT...]",
		Short: "Scan each root, then rescan whenever it changes",
		Long: `Scan each root once, then keep watching it. File-system notifications
schedule a rescan of the affected root after a short debounce window; no
root is rescanned more often than --min-rescan-interval. Set
--poll-interval to also rescan on a fixed period.

Runs until interrupted (or until q is pressed in the TUI).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigDefaults(cmd, a.cfg.Defaults, &opts); err != nil {
				return &exitError{code: 2, err: err}
			}
			if err := wopts.applyConfig(cmd, a.cfg.Defaults); err != nil {
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

			st, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			collector := stats.NewCollector()
			metrics := stats.NewMetrics(collector)

			if wopts.metricsAddr != "" {
				srv, err := serveMetrics(ctx, wopts.metricsAddr, metrics)
				if err != nil {
					return &exitError{code: 2, err: err}
				}
				defer srv.Close()
			}

			slog.Debug("starting watch",
				"roots", roots,
				"db", a.dbPath,
				"debounce", wopts.debounce,
				"min_rescan_interval", wopts.minInterval,
				"poll_interval", wopts.pollInterval,
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
					Metrics:       metrics,
					Scanner:       scanCfg,
					MaxConcurrent: opts.maxConcurrent,
					Recheck:       opts.recheckInterval(),
				})
				defer func() {
					obs.Close()
					failed = obs.Failed()
				}()

				w, err := watch.New(watch.Config{
					Target:       obs,
					Filter:       scanCfg.Filter,
					Roots:        roots,
					Debounce:     wopts.debounce,
					MinInterval:  wopts.minInterval,
					PollInterval: wopts.pollInterval,
					Initial:      true,
				})
				if err != nil {
					slog.Error("start watcher", "error", err)
					return
				}
				if err := w.Run(ctx); err != nil {
					slog.Error("watcher stopped", "error", err)
				}
			})
			if err != nil {
				return err
			}

			if failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	addScanFlags(cmd.Flags(), &opts)
	cmd.Flags().DurationVar(&wopts.debounce, "debounce", watch.DefaultDebounce, "gather notifications for this long before rescanning")
	cmd.Flags().DurationVar(&wopts.minInterval, "min-rescan-interval", watch.DefaultMinInterval, "never rescan a root more often than this (negative disables)")
	cmd.Flags().DurationVar(&wopts.pollInterval, "poll-interval", 0, "also rescan every root on this period (0 disables)")
	cmd.Flags().StringVar(&wopts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on ADDR (e.g. :9120)")
	return cmd
}

// serveMetrics exposes the collector on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, metrics *stats.Metrics) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}
