package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/snapwatch/internal/config"
	"github.com/bamsammich/snapwatch/internal/store"
	"github.com/bamsammich/snapwatch/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// app holds state shared by every subcommand.
type app struct {
	cfg        config.Config
	logCloser  io.Closer
	configPath string
	dbPath     string
	logFile    string
	verbose    bool
	quiet      bool
}

func run(args []string) int {
	a := &app{}
	defer a.teardown()

	root := newRootCmd(a)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.err != nil {
				fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", exitErr.err)
			}
			return exitErr.code
		}
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 2
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "snapwatch",
		Short: "Track directory trees and report what changed between scans",
		Long: `snapwatch keeps a snapshot of each observed directory tree and reports
the files and directories that were added, removed, renamed, resized,
modified, or finished copying since the previous scan.

Run "snapwatch scan ROOT" for a one-off comparison against the stored
baseline, or "snapwatch watch ROOT" to rescan whenever the tree changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "snapwatch %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.StringVar(&a.logFile, "log", "", "write structured JSON log to FILE")
	pf.StringVar(&a.dbPath, "db", "", "baseline database path (default: $XDG_STATE_HOME/snapwatch/baselines.db)")
	pf.StringVar(&a.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/snapwatch/config.toml)")

	rootCmd.AddCommand(
		newScanCmd(a),
		newWatchCmd(a),
		newShowCmd(a),
		newForgetCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newDocsCmd(),
	)
	return rootCmd
}

// setup loads the config file and installs the default logger.
func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
		if err != nil {
			return &exitError{code: 2, err: fmt.Errorf("load config: %w", err)}
		}
	} else if a.cfg, err = config.Load(); err != nil {
		slog.Warn("failed to load config", "error", err)
	}

	if !cmd.Flags().Changed("db") && a.cfg.Defaults.DB != nil {
		a.dbPath = *a.cfg.Defaults.DB
	}
	if a.dbPath == "" {
		a.dbPath = store.DefaultPath()
	}

	return a.setupLogging(cmd.ErrOrStderr())
}

func (a *app) setupLogging(stderr io.Writer) error {
	logLevel := slog.LevelInfo
	switch {
	case a.verbose:
		logLevel = slog.LevelDebug
	case a.quiet:
		logLevel = slog.LevelWarn
	}
	textHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	var logHandler slog.Handler = textHandler
	if a.logFile != "" {
		lf, err := os.Create(a.logFile)
		if err != nil {
			return &exitError{code: 2, err: fmt.Errorf("open log file: %w", err)}
		}
		a.logCloser = lf
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return nil
}

func (a *app) teardown() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// exitError carries a process exit code. A non-nil err is printed first.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }
