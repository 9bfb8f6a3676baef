package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/snapwatch/internal/config"
	"github.com/bamsammich/snapwatch/internal/copytrack"
	"github.com/bamsammich/snapwatch/internal/engine"
	"github.com/bamsammich/snapwatch/internal/filter"
	"github.com/bamsammich/snapwatch/internal/platform"
	"github.com/bamsammich/snapwatch/internal/store"
)

// defaultStatTimeout bounds a single metadata lookup.
const defaultStatTimeout = 5 * time.Second

// scanOptions are the flags shared by scan and watch.
type scanOptions struct {
	format         string
	ignoreFile     string
	ignore         []string
	workers        int
	maxConcurrent  int
	settle         time.Duration
	statTimeout    time.Duration
	noCopyTracking bool
}

func addScanFlags(fs *pflag.FlagSet, o *scanOptions) {
	fs.StringVarP(&o.format, "format", "f", "auto", "output format: auto, plain, json, quiet or tui")
	fs.StringArrayVarP(&o.ignore, "ignore", "x", nil, "ignore paths matching PATTERN (repeatable; \"+ PATTERN\" re-includes)")
	fs.StringVar(&o.ignoreFile, "ignore-file", "", "read ignore rules from FILE")
	fs.IntVarP(&o.workers, "workers", "n", 0, "directory listing workers per scan (default: min(NumCPU, 8))")
	fs.IntVar(&o.maxConcurrent, "max-concurrent", 0, "roots scanned at once (default: min(NumCPU, 4))")
	fs.DurationVar(&o.settle, "settle", copytrack.DefaultSettleInterval, "treat files modified more recently than this as still copying")
	fs.DurationVar(&o.statTimeout, "stat-timeout", defaultStatTimeout, "give up on an entry whose metadata takes longer than this")
	fs.BoolVar(&o.noCopyTracking, "no-copy-tracking", false, "report files immediately, even while they are being written")
}

// applyConfigDefaults applies config file defaults for flags not explicitly
// set on the CLI. Flags the command does not define are left alone.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, o *scanOptions) error {
	unset := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && !f.Changed
	}

	if unset("workers") && defaults.Workers != nil {
		o.workers = *defaults.Workers
	}
	if unset("max-concurrent") && defaults.MaxConcurrentScans != nil {
		o.maxConcurrent = *defaults.MaxConcurrentScans
	}
	if unset("format") && defaults.Format != nil {
		o.format = *defaults.Format
	}
	if unset("ignore-file") && defaults.IgnoreFile != nil {
		o.ignoreFile = *defaults.IgnoreFile
	}
	// Config patterns come first so CLI rules can override them.
	if len(defaults.Ignore) > 0 {
		o.ignore = append(append([]string(nil), defaults.Ignore...), o.ignore...)
	}

	for _, d := range []struct {
		dst  *time.Duration
		src  *string
		flag string
	}{
		{flag: "settle", dst: &o.settle, src: defaults.SettleInterval},
		{flag: "stat-timeout", dst: &o.statTimeout, src: defaults.StatTimeout},
	} {
		if !unset(d.flag) || d.src == nil {
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

// scannerConfig builds the tree builder settings for o.
func (o *scanOptions) scannerConfig() (engine.ScannerConfig, error) {
	chain, err := filter.Build(o.ignore, o.ignoreFile)
	if err != nil {
		return engine.ScannerConfig{}, err
	}

	var policy copytrack.Policy = copytrack.Settle{Interval: o.settle}
	if o.noCopyTracking {
		policy = copytrack.Never{}
	}

	var md platform.Metadata = platform.NewLocal()
	if o.statTimeout > 0 {
		md = platform.WithTimeout(md, o.statTimeout)
	}

	cfg := engine.ScannerConfig{
		Metadata: md,
		Policy:   policy,
		Workers:  o.workers,
	}
	// Only set filter if it has rules.
	if !chain.Empty() {
		cfg.Filter = chain
	}
	return cfg, nil
}

// recheckInterval is how long watch waits before rescanning a root whose
// last cycle left files copying. Negative disables the recheck.
func (o *scanOptions) recheckInterval() time.Duration {
	if o.noCopyTracking {
		return -1
	}
	return o.settle
}

// resolveRoots returns the cleaned, de-duplicated roots named on the command
// line, or the configured roots when none are given.
func resolveRoots(args, configured []string) ([]string, error) {
	if len(args) == 0 {
		args = configured
	}
	if len(args) == 0 {
		return nil, &exitError{code: 2, err: errors.New("no roots given and none configured")}
	}
	seen := make(map[string]bool, len(args))
	roots := make([]string, 0, len(args))
	for _, arg := range args {
		root, err := store.CleanRoot(arg)
		if err != nil {
			return nil, &exitError{code: 2, err: err}
		}
		if seen[root] {
			continue
		}
		seen[root] = true
		roots = append(roots, root)
	}
	return roots, nil
}

// openStore opens the baseline database, or an in-memory store when
// ephemeral is set.
//
//nolint:ireturn // factory returns interface by design
func (a *app) openStore(ephemeral bool) (store.Store, error) {
	if ephemeral {
		return store.NewMemory(), nil
	}
	s, err := store.OpenSQLite(a.dbPath)
	if err != nil {
		return nil, &exitError{code: 2, err: err}
	}
	return s, nil
}
