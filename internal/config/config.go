package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the optional snapwatch configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Theme    ThemeConfig    `toml:"theme"`
}

// DefaultsConfig holds persistent flag defaults. Durations are strings in
// time.ParseDuration syntax.
type DefaultsConfig struct {
	DB                 *string  `toml:"db"`
	Workers            *int     `toml:"workers"`
	MaxConcurrentScans *int     `toml:"max_concurrent_scans"`
	SettleInterval     *string  `toml:"settle_interval"`
	StatTimeout        *string  `toml:"stat_timeout"`
	Debounce           *string  `toml:"debounce"`
	MinRescanInterval  *string  `toml:"min_rescan_interval"`
	PollInterval       *string  `toml:"poll_interval"`
	Format             *string  `toml:"format"`
	IgnoreFile         *string  `toml:"ignore_file"`
	Roots              []string `toml:"roots"`
	Ignore             []string `toml:"ignore"`
}

// ThemeConfig holds optional color overrides.
type ThemeConfig struct {
	Green  *string `toml:"green"`
	Blue   *string `toml:"blue"`
	Yellow *string `toml:"yellow"`
	Red    *string `toml:"red"`
	Teal   *string `toml:"teal"`
	Mauve  *string `toml:"mauve"`
	Muted  *string `toml:"muted"`
	Dim    *string `toml:"dim"`
	Bright *string `toml:"bright"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "snapwatch", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

// LoadFile reads and validates the config file at path.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Defaults.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (d DefaultsConfig) validate() error {
	for key, v := range map[string]*string{
		"settle_interval":     d.SettleInterval,
		"stat_timeout":        d.StatTimeout,
		"debounce":            d.Debounce,
		"min_rescan_interval": d.MinRescanInterval,
		"poll_interval":       d.PollInterval,
	} {
		if _, err := Duration(v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if d.Format != nil {
		switch *d.Format {
		case "plain", "json", "quiet", "tui":
		default:
			return fmt.Errorf("format: unknown presenter %q", *d.Format)
		}
	}
	for _, n := range []*int{d.Workers, d.MaxConcurrentScans} {
		if n != nil && *n < 1 {
			return fmt.Errorf("worker counts must be positive, got %d", *n)
		}
	}
	return nil
}

// Duration parses an optional duration value. A nil value parses as zero.
func Duration(v *string) (time.Duration, error) {
	if v == nil {
		return 0, nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", *v)
	}
	return d, nil
}
