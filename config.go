package cfgprobe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// ConfigFileName is the file [FindConfig] looks for.
const ConfigFileName = "cfgprobe.toml"

const (
	defaultRustc   = "rustc"
	defaultTimeout = 2 * time.Minute
)

// Environment variables read by [Config.ApplyEnv]. These are the variables
// cargo sets for build scripts.
const (
	EnvRustc                 = "RUSTC"
	EnvTarget                = "TARGET"
	EnvOutDir                = "OUT_DIR"
	EnvRustflags             = "RUSTFLAGS"
	EnvCargoEncodedRustflags = "CARGO_ENCODED_RUSTFLAGS"
)

// Config holds the settings of a probe run.
type Config struct {
	Rustc     string   `toml:"rustc" json:"rustc" yaml:"rustc"`
	Target    string   `toml:"target" json:"target" yaml:"target"`
	OutDir    string   `toml:"out_dir" json:"out_dir" yaml:"out_dir"`
	Prefix    string   `toml:"prefix" json:"prefix" yaml:"prefix"`
	RustFlags []string `toml:"rustflags" json:"rustflags" yaml:"rustflags"`
	// Overrides lists feature names to force-disable.
	Overrides []string `toml:"overrides" json:"overrides" yaml:"overrides"`
	// Timeout bounds the whole run, as a Go duration string.
	Timeout  string `toml:"timeout" json:"timeout" yaml:"timeout"`
	LogLevel string `toml:"log_level" json:"log_level" yaml:"log_level"`
}

// DefaultConfig returns a config with every default filled in.
func DefaultConfig() *Config {
	return &Config{
		Rustc:    defaultRustc,
		Prefix:   DefaultPrefix,
		Timeout:  defaultTimeout.String(),
		LogLevel: zerolog.WarnLevel.String(),
	}
}

// LoadConfig reads a TOML config file on top of [DefaultConfig].
// Unknown keys are rejected so typos don't silently fall back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FindConfig walks up from startDir looking for [ConfigFileName].
func FindConfig(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// ApplyEnv overlays build-environment variables obtained through lookup.
// Variables that are unset or empty leave the config untouched.
//
// CARGO_ENCODED_RUSTFLAGS takes precedence over RUSTFLAGS, matching cargo.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}

	if v, ok := get(EnvRustc); ok {
		c.Rustc = v
	}
	if v, ok := get(EnvTarget); ok {
		c.Target = v
	}
	if v, ok := get(EnvOutDir); ok {
		c.OutDir = v
	}
	if v, ok := get(EnvCargoEncodedRustflags); ok {
		c.RustFlags = SplitEncodedRustflags(v)
	} else if v, ok := get(EnvRustflags); ok {
		c.RustFlags = strings.Fields(v)
	}
}

// Validate checks that every field parses.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Prefix) == "" {
		return fmt.Errorf("config missing prefix")
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	for _, name := range c.Overrides {
		if _, err := ParseFeature(name); err != nil {
			return fmt.Errorf("overrides: %w", err)
		}
	}
	return nil
}

// TimeoutDuration parses Timeout. An empty value means the default.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(c.Timeout) == "" {
		return defaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", c.Timeout)
	}
	return d, nil
}

// OverrideFeatures returns the features force-disabled by the config, both
// listed explicitly and passed as `--cfg` in the rustflags.
func (c *Config) OverrideFeatures() ([]Feature, error) {
	var out []Feature
	seen := map[Feature]struct{}{}
	add := func(f Feature) {
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}

	for _, name := range c.Overrides {
		f, err := ParseFeature(name)
		if err != nil {
			return nil, fmt.Errorf("overrides: %w", err)
		}
		add(f)
	}
	for _, f := range ParseRustflagOverrides(c.RustFlags, c.Prefix) {
		add(f)
	}
	return out, nil
}

// SplitEncodedRustflags splits CARGO_ENCODED_RUSTFLAGS, which separates
// arguments with the ASCII unit separator.
func SplitEncodedRustflags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x1f")
}
