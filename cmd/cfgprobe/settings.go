package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/leodido/cfgprobe"
	"github.com/rs/zerolog"
)

// settings are the flags every probing subcommand shares.
type settings struct {
	configPath string
	rustc      string
	target     string
	prefix     string
	disable    string
	logLevel   string
}

// resolveConfig layers defaults, the config file, the environment and
// finally command-line flags, in that order.
func resolveConfig(s settings, lookup func(string) (string, bool)) (*cfgprobe.Config, error) {
	cfg := cfgprobe.DefaultConfig()

	path := s.configPath
	if path == "" {
		found, ok, err := cfgprobe.FindConfig(".")
		if err != nil {
			return nil, err
		}
		if ok {
			path = found
		}
	}
	if path != "" {
		loaded, err := cfgprobe.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.ApplyEnv(lookup)

	if err := s.apply(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply overlays the command-line flags onto cfg.
func (s settings) apply(cfg *cfgprobe.Config) error {
	if s.rustc != "" {
		cfg.Rustc = s.rustc
	}
	if s.target != "" {
		cfg.Target = s.target
	}
	if s.prefix != "" {
		cfg.Prefix = s.prefix
	}
	if s.logLevel != "" {
		cfg.LogLevel = s.logLevel
	}
	if s.disable != "" {
		features, err := parseFeatureRequirements(s.disable)
		if err != nil {
			return err
		}
		for _, f := range features {
			cfg.Overrides = append(cfg.Overrides, f.String())
		}
	}
	return nil
}

// newLogger returns a stderr logger. Stdout is reserved for directives.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "cfgprobe").Logger()
}

// fallbackConfig is used by emit when the configuration is unusable: the
// probe still runs with defaults, the environment and every flag that
// validates on its own, so the build proceeds with the invoker's settings.
func fallbackConfig(s settings, lookup func(string) (string, bool)) *cfgprobe.Config {
	cfg := cfgprobe.DefaultConfig()
	cfg.ApplyEnv(lookup)

	if s.rustc != "" {
		cfg.Rustc = s.rustc
	}
	if s.target != "" {
		cfg.Target = s.target
	}
	if strings.TrimSpace(s.prefix) != "" {
		cfg.Prefix = s.prefix
	}
	if _, err := zerolog.ParseLevel(s.logLevel); s.logLevel != "" && err == nil {
		cfg.LogLevel = s.logLevel
	}
	for _, name := range strings.Split(s.disable, ",") {
		if f, err := cfgprobe.ParseFeature(name); err == nil {
			cfg.Overrides = append(cfg.Overrides, f.String())
		}
	}
	return cfg
}

func validateFormat(format string, allowed ...string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		return allowed[0], nil
	}
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q (must be %s)", format, strings.Join(allowed, " or "))
}
