package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/leodido/cfgprobe"
	"github.com/leodido/structcli"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"
	"gopkg.in/yaml.v3"
)

// Build metadata injected via ldflags.
// When built without ldflags (e.g., plain `go build`), these remain
// at their zero values and the version command omits them gracefully.
var (
	version = ""
	commit  = ""
	date    = ""
)

// errCheckFailed signals that check already reported an unmet requirement.
var errCheckFailed = errors.New("requirements not satisfied")

func main() {
	if err := newRootCmd(os.LookupEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(lookup func(string) (string, bool)) *cobra.Command {
	common := &settings{}

	root := &cobra.Command{
		Use:   "cfgprobe",
		Short: "Toolchain feature detection for build scripts",
		Long: `cfgprobe probes the rustc that will build a crate for language and
runtime features, and emits cfg flags for the ones that are missing.

Run it from a build script with "cfgprobe emit": it reads RUSTC, TARGET,
OUT_DIR and the rustflags from the environment cargo provides, and always
exits successfully so an undetectable feature never breaks the build.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&common.configPath, "config", "c", "", "Path to a "+cfgprobe.ConfigFileName+" file (default: search upwards)")
	pf.StringVar(&common.rustc, "rustc", "", "rustc binary (default: $RUSTC or rustc)")
	pf.StringVarP(&common.target, "target", "t", "", "Target triple (default: $TARGET)")
	pf.StringVar(&common.prefix, "prefix", "", "Flag name prefix (default: "+cfgprobe.DefaultPrefix+")")
	pf.StringVarP(&common.disable, "disable", "d", "", "Comma-separated features to force-disable")
	pf.StringVar(&common.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(emitCmd(common, lookup))
	root.AddCommand(probeCmd(common, lookup))
	root.AddCommand(checkCmd(common, lookup))
	root.AddCommand(configCmd(common, lookup))
	root.AddCommand(versionCmd(common, lookup))

	return root
}

func emitCmd(common *settings, lookup func(string) (string, bool)) *cobra.Command {
	return &cobra.Command{
		Use:   "emit",
		Short: "Probe the toolchain and print cargo directives",
		Long: `Probe the toolchain and print one cargo:rustc-cfg directive per missing
feature, plus the wasm target flags. Never fails: configuration or
toolchain errors are logged and the conservative flag set is emitted.`,
		RunE: func(c *cobra.Command, args []string) error {
			return runEmit(c.Context(), c.OutOrStdout(), *common, lookup)
		},
	}
}

func runEmit(ctx context.Context, w io.Writer, s settings, lookup func(string) (string, bool)) error {
	cfg, cfgErr := resolveConfig(s, lookup)
	if cfgErr != nil {
		cfg = fallbackConfig(s, lookup)
	}
	logger := newLogger(cfg.LogLevel)
	if cfgErr != nil {
		logger.Error().Err(cfgErr).Msg("invalid configuration, probing with defaults and flags")
	}

	r, _, err := probe(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("probe failed")
		return nil
	}
	if err := cfgprobe.WriteDirectives(w, cfg.Prefix, cfgprobe.Flags(r, cfg.Prefix), r.Warnings); err != nil {
		logger.Error().Err(err).Msg("write directives")
	}
	return nil
}

// probe runs the engine against the configured rustc. It also returns the
// host triple rustc reported, empty when the version query failed.
func probe(ctx context.Context, cfg *cfgprobe.Config, logger zerolog.Logger) (*cfgprobe.Report, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, "", err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	overrides, err := cfg.OverrideFeatures()
	if err != nil {
		return nil, "", err
	}

	drv := cfgprobe.NewRustcDriver(cfg, logger)
	r, err := cfgprobe.ProbeWith(ctx, drv,
		cfgprobe.WithTarget(cfg.Target),
		cfgprobe.WithOverrides(overrides...),
		cfgprobe.WithLogger(logger),
	)
	if err != nil {
		return nil, "", err
	}
	return r, drv.Host(), nil
}

// showHost names the host triple in a report probed without a target.
// The target class stays native, so the flags are unchanged.
func showHost(r *cfgprobe.Report, host string) {
	if r.Target == "" && host != "" {
		r.Target = host
	}
}

// ProbeOptions defines flags for the probe subcommand.
type ProbeOptions struct {
	Format string `flag:"format" flagshort:"f" flagdescr:"Output format (pretty, json, yaml)"`
}

func (o *ProbeOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func probeCmd(common *settings, lookup func(string) (string, bool)) *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe all toolchain features and display results",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			format, err := validateFormat(opts.Format, "pretty", "json", "yaml")
			if err != nil {
				return err
			}
			cfg, err := resolveConfig(*common, lookup)
			if err != nil {
				return err
			}
			r, host, err := probe(c.Context(), cfg, newLogger(cfg.LogLevel))
			if err != nil {
				return err
			}
			showHost(r, host)

			out := c.OutOrStdout()
			switch format {
			case "json":
				return printJSON(out, r.View(cfg.Prefix))
			case "yaml":
				return printYAML(out, r.View(cfg.Prefix))
			}
			return renderReport(out, r, cfg.Prefix)
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// CheckOptions defines flags for the check subcommand.
type CheckOptions struct {
	Require featureRequirements `flag:"require" flagshort:"r" flagdescr:"Required features (see available features above)" flagrequired:"true" flagcustom:"true"`
	JSON    bool                `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *CheckOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *CheckOptions) DefineRequire(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureRequirements)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *CheckOptions) DecodeRequire(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}

	return parseFeatureRequirements(s)
}

// CompleteRequire completes comma-separated feature names.
func (o *CheckOptions) CompleteRequire(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	prefix := ""
	current := toComplete
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		prefix = toComplete[:i+1]
		current = toComplete[i+1:]
	}

	selected := map[string]struct{}{}
	for _, part := range strings.Split(prefix, ",") {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			selected[name] = struct{}{}
		}
	}

	var out []string
	for _, name := range cfgprobe.FeatureNames() {
		if _, ok := selected[name]; ok {
			continue
		}
		if strings.HasPrefix(name, strings.ToLower(current)) {
			out = append(out, prefix+name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

func checkCmd(common *settings, lookup func(string) (string, bool)) *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check specific toolchain feature requirements",
		Long:  checkLongDescription(),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			if len(opts.Require) == 0 {
				return fmt.Errorf("no features specified")
			}
			cfg, err := resolveConfig(*common, lookup)
			if err != nil {
				return err
			}
			r, _, err := probe(c.Context(), cfg, newLogger(cfg.LogLevel))
			if err != nil {
				return err
			}
			return reportCheck(c.OutOrStdout(), c.ErrOrStderr(), r, opts)
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func reportCheck(stdout, stderr io.Writer, r *cfgprobe.Report, opts *CheckOptions) error {
	requirements := make([]cfgprobe.Requirement, 0, len(opts.Require))
	for _, f := range opts.Require {
		requirements = append(requirements, f)
	}

	err := cfgprobe.Check(r, requirements...)
	if err != nil {
		var fe *cfgprobe.FeatureError
		if !errors.As(err, &fe) {
			return err
		}
		if opts.JSON {
			if err := printJSON(stdout, map[string]any{
				"ok":      false,
				"feature": fe.Feature,
				"reason":  fe.Reason,
			}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(stderr, "FAIL: %s: %s\n", fe.Feature, fe.Reason)
		}
		return errCheckFailed
	}

	if opts.JSON {
		return printJSON(stdout, map[string]any{"ok": true})
	}
	fmt.Fprintln(stdout, "OK: all requirements satisfied")
	return nil
}

// ConfigOptions defines flags for the config subcommand.
type ConfigOptions struct {
	Format string `flag:"format" flagshort:"f" flagdescr:"Output format (toml, json, yaml)"`
}

func (o *ConfigOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func configCmd(common *settings, lookup func(string) (string, bool)) *cobra.Command {
	opts := &ConfigOptions{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the effective configuration",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			format, err := validateFormat(opts.Format, "toml", "json", "yaml")
			if err != nil {
				return err
			}
			cfg, err := resolveConfig(*common, lookup)
			if err != nil {
				return err
			}
			return printConfig(c.OutOrStdout(), cfg, format)
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func printConfig(w io.Writer, cfg *cfgprobe.Config, format string) error {
	switch format {
	case "json":
		return printJSON(w, cfg)
	case "yaml":
		return printYAML(w, cfg)
	default:
		return toml.NewEncoder(w).Encode(cfg)
	}
}

func versionCmd(common *settings, lookup func(string) (string, bool)) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool and toolchain version",
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			if version != "" {
				fmt.Fprintf(out, "cfgprobe %s", version)
				if commit != "" {
					fmt.Fprintf(out, " (%s)", commit)
				}
				if date != "" {
					fmt.Fprintf(out, " built %s", date)
				}
				fmt.Fprintln(out)
			} else {
				fmt.Fprintln(out, "cfgprobe (dev)")
			}

			cfg, err := resolveConfig(*common, lookup)
			if err != nil {
				return err
			}
			drv := cfgprobe.NewRustcDriver(cfg, newLogger(cfg.LogLevel))
			v, err := cfgprobe.ResolveVersion(c.Context(), drv)
			if err != nil {
				fmt.Fprintf(out, "Toolchain: unknown (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "Toolchain: rustc %s (host %s)\n", v, drv.Host())
			return nil
		},
	}
}

// renderReport prints the human-readable report, colouring the verdicts
// when stdout is a terminal.
func renderReport(w io.Writer, r *cfgprobe.Report, prefix string) error {
	yes := color.New(color.FgGreen).SprintFunc()
	no := color.New(color.FgRed).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	var b strings.Builder
	for _, line := range strings.SplitAfter(r.String(), "\n") {
		switch {
		case strings.Contains(line, ": yes ["):
			line = strings.Replace(line, ": yes [", ": "+yes("yes")+" [", 1)
		case strings.Contains(line, ": no ["):
			line = strings.Replace(line, ": no [", ": "+no("no")+" [", 1)
		}
		b.WriteString(line)
	}

	flags := cfgprobe.Flags(r, prefix)
	b.WriteString("\nFlags:\n")
	if len(flags) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, f := range flags {
		fmt.Fprintf(&b, "  %s\n", warn(string(f)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func availableFeatures() string {
	return strings.Join(cfgprobe.FeatureNames(), ", ")
}

func checkLongDescription() string {
	return fmt.Sprintf(`Check that the toolchain supports all required features.
Exits with code 0 if all requirements are met, 1 if any are missing.

Available features:
%s`, formatWrappedList(cfgprobe.FeatureNames(), "  ", 80))
}

func formatWrappedList(items []string, indent string, maxWidth int) string {
	if len(items) == 0 {
		return indent + "(none)"
	}

	lines := make([]string, 0, len(items))
	line := indent
	for i, item := range items {
		token := item
		if i < len(items)-1 {
			token += ", "
		}

		if len(line)+len(token) > maxWidth && line != indent {
			lines = append(lines, strings.TrimRight(line, " "))
			line = indent + token
			continue
		}

		line += token
	}

	lines = append(lines, strings.TrimRight(line, " "))
	return strings.Join(lines, "\n")
}

type featureRequirements []cfgprobe.Feature

var featureIdentifierMap = func() map[cfgprobe.Feature][]string {
	ids := make(map[cfgprobe.Feature][]string, len(cfgprobe.FeatureValues()))
	for _, f := range cfgprobe.FeatureValues() {
		ids[f] = []string{f.String(), f.CfgName()}
	}
	return ids
}()

func (r *featureRequirements) String() string {
	names := make([]string, 0, len(*r))
	for _, f := range *r {
		names = append(names, f.String())
	}

	return strings.Join(names, ",")
}

func (r *featureRequirements) Set(input string) error {
	features, err := parseFeatureRequirements(input)
	if err != nil {
		return err
	}

	*r = append(*r, features...)
	return nil
}

func (r *featureRequirements) Type() string {
	return "feature"
}

func parseFeatureRequirements(input string) (featureRequirements, error) {
	if strings.TrimSpace(input) == "" {
		return featureRequirements{}, nil
	}

	parts := strings.Split(input, ",")
	features := make(featureRequirements, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		var feature cfgprobe.Feature
		enumValue := enumflag.New(&feature, "cfgprobe.Feature", featureIdentifierMap, enumflag.EnumCaseInsensitive)
		if err := enumValue.Set(name); err != nil {
			return nil, fmt.Errorf("unknown feature: %q (available: %s)", name, availableFeatures())
		}

		features = append(features, feature)
	}

	return features, nil
}
