package cfgprobe

import (
	"fmt"
	"io"
	"strings"
)

// DefaultPrefix is the flag name prefix used when none is configured.
const DefaultPrefix = "tokio"

// Flag is a cfg name emitted to the build system. Flags only ever signal
// the absence of a capability: a toolchain that supports everything emits
// nothing, so downstream code defaults to the modern path.
type Flag string

// FeatureFlag returns the flag signalling that f is unavailable.
func FeatureFlag(prefix string, f Feature) Flag {
	return Flag(prefix + "_no_" + f.CfgName())
}

// Target flag suffixes.
const (
	wasmSuffix        = "_wasm"
	wasiSuffix        = "_wasi_wasmedge"
	wasmNotWasiSuffix = "_wasm_not_wasi"
)

// TargetFlags returns the flags for a target class. Native emits none.
func TargetFlags(prefix string, c TargetClass) []Flag {
	switch c {
	case TargetWasmWasi:
		return []Flag{Flag(prefix + wasmSuffix), Flag(prefix + wasiSuffix)}
	case TargetWasmNotWasi:
		return []Flag{Flag(prefix + wasmSuffix), Flag(prefix + wasmNotWasiSuffix)}
	default:
		return nil
	}
}

// Flags returns the ordered, deduplicated flag set for a report: one flag
// per unsupported feature, followed by the target flags.
//
// A derived result supersedes the direct probe of the same feature.
func Flags(r *Report, prefix string) []Flag {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	var flags []Flag
	seen := map[Flag]struct{}{}
	add := func(f Flag) {
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		flags = append(flags, f)
	}

	for _, res := range append(append([]ProbeResult(nil), r.Results...), r.Derived...) {
		effective, _ := r.Lookup(res.Feature)
		if !effective.Supported {
			add(FeatureFlag(prefix, res.Feature))
		}
	}
	for _, f := range TargetFlags(prefix, r.TargetClass) {
		add(f)
	}
	return flags
}

// WriteDirectives writes one `cargo:rustc-cfg=` line per flag and one
// `cargo:warning=` line per warning.
func WriteDirectives(w io.Writer, prefix string, flags []Flag, warnings []string) error {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	for _, msg := range warnings {
		// Directives are line-oriented; a multi-line warning would leak
		// its tail to the build output as garbage.
		msg = strings.ReplaceAll(msg, "\n", " ")
		if _, err := fmt.Fprintf(w, "cargo:warning=%s: %s\n", prefix, msg); err != nil {
			return err
		}
	}
	for _, f := range flags {
		if _, err := fmt.Fprintf(w, "cargo:rustc-cfg=%s\n", f); err != nil {
			return err
		}
	}
	return nil
}

// ParseRustflagOverrides scans rustflags for `--cfg <prefix>_no_<feature>`
// (or `--cfg=...`) and returns the features they force-disable. Cfgs that
// do not name a known feature are ignored.
func ParseRustflagOverrides(flags []string, prefix string) []Feature {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	var cfgs []string
	for i := 0; i < len(flags); i++ {
		arg := flags[i]
		switch {
		case arg == "--cfg" && i+1 < len(flags):
			cfgs = append(cfgs, flags[i+1])
			i++
		case strings.HasPrefix(arg, "--cfg="):
			cfgs = append(cfgs, strings.TrimPrefix(arg, "--cfg="))
		}
	}

	var out []Feature
	seen := map[Feature]struct{}{}
	for _, c := range cfgs {
		name, ok := strings.CutPrefix(strings.TrimSpace(c), prefix+"_no_")
		if !ok {
			continue
		}
		f, err := ParseFeature(name)
		if err != nil {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
