// Package cfgprobe provides toolchain feature detection for build scripts.
//
// This package determines which of a fixed set of compiler features are
// usable by the rustc that will build a crate, and emits cfg flags that
// downstream code uses to select fallback code paths. Version numbers
// self-reported by pre-release compilers are not trusted at the boundary
// release: there, a minimal snippet is trial-compiled instead.
//
// # API Model
//
// cfgprobe exposes two API families:
//   - [Probe]/[ProbeWith] evaluate the descriptor table and return a [Report]
//   - [Flags]/[WriteDirectives] turn a report into build-system directives
//
// [Check] validates a report against [Requirement] items for operator tooling.
//
// # Evaluation tiers
//
// Each [Descriptor] is evaluated once, in this order:
//   - overridden by the invoker: unsupported, no compile
//   - version unknown (degraded mode): unsupported, no compile
//   - version at or above Stable: supported, no compile
//   - version equal to Boundary: supported iff the snippet compiles
//   - otherwise: unsupported, no compile
//
// Direct descriptors skip the version tiers and are always trial-compiled,
// including in degraded mode.
//
// # Build script usage
//
//	cfg := cfgprobe.DefaultConfig()
//	cfg.ApplyEnv(os.LookupEnv)
//	drv := cfgprobe.NewRustcDriver(cfg, zerolog.Nop())
//	overrides, _ := cfg.OverrideFeatures()
//	r, err := cfgprobe.ProbeWith(ctx, drv,
//	    cfgprobe.WithTarget(cfg.Target),
//	    cfgprobe.WithOverrides(overrides...),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfgprobe.WriteDirectives(os.Stdout, cfg.Prefix, cfgprobe.Flags(r, cfg.Prefix), r.Warnings)
//
// # Flags
//
// Flags have inverted polarity: they only signal that a capability is
// absent. A toolchain supporting everything emits no feature flags at all.
// Target flags are emitted for wasm targets only.
package cfgprobe
