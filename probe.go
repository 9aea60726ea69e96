package cfgprobe

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// probeConfig holds the configuration for a probe run.
type probeConfig struct {
	descriptors []Descriptor
	derived     []DerivedRule
	target      string
	overrides   map[Feature]struct{}
	logger      zerolog.Logger
}

// ProbeOption configures a [ProbeWith] run.
type ProbeOption func(*probeConfig)

// WithDescriptors replaces the default descriptor table.
func WithDescriptors(ds ...Descriptor) ProbeOption {
	return func(c *probeConfig) {
		c.descriptors = append([]Descriptor(nil), ds...)
	}
}

// WithDerivedRules replaces the default derived rules.
func WithDerivedRules(rules ...DerivedRule) ProbeOption {
	return func(c *probeConfig) {
		c.derived = append([]DerivedRule(nil), rules...)
	}
}

// WithTarget sets the target triple to classify.
func WithTarget(triple string) ProbeOption {
	return func(c *probeConfig) {
		c.target = triple
	}
}

// WithOverrides force-disables the given features. Overridden features are
// never trial-compiled and always report unsupported.
func WithOverrides(fs ...Feature) ProbeOption {
	return func(c *probeConfig) {
		for _, f := range fs {
			c.overrides[f] = struct{}{}
		}
	}
}

// WithLogger sets the logger used to trace tier decisions.
func WithLogger(l zerolog.Logger) ProbeOption {
	return func(c *probeConfig) {
		c.logger = l
	}
}

// Probe evaluates the default descriptor table against tc.
func Probe(ctx context.Context, tc Toolchain) (*Report, error) {
	return ProbeWith(ctx, tc)
}

// ProbeWith evaluates every descriptor exactly once against tc.
//
// Failing to resolve the toolchain version is not an error: the run is
// evaluated in degraded mode and a warning is recorded in the report. The
// only errors returned are configuration errors (nil toolchain, duplicate
// descriptors).
func ProbeWith(ctx context.Context, tc Toolchain, opts ...ProbeOption) (*Report, error) {
	cfg := &probeConfig{
		descriptors: DefaultDescriptors(),
		derived:     DefaultDerivedRules(),
		overrides:   map[Feature]struct{}{},
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if tc == nil {
		return nil, errors.New("probe: nil toolchain")
	}
	seen := make(map[Feature]struct{}, len(cfg.descriptors))
	for _, d := range cfg.descriptors {
		if _, ok := seen[d.Feature]; ok {
			return nil, fmt.Errorf("probe: duplicate descriptor for feature %s", d.Feature)
		}
		seen[d.Feature] = struct{}{}
	}

	r := &Report{
		Target:      cfg.target,
		TargetClass: ClassifyTarget(cfg.target),
	}

	v, err := ResolveVersion(ctx, tc)
	if err != nil {
		r.VersionErr = err
		r.Warnings = append(r.Warnings, fmt.Sprintf("failed to detect compiler features: %v", err))
		cfg.logger.Warn().Err(err).Msg("toolchain version unknown, probing in degraded mode")
	} else {
		r.Version = v
		cfg.logger.Debug().Stringer("version", v).Msg("resolved toolchain version")
	}

	decided := make(map[Feature]ProbeResult, len(cfg.descriptors))
	for _, d := range cfg.descriptors {
		var res ProbeResult
		switch {
		case cfg.overridden(d.Feature):
			res = ProbeResult{Feature: d.Feature, Method: MethodOverride}
		case cfg.superseded(d, decided):
			res = ProbeResult{Feature: d.Feature, Method: MethodSkipped}
		default:
			res = evaluate(ctx, tc, d, r)
		}
		cfg.logger.Debug().
			Stringer("feature", d.Feature).
			Bool("supported", res.Supported).
			Stringer("method", res.Method).
			Err(res.Error).
			Msg("evaluated feature")
		decided[d.Feature] = res
		r.Results = append(r.Results, res)
	}

	for _, rule := range cfg.derived {
		res := derive(rule, decided)
		if cfg.overridden(rule.Feature) {
			res = ProbeResult{Feature: rule.Feature, Method: MethodOverride}
		}
		r.Derived = append(r.Derived, res)
	}

	return r, nil
}

// evaluate applies the version tiers to a single descriptor.
func evaluate(ctx context.Context, tc Toolchain, d Descriptor, r *Report) ProbeResult {
	res := ProbeResult{Feature: d.Feature}

	if d.Direct {
		res.Method = MethodTrial
		res.Error = tc.Compile(ctx, d.Snippet)
		res.Supported = res.Error == nil
		return res
	}

	switch {
	case r.Degraded():
		res.Method = MethodDegraded
	case r.Version.AtLeast(d.Stable):
		res.Method = MethodVersion
		res.Supported = true
	case d.HasBoundary && r.Version.Is(d.Boundary):
		// Some pre-release compilers report the boundary version without
		// shipping the feature yet.
		res.Method = MethodTrial
		res.Error = tc.Compile(ctx, d.Snippet)
		res.Supported = res.Error == nil
	default:
		res.Method = MethodBelow
	}
	return res
}

// derive computes a derived result. The supersede feature wins when
// supported; otherwise the fallback probe decides.
func derive(rule DerivedRule, decided map[Feature]ProbeResult) ProbeResult {
	res := ProbeResult{Feature: rule.Feature, Method: MethodDerived}
	if decided[rule.Supersede].Supported {
		res.Supported = true
		return res
	}
	fb := decided[rule.Fallback]
	res.Supported = fb.Supported
	res.Error = fb.Error
	return res
}

func (c *probeConfig) overridden(f Feature) bool {
	_, ok := c.overrides[f]
	return ok
}

// superseded reports whether d is a direct probe made redundant by a
// derived rule whose supersede feature is already supported.
func (c *probeConfig) superseded(d Descriptor, decided map[Feature]ProbeResult) bool {
	if !d.Direct {
		return false
	}
	for _, rule := range c.derived {
		if rule.Fallback != d.Feature {
			continue
		}
		if res, ok := decided[rule.Supersede]; ok && res.Supported {
			return true
		}
	}
	return false
}
