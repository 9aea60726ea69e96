package cfgprobe

import (
	"fmt"
	"strings"
)

// ProbeResult represents the outcome of evaluating a single feature.
type ProbeResult struct {
	Feature Feature
	// Supported indicates whether the feature is believed usable.
	Supported bool
	// Method records which evaluation tier decided the outcome.
	Method Method
	// Error carries the trial compile failure, if any. It is diagnostic
	// only: a non-nil Error always means Supported is false.
	Error error
}

// Method identifies how a [ProbeResult] was decided.
type Method int

const (
	// MethodVersion means the toolchain version is at or above the stable version.
	MethodVersion Method = iota
	// MethodTrial means a snippet was trial-compiled.
	MethodTrial
	// MethodBelow means the toolchain is older than the boundary version.
	MethodBelow
	// MethodDegraded means the toolchain version is unknown.
	MethodDegraded
	// MethodOverride means the invoker force-disabled the feature.
	MethodOverride
	// MethodDerived means the result was computed from other results.
	MethodDerived
	// MethodSkipped means no probe was needed because a derived result
	// was already decided by another feature.
	MethodSkipped
)

var methodNames = map[Method]string{
	MethodVersion:  "version",
	MethodTrial:    "trial compile",
	MethodBelow:    "below boundary",
	MethodDegraded: "degraded",
	MethodOverride: "override",
	MethodDerived:  "derived",
	MethodSkipped:  "skipped",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", m)
}

// FeatureError represents an error when a required toolchain feature is unavailable.
type FeatureError struct {
	Feature string
	Reason  string
	Err     error
}

func (e *FeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feature %s: %s: %v", e.Feature, e.Reason, e.Err)
	}
	return fmt.Sprintf("feature %s: %s", e.Feature, e.Reason)
}

func (e *FeatureError) Unwrap() error {
	return e.Err
}

// Report holds the results of a single probe run.
type Report struct {
	// Version is the resolved toolchain version. Zero when VersionErr is set.
	Version Version
	// VersionErr is non-nil when the toolchain version could not be
	// determined and the run was evaluated in degraded mode.
	VersionErr error

	// Results holds one entry per descriptor, in table order.
	Results []ProbeResult
	// Derived holds results computed from other results.
	Derived []ProbeResult

	Target      string
	TargetClass TargetClass

	// Warnings are operator-facing, non-fatal messages.
	Warnings []string
}

// Degraded reports whether the run was evaluated without a known version.
func (r *Report) Degraded() bool {
	return r.VersionErr != nil
}

// Lookup returns the result for f, searching derived results first since
// they supersede the direct probe of the same feature.
func (r *Report) Lookup(f Feature) (ProbeResult, bool) {
	for _, res := range r.Derived {
		if res.Feature == f {
			return res, true
		}
	}
	for _, res := range r.Results {
		if res.Feature == f {
			return res, true
		}
	}
	return ProbeResult{}, false
}

// Feature represents a toolchain capability evaluated by the probe engine.
type Feature int

const (
	// FeatureConstThreadLocal is const-initialized thread locals, stable since rustc 1.60.
	FeatureConstThreadLocal Feature = iota
	// FeatureTargetHasAtomic is the target_has_atomic cfg, stable since rustc 1.61.
	FeatureTargetHasAtomic
	// FeatureConstMutexNew is the const Mutex::new constructor, stable since rustc 1.64.
	FeatureConstMutexNew
	// FeatureAsFd is the AsFd family of traits, stable since rustc 1.64.
	FeatureAsFd
	// FeatureAtomicU64 is 64-bit atomic support on the target.
	FeatureAtomicU64
)

var featureNames = map[Feature]string{
	FeatureConstThreadLocal: "const-thread-local",
	FeatureTargetHasAtomic:  "target-has-atomic",
	FeatureConstMutexNew:    "const-mutex-new",
	FeatureAsFd:             "as-fd",
	FeatureAtomicU64:        "atomic-u64",
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Feature(%d)", f)
}

// CfgName returns the snake_case form used in emitted flag names.
func (f Feature) CfgName() string {
	return strings.ReplaceAll(f.String(), "-", "_")
}

// FeatureValues returns all known features in declaration order.
func FeatureValues() []Feature {
	return []Feature{
		FeatureConstThreadLocal,
		FeatureTargetHasAtomic,
		FeatureConstMutexNew,
		FeatureAsFd,
		FeatureAtomicU64,
	}
}

// FeatureNames returns the names of all known features in declaration order.
func FeatureNames() []string {
	values := FeatureValues()
	names := make([]string, 0, len(values))
	for _, f := range values {
		names = append(names, f.String())
	}
	return names
}

// ParseFeature returns the feature with the given name, case-insensitively.
// Underscores are accepted in place of dashes.
func ParseFeature(name string) (Feature, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
	for f, n := range featureNames {
		if n == normalized {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown feature %q", name)
}
