package cfgprobe

import (
	"errors"
	"fmt"
)

// Check validates the specified requirements against a probe report and
// returns a *[FeatureError] for the first unsupported requirement, or nil
// if all are met.
func Check(r *Report, required ...Requirement) error {
	if r == nil {
		return errors.New("check: nil report")
	}
	rs := normalizeRequirements(required)

	for _, f := range rs.features {
		result, known := r.Lookup(f)
		if !known {
			return &FeatureError{Feature: f.String(), Reason: "feature was not probed"}
		}
		if !result.Supported {
			return &FeatureError{
				Feature: f.String(),
				Reason:  r.Diagnose(f),
				Err:     result.Error,
			}
		}
	}
	return nil
}

// Diagnose returns a reason string explaining why a feature is not
// supported and what the operator can do about it.
func (r *Report) Diagnose(f Feature) string {
	result, known := r.Lookup(f)
	if !known {
		return "feature was not probed"
	}
	if result.Supported {
		return "supported"
	}

	stable, gated := stableVersion(f)

	switch result.Method {
	case MethodOverride:
		return "disabled by override; remove it from overrides or rustflags --cfg"
	case MethodDegraded:
		return fmt.Sprintf("toolchain version unknown (%v); assuming unsupported", r.VersionErr)
	case MethodBelow:
		if gated {
			return fmt.Sprintf("rustc %s is too old; requires rustc %s or newer", r.Version, stable)
		}
	case MethodTrial:
		if gated && r.Version.Channel != "" {
			return fmt.Sprintf("rustc %s predates the feature; upgrade the %s toolchain or use rustc %s", r.Version, r.Version.Channel, stable)
		}
		return "trial compile failed; the toolchain or target does not support it"
	case MethodDerived:
		return "target lacks target_has_atomic and the trial compile failed; using fallback"
	}

	if result.Error != nil {
		return result.Error.Error()
	}
	return "not supported"
}

func stableVersion(f Feature) (MinorVersion, bool) {
	for _, d := range DefaultDescriptors() {
		if d.Feature == f && !d.Direct {
			return d.Stable, true
		}
	}
	return MinorVersion{}, false
}
