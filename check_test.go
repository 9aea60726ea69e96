package cfgprobe

import (
	"errors"
	"strings"
	"testing"
)

func TestCheck(t *testing.T) {
	r := &Report{
		Version: rustc(1, 62, 0),
		Results: []ProbeResult{
			{Feature: FeatureConstThreadLocal, Supported: true, Method: MethodVersion},
			{Feature: FeatureTargetHasAtomic, Supported: true, Method: MethodVersion},
			{Feature: FeatureConstMutexNew, Supported: false, Method: MethodBelow},
		},
	}

	t.Run("all satisfied", func(t *testing.T) {
		if err := Check(r, FeatureConstThreadLocal, FeatureTargetHasAtomic); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})

	t.Run("no requirements", func(t *testing.T) {
		if err := Check(r); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})

	t.Run("first unsupported is reported", func(t *testing.T) {
		err := Check(r, FeatureConstThreadLocal, FeatureConstMutexNew)
		var fe *FeatureError
		if !errors.As(err, &fe) {
			t.Fatalf("Check() error = %v, want *FeatureError", err)
		}
		if fe.Feature != "const-mutex-new" {
			t.Errorf("Feature = %q", fe.Feature)
		}
		if !strings.Contains(fe.Reason, "requires rustc 1.64") {
			t.Errorf("Reason = %q", fe.Reason)
		}
	})

	t.Run("not probed", func(t *testing.T) {
		err := Check(r, FeatureAsFd)
		var fe *FeatureError
		if !errors.As(err, &fe) || fe.Reason != "feature was not probed" {
			t.Errorf("Check() error = %v", err)
		}
	})

	t.Run("nil report", func(t *testing.T) {
		if err := Check(nil, FeatureAsFd); err == nil {
			t.Error("expected error for nil report")
		}
	})
}

func TestCheck_FeatureGroup(t *testing.T) {
	r := &Report{
		Results: []ProbeResult{
			{Feature: FeatureConstThreadLocal, Supported: true},
			{Feature: FeatureAsFd, Supported: true},
		},
	}
	group := FeatureGroup{FeatureConstThreadLocal, nil, FeatureGroup{FeatureAsFd, FeatureConstThreadLocal}}
	if err := Check(r, group); err != nil {
		t.Errorf("Check() error = %v", err)
	}

	rs := normalizeRequirements([]Requirement{group, FeatureAsFd})
	if len(rs.features) != 2 {
		t.Errorf("normalized features = %v, want 2 entries", rs.features)
	}
}

func TestCheck_WrapsCompileError(t *testing.T) {
	cause := &CompileError{Stderr: "error[E0433]: failed to resolve", Err: errors.New("exit status 1")}
	r := &Report{
		Version: Version{Major: 1, Minor: 63, Channel: "nightly"},
		Results: []ProbeResult{{Feature: FeatureAsFd, Method: MethodTrial, Error: cause}},
	}

	err := Check(r, FeatureAsFd)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Check() error = %v, want wrapped *CompileError", err)
	}
	if !strings.Contains(err.Error(), "predates the feature") {
		t.Errorf("error %q missing diagnosis", err)
	}
}

func TestReport_Diagnose(t *testing.T) {
	tests := []struct {
		name   string
		report *Report
		f      Feature
		want   string
	}{
		{
			name:   "supported",
			report: &Report{Results: []ProbeResult{{Feature: FeatureAsFd, Supported: true}}},
			f:      FeatureAsFd,
			want:   "supported",
		},
		{
			name:   "override",
			report: &Report{Results: []ProbeResult{{Feature: FeatureAsFd, Method: MethodOverride}}},
			f:      FeatureAsFd,
			want:   "disabled by override",
		},
		{
			name: "degraded",
			report: &Report{
				VersionErr: &VersionError{Err: errors.New("no rustc")},
				Results:    []ProbeResult{{Feature: FeatureAsFd, Method: MethodDegraded}},
			},
			f:    FeatureAsFd,
			want: "toolchain version unknown",
		},
		{
			name: "below boundary",
			report: &Report{
				Version: rustc(1, 50, 0),
				Results: []ProbeResult{{Feature: FeatureConstThreadLocal, Method: MethodBelow}},
			},
			f:    FeatureConstThreadLocal,
			want: "rustc 1.50.0 is too old; requires rustc 1.60 or newer",
		},
		{
			name: "stable boundary trial failure",
			report: &Report{
				Version: rustc(1, 59, 0),
				Results: []ProbeResult{{Feature: FeatureConstThreadLocal, Method: MethodTrial}},
			},
			f:    FeatureConstThreadLocal,
			want: "trial compile failed",
		},
		{
			name: "derived",
			report: &Report{
				Derived: []ProbeResult{{Feature: FeatureAtomicU64, Method: MethodDerived}},
			},
			f:    FeatureAtomicU64,
			want: "using fallback",
		},
		{
			name:   "not probed",
			report: &Report{},
			f:      FeatureAsFd,
			want:   "feature was not probed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.report.Diagnose(tt.f)
			if !strings.Contains(got, tt.want) {
				t.Errorf("Diagnose(%s) = %q, want it to contain %q", tt.f, got, tt.want)
			}
		})
	}
}
