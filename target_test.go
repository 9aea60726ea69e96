package cfgprobe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassifyTarget(t *testing.T) {
	tests := []struct {
		triple    string
		want      TargetClass
		wantFlags []Flag
	}{
		{"wasm32-unknown-unknown", TargetWasmNotWasi, []Flag{"tokio_wasm", "tokio_wasm_not_wasi"}},
		{"wasm32-wasi", TargetWasmWasi, []Flag{"tokio_wasm", "tokio_wasi_wasmedge"}},
		{"wasm32-wasip1-threads", TargetWasmWasi, []Flag{"tokio_wasm", "tokio_wasi_wasmedge"}},
		{"wasm64-unknown-unknown", TargetWasmNotWasi, []Flag{"tokio_wasm", "tokio_wasm_not_wasi"}},
		{"x86_64-unknown-linux-gnu", TargetNative, nil},
		{"aarch64-apple-darwin", TargetNative, nil},
		// Only the prefix counts.
		{"x86_64-wasi-fake", TargetNative, nil},
		{"", TargetNative, nil},
	}

	for _, tt := range tests {
		t.Run(tt.triple, func(t *testing.T) {
			got := ClassifyTarget(tt.triple)
			if got != tt.want {
				t.Errorf("ClassifyTarget(%q) = %s, want %s", tt.triple, got, tt.want)
			}
			if diff := cmp.Diff(tt.wantFlags, TargetFlags("tokio", got)); diff != "" {
				t.Errorf("TargetFlags() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTargetClass_String(t *testing.T) {
	tests := []struct {
		class TargetClass
		want  string
	}{
		{TargetNative, "native"},
		{TargetWasmWasi, "wasm+wasi"},
		{TargetWasmNotWasi, "wasm"},
		{TargetClass(7), "TargetClass(7)"},
	}
	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("TargetClass(%d).String() = %q, want %q", tt.class, got, tt.want)
		}
	}
	if TargetNative.IsWasm() || !TargetWasmWasi.IsWasm() || !TargetWasmNotWasi.IsWasm() {
		t.Error("IsWasm() mismatch")
	}
}
