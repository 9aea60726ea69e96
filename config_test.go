package cfgprobe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Rustc != "rustc" {
		t.Errorf("Rustc = %q, want rustc", cfg.Rustc)
	}
	if cfg.Prefix != DefaultPrefix {
		t.Errorf("Prefix = %q, want %q", cfg.Prefix, DefaultPrefix)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
rustc = "/opt/rust/bin/rustc"
target = "wasm32-wasi"
prefix = "mylib"
rustflags = ["-C", "opt-level=2"]
overrides = ["const-mutex-new", "as_fd"]
timeout = "30s"
log_level = "debug"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := &Config{
		Rustc:     "/opt/rust/bin/rustc",
		Target:    "wasm32-wasi",
		Prefix:    "mylib",
		RustFlags: []string{"-C", "opt-level=2"},
		Overrides: []string{"const-mutex-new", "as_fd"},
		Timeout:   "30s",
		LogLevel:  "debug",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}

	d, err := cfg.TimeoutDuration()
	if err != nil || d != 30*time.Second {
		t.Errorf("TimeoutDuration() = %v, %v; want 30s", d, err)
	}
}

func TestLoadConfig_KeepsDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, t.TempDir(), `target = "x86_64-unknown-linux-gnu"`))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Rustc != "rustc" || cfg.Prefix != DefaultPrefix {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", `rustcc = "rustc"`, "unknown keys: rustcc"},
		{"bad toml", `rustc = `, "failed to parse TOML"},
		{"bad timeout", `timeout = "soon"`, "invalid timeout"},
		{"negative timeout", `timeout = "-1s"`, "must be positive"},
		{"bad log level", `log_level = "loud"`, "invalid log_level"},
		{"unknown override", `overrides = ["green-threads"]`, "unknown feature"},
		{"empty prefix", `prefix = " "`, "missing prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, t.TempDir(), tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/cfgprobe.toml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFindConfig(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, `prefix = "x"`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, ok, err := FindConfig(nested)
	if err != nil {
		t.Fatalf("FindConfig() error = %v", err)
	}
	if !ok || got != want {
		t.Errorf("FindConfig() = %q, %v; want %q, true", got, ok, want)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Run("encoded rustflags win", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ApplyEnv(mapLookup(map[string]string{
			EnvRustc:                 "/usr/bin/rustc",
			EnvTarget:                "wasm32-unknown-unknown",
			EnvOutDir:                "/tmp/out",
			EnvRustflags:             "--cfg ignored",
			EnvCargoEncodedRustflags: "--cfg\x1ftokio_no_as_fd\x1f-Copt-level=3",
		}))

		if cfg.Rustc != "/usr/bin/rustc" || cfg.Target != "wasm32-unknown-unknown" || cfg.OutDir != "/tmp/out" {
			t.Errorf("ApplyEnv() = %+v", cfg)
		}
		want := []string{"--cfg", "tokio_no_as_fd", "-Copt-level=3"}
		if diff := cmp.Diff(want, cfg.RustFlags); diff != "" {
			t.Errorf("RustFlags mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("plain rustflags", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ApplyEnv(mapLookup(map[string]string{EnvRustflags: "  --cfg  tokio_no_const_mutex_new "}))
		want := []string{"--cfg", "tokio_no_const_mutex_new"}
		if diff := cmp.Diff(want, cfg.RustFlags); diff != "" {
			t.Errorf("RustFlags mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty values ignored", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Target = "from-file"
		cfg.ApplyEnv(mapLookup(map[string]string{EnvTarget: "", EnvRustc: ""}))
		if cfg.Target != "from-file" || cfg.Rustc != "rustc" {
			t.Errorf("ApplyEnv() overwrote with empty values: %+v", cfg)
		}
	})
}

func TestConfig_OverrideFeatures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Overrides = []string{"as-fd", "CONST_MUTEX_NEW"}
	cfg.RustFlags = []string{"--cfg", "tokio_no_as_fd", "--cfg=tokio_no_const_thread_local"}

	got, err := cfg.OverrideFeatures()
	if err != nil {
		t.Fatalf("OverrideFeatures() error = %v", err)
	}
	want := []Feature{FeatureAsFd, FeatureConstMutexNew, FeatureConstThreadLocal}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("OverrideFeatures() mismatch (-want +got):\n%s", diff)
	}

	cfg.Overrides = []string{"nope"}
	if _, err := cfg.OverrideFeatures(); err == nil {
		t.Error("expected error for unknown override")
	}
}

func TestSplitEncodedRustflags(t *testing.T) {
	if got := SplitEncodedRustflags(""); got != nil {
		t.Errorf("SplitEncodedRustflags(\"\") = %v, want nil", got)
	}
	got := SplitEncodedRustflags("a b\x1fc")
	if diff := cmp.Diff([]string{"a b", "c"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
