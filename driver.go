package cfgprobe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/execabs"
)

// Toolchain is the compiler whose features are probed.
type Toolchain interface {
	// Version returns the self-reported compiler version.
	Version(ctx context.Context) (Version, error)
	// Compile trial-compiles an expression snippet. A nil error means the
	// snippet compiled; any error means it did not, for whatever reason.
	Compile(ctx context.Context, snippet string) error
}

// CompileError is returned by [RustcDriver.Compile] when a snippet fails.
type CompileError struct {
	// Stderr is the compiler diagnostic output, trimmed.
	Stderr string
	Err    error
}

func (e *CompileError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("trial compile failed: %v", e.Err)
	}
	return fmt.Sprintf("trial compile failed: %v: %s", e.Err, firstLine(e.Stderr))
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// waitDelay bounds how long a cancelled toolchain may hold its output pipes.
const waitDelay = 5 * time.Second

// RustcDriver runs a rustc binary to answer [Toolchain] queries.
type RustcDriver struct {
	// Path is the rustc binary, resolved through PATH when not absolute.
	Path string
	// Target is passed as --target when non-empty.
	Target string
	// OutDir receives trial compile artifacts. A temporary directory is
	// used and removed per compile when empty.
	OutDir string
	// RustFlags are forwarded to every trial compile.
	RustFlags []string

	logger zerolog.Logger
	host   string
	probes int
}

// NewRustcDriver returns a driver configured from cfg.
func NewRustcDriver(cfg *Config, logger zerolog.Logger) *RustcDriver {
	path := cfg.Rustc
	if path == "" {
		path = defaultRustc
	}
	return &RustcDriver{
		Path:      path,
		Target:    cfg.Target,
		OutDir:    cfg.OutDir,
		RustFlags: append([]string(nil), cfg.RustFlags...),
		logger:    logger,
	}
}

// Version runs `rustc -vV` and parses the result.
func (d *RustcDriver) Version(ctx context.Context) (Version, error) {
	out, stderr, err := d.run(ctx, nil, "-vV")
	if err != nil {
		if stderr != "" {
			return Version{}, fmt.Errorf("%s -vV: %w: %s", d.Path, err, firstLine(stderr))
		}
		return Version{}, fmt.Errorf("%s -vV: %w", d.Path, err)
	}
	d.host = parseHost(out)
	return ParseVersion(out)
}

// Host returns the host triple reported by the last successful [RustcDriver.Version] call.
func (d *RustcDriver) Host() string {
	return d.host
}

// Compile writes a library crate that evaluates snippet and asks rustc to
// lower it to LLVM IR, which is enough to surface type and name errors.
func (d *RustcDriver) Compile(ctx context.Context, snippet string) error {
	outDir := d.OutDir
	if outDir == "" {
		tmp, err := os.MkdirTemp("", "cfgprobe-")
		if err != nil {
			return &CompileError{Err: fmt.Errorf("create out dir: %w", err)}
		}
		defer os.RemoveAll(tmp)
		outDir = tmp
	}

	crate := fmt.Sprintf("cfgprobe_probe%d", d.probes)
	d.probes++

	args := []string{
		"--crate-name", crate,
		"--crate-type=lib",
		"--emit=llvm-ir",
		"--out-dir", outDir,
	}
	if d.Target != "" {
		args = append(args, "--target", d.Target)
	}
	args = append(args, d.RustFlags...)
	args = append(args, "-")

	src := []byte(wrapSnippet(snippet))
	_, stderr, err := d.run(ctx, src, args...)
	if err != nil {
		return &CompileError{Stderr: stderr, Err: err}
	}
	return nil
}

func (d *RustcDriver) run(ctx context.Context, stdin []byte, args ...string) (string, string, error) {
	d.logger.Debug().Str("rustc", d.Path).Strs("args", args).Msg("running toolchain")

	cmd := execabs.CommandContext(ctx, d.Path, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func wrapSnippet(snippet string) string {
	return "#![allow(warnings)]\npub fn probe() { let _ = " + snippet + "; }\n"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
