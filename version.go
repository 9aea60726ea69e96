package cfgprobe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrVersionUnknown is returned when the toolchain version cannot be determined.
var ErrVersionUnknown = errors.New("toolchain version unknown")

// VersionError wraps the reason the toolchain version could not be resolved.
// It always matches [ErrVersionUnknown] via errors.Is.
type VersionError struct {
	Err error
}

func (e *VersionError) Error() string {
	if e.Err == nil {
		return ErrVersionUnknown.Error()
	}
	return fmt.Sprintf("%s: %v", ErrVersionUnknown, e.Err)
}

func (e *VersionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrVersionUnknown}
	}
	return []error{ErrVersionUnknown, e.Err}
}

// MinorVersion is a (major, minor) threshold.
type MinorVersion struct {
	Major uint64
	Minor uint64
}

func (m MinorVersion) String() string {
	return fmt.Sprintf("%d.%d", m.Major, m.Minor)
}

// Version is a toolchain version as self-reported by the compiler.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
	// Channel is the pre-release tag (e.g. "nightly", "beta.3"), empty for stable.
	Channel string
}

// AtLeast reports whether v is at or above m, comparing (major, minor) only.
func (v Version) AtLeast(m MinorVersion) bool {
	if v.Major != m.Major {
		return v.Major > m.Major
	}
	return v.Minor >= m.Minor
}

// Is reports whether v has exactly the (major, minor) of m.
func (v Version) Is(m MinorVersion) bool {
	return v.Major == m.Major && v.Minor == m.Minor
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Channel != "" {
		s += "-" + v.Channel
	}
	return s
}

// ResolveVersion asks the toolchain for its version. Any failure is reported
// as a *[VersionError]; callers treat it as non-fatal and fall back to
// degraded mode.
func ResolveVersion(ctx context.Context, tc Toolchain) (Version, error) {
	if tc == nil {
		return Version{}, &VersionError{Err: errors.New("no toolchain")}
	}
	v, err := tc.Version(ctx)
	if err != nil {
		var ve *VersionError
		if errors.As(err, &ve) {
			return Version{}, err
		}
		return Version{}, &VersionError{Err: err}
	}
	return v, nil
}

// ParseVersion parses the output of `rustc -vV` (or `rustc --version`).
//
// The "release:" line is preferred; otherwise the first line must look like
// "rustc 1.59.0-nightly (abcdef 2021-12-06)".
func ParseVersion(output string) (Version, error) {
	var release, banner string

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if banner == "" {
			banner = line
		}
		if rest, ok := strings.CutPrefix(line, "release:"); ok {
			release = strings.TrimSpace(rest)
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return Version{}, &VersionError{Err: err}
	}

	if release == "" {
		fields := strings.Fields(banner)
		if len(fields) < 2 || fields[0] != "rustc" {
			return Version{}, &VersionError{Err: fmt.Errorf("unrecognized version output %q", banner)}
		}
		release = fields[1]
	}

	sv, err := semver.StrictNewVersion(release)
	if err != nil {
		return Version{}, &VersionError{Err: fmt.Errorf("parse release %q: %w", release, err)}
	}
	return Version{
		Major:   sv.Major(),
		Minor:   sv.Minor(),
		Patch:   sv.Patch(),
		Channel: sv.Prerelease(),
	}, nil
}

// parseHost extracts the "host:" triple from `rustc -vV` output.
func parseHost(output string) string {
	for line := range strings.Lines(output) {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "host:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
