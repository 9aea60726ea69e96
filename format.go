package cfgprobe

import (
	"fmt"
	"strings"
)

// String returns a human-readable summary of the report.
func (r *Report) String() string {
	var b strings.Builder

	if r.Degraded() {
		fmt.Fprintf(&b, "Toolchain: unknown (%v)\n", r.VersionErr)
	} else {
		fmt.Fprintf(&b, "Toolchain: rustc %s\n", r.Version)
	}
	target := r.Target
	if target == "" {
		target = "(host)"
	}
	fmt.Fprintf(&b, "Target: %s (%s)\n", target, r.TargetClass)
	b.WriteString("\n")

	b.WriteString("Features:\n")
	for _, res := range r.Results {
		writeResult(&b, "  "+res.Feature.String(), res)
	}
	if len(r.Derived) > 0 {
		b.WriteString("\n")
		b.WriteString("Derived:\n")
		for _, res := range r.Derived {
			writeResult(&b, "  "+res.Feature.String(), res)
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}

	return b.String()
}

func writeResult(b *strings.Builder, name string, r ProbeResult) {
	status := "no"
	switch {
	case r.Method == MethodSkipped:
		status = "n/a"
	case r.Supported:
		status = "yes"
	}
	if r.Error != nil {
		fmt.Fprintf(b, "%s: %s [%s] (error: %v)\n", name, status, r.Method, r.Error)
	} else {
		fmt.Fprintf(b, "%s: %s [%s]\n", name, status, r.Method)
	}
}

// ReportView is a serializable rendering of a [Report].
type ReportView struct {
	Version  string       `json:"version,omitempty" yaml:"version,omitempty"`
	Degraded bool         `json:"degraded" yaml:"degraded"`
	Target   string       `json:"target,omitempty" yaml:"target,omitempty"`
	Class    string       `json:"target_class" yaml:"target_class"`
	Features []ResultView `json:"features" yaml:"features"`
	Derived  []ResultView `json:"derived,omitempty" yaml:"derived,omitempty"`
	Flags    []Flag       `json:"flags" yaml:"flags"`
	Warnings []string     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ResultView is a serializable rendering of a [ProbeResult].
type ResultView struct {
	Feature   string `json:"feature" yaml:"feature"`
	// Supported is nil for skipped probes, whose outcome is carried by
	// the derived result instead.
	Supported *bool  `json:"supported,omitempty" yaml:"supported,omitempty"`
	Method    string `json:"method" yaml:"method"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// View renders r for JSON or YAML output, including the flags that
// [Flags] would emit with prefix.
func (r *Report) View(prefix string) ReportView {
	v := ReportView{
		Degraded: r.Degraded(),
		Target:   r.Target,
		Class:    r.TargetClass.String(),
		Flags:    Flags(r, prefix),
		Warnings: r.Warnings,
	}
	if !r.Degraded() {
		v.Version = r.Version.String()
	}
	for _, res := range r.Results {
		v.Features = append(v.Features, viewResult(res))
	}
	for _, res := range r.Derived {
		v.Derived = append(v.Derived, viewResult(res))
	}
	if v.Flags == nil {
		v.Flags = []Flag{}
	}
	return v
}

func viewResult(res ProbeResult) ResultView {
	rv := ResultView{
		Feature: res.Feature.String(),
		Method:  res.Method.String(),
	}
	if res.Method != MethodSkipped {
		supported := res.Supported
		rv.Supported = &supported
	}
	if res.Error != nil {
		rv.Error = res.Error.Error()
	}
	return rv
}
