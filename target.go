package cfgprobe

import (
	"fmt"
	"strings"
)

// TargetClass is the coarse platform category of a target triple.
type TargetClass int

const (
	// TargetNative is any non-wasm target. It emits no flags.
	TargetNative TargetClass = iota
	// TargetWasmWasi is a wasm target with WASI (e.g. wasm32-wasi).
	TargetWasmWasi
	// TargetWasmNotWasi is a bare wasm target (e.g. wasm32-unknown-unknown).
	TargetWasmNotWasi
)

func (c TargetClass) String() string {
	switch c {
	case TargetNative:
		return "native"
	case TargetWasmWasi:
		return "wasm+wasi"
	case TargetWasmNotWasi:
		return "wasm"
	default:
		return fmt.Sprintf("TargetClass(%d)", c)
	}
}

// IsWasm reports whether c is one of the wasm classes.
func (c TargetClass) IsWasm() bool {
	return c == TargetWasmWasi || c == TargetWasmNotWasi
}

// ClassifyTarget classifies a target triple by plain string matching.
func ClassifyTarget(triple string) TargetClass {
	if !strings.HasPrefix(triple, "wasm") {
		return TargetNative
	}
	if strings.Contains(triple, "wasi") {
		return TargetWasmWasi
	}
	return TargetWasmNotWasi
}
