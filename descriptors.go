package cfgprobe

// Descriptor declares how a single feature is evaluated.
//
// A version-gated descriptor is supported at or above Stable, trial-compiled
// at exactly Boundary, and unsupported below it. A Direct descriptor has no
// version gate and is always trial-compiled.
type Descriptor struct {
	Feature  Feature
	Stable   MinorVersion
	Boundary MinorVersion
	// HasBoundary is false when Stable has no preceding minor (x.0).
	HasBoundary bool
	Snippet     string
	Direct      bool
}

// Gated returns a version-gated descriptor. The boundary version is the
// minor release preceding stable, where pre-release compilers are known to
// claim the version before shipping the feature.
func Gated(f Feature, major, minor uint64, snippet string) Descriptor {
	d := Descriptor{
		Feature: f,
		Stable:  MinorVersion{Major: major, Minor: minor},
		Snippet: snippet,
	}
	if minor > 0 {
		d.Boundary = MinorVersion{Major: major, Minor: minor - 1}
		d.HasBoundary = true
	}
	return d
}

// Direct returns a descriptor that is decided by trial compile only.
func Direct(f Feature, snippet string) Descriptor {
	return Descriptor{Feature: f, Snippet: snippet, Direct: true}
}

// Trial compile snippets. Each is an expression wrapped by the driver into
// a function body, so a compile error means the feature is unusable.
const (
	constThreadLocalProbe = `{
    thread_local! {
        static MY_PROBE: usize = const { 10 };
    }

    MY_PROBE.with(|val| *val)
}`

	constMutexNewProbe = `{
    static MY_MUTEX: ::std::sync::Mutex<i32> = ::std::sync::Mutex::new(1);
    *MY_MUTEX.lock().unwrap()
}`

	asFdProbe = `{
    #[allow(unused_imports)]
    #[cfg(unix)]
    use std::os::unix::prelude::AsFd as _;
    #[allow(unused_imports)]
    #[cfg(windows)]
    use std::os::windows::prelude::AsSocket as _;
    #[allow(unused_imports)]
    #[cfg(target_os = "wasi")]
    use std::os::wasi::prelude::AsFd as _;
}`

	targetHasAtomicProbe = `{
    #[cfg(target_has_atomic = "ptr")]
    let _ = ();
}`

	atomicU64Probe = `{
    #[allow(unused_imports)]
    use std::sync::atomic::AtomicU64 as _;
}`
)

// DefaultDescriptors returns the built-in descriptor table. A fresh slice is
// returned on every call so callers cannot mutate the shared table.
//
// Stable versions are one minor above the release that stabilized each
// feature: nightlies of that release may predate the stabilization.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		Gated(FeatureConstThreadLocal, 1, 60, constThreadLocalProbe),
		Gated(FeatureTargetHasAtomic, 1, 61, targetHasAtomicProbe),
		Gated(FeatureConstMutexNew, 1, 64, constMutexNewProbe),
		Gated(FeatureAsFd, 1, 64, asFdProbe),
		Direct(FeatureAtomicU64, atomicU64Probe),
	}
}

// DerivedRule computes a result from other results.
//
// The derived feature is supported when Supersede is supported, or when
// Fallback (the direct probe of the same capability) is supported.
type DerivedRule struct {
	Feature   Feature
	Supersede Feature
	Fallback  Feature
}

// DefaultDerivedRules returns the built-in derived rules.
func DefaultDerivedRules() []DerivedRule {
	return []DerivedRule{
		// target_has_atomic lets downstream code gate on the target itself;
		// only without it does the AtomicU64 probe decide the fallback.
		{Feature: FeatureAtomicU64, Supersede: FeatureTargetHasAtomic, Fallback: FeatureAtomicU64},
	}
}
