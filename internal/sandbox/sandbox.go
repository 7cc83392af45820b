// Package sandbox constructs the Linux mount/namespace jail that raven's
// Builder runs untrusted recipe scripts inside: a per-build root with the
// host's toolchain and shared libraries bind-mounted in, entered via
// chroot after the build process has unshared its mount and UTS
// namespaces.
//
// This is a build-correctness sandbox, not a security boundary: host
// directories are bind-mounted read-write by default. The goal is a
// stable, predictable FHS layout for configure/make scripts, independent
// of the actual host layout.
package sandbox

import "os"

const (
	envExec   = "RAVEN_SANDBOX_EXEC"
	envRoot   = "RAVEN_SANDBOX_ROOT"
	envScript = "RAVEN_SANDBOX_SCRIPT"
)

// BindDirs are the host directories bind-mounted into the sandbox root,
// when present on the host, to supply a compiler toolchain and shared
// libraries.
var BindDirs = []string{"/bin", "/usr", "/lib", "/lib64", "/dev", "/etc"}

// SkeletonDirs are the directories the Builder creates under a fresh
// sandbox root before running anything.
var SkeletonDirs = []string{"proc", "dev", "bin", "usr", "lib", "lib64", "etc", "tmp"}

// ReexecRequested reports whether the current process was invoked as the
// inner half of a sandbox run (i.e. whether main should call RunInner
// instead of the normal CLI dispatch).
func ReexecRequested() bool {
	return os.Getenv(envExec) == "1"
}
