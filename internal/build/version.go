package build

import "runtime"

// These are overridden at link time via -ldflags to stamp release builds
// with real values; the defaults below apply to local/dev builds.
var (
	// Commit is the git commit hash the binary was built from.
	Commit string

	// Version is the release version, e.g. "v0.3.0".
	Version = "v0.0.0-dev"
)

// GoVersion reports the Go toolchain version used to build the binary.
func GoVersion() string {
	return runtime.Version()
}
