// Package version holds build information injected at link time.
package version

import "runtime"

// Set via -ldflags at build time:
//
//	go build -ldflags "-X loom/version.GitRelease=v0.1.0 -X loom/version.GitCommit=$(git rev-parse HEAD)"
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain the binary was built with.
var GoInfo = runtime.Version()
