// Package version holds build-time version information for the shopai binary.
// Values are injected with -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/shopai-go/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/shopai-go/internal/version.Commit=abc1234"
package version

import "fmt"

// Version is the semantic version of the binary. "dev" for local builds.
var Version = "dev"

// Commit is the short git SHA the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC build date (RFC3339).
var BuildDate = "unknown"

// String renders the version line printed by `shopai version` and sent as
// the release tag to tracing backends.
func String() string {
	return fmt.Sprintf("shopai %s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
