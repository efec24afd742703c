// Package version holds build information injected at link time.
package version

import "fmt"

// These are set via -ldflags at build time, e.g.
// -X cargohold/internal/version.Version=v1.2.0
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a human-readable version string.
func Info() string {
	return fmt.Sprintf("cargohold %s (commit %s, built %s)", Version, Commit, Date)
}
