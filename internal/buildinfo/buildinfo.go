// Package buildinfo stores build-time metadata shared across packages.
package buildinfo

// Set via ldflags during build.
var (
	Version = "dev"
	Commit  = "none"
)

// String returns the version line printed by `capcon version`.
func String() string {
	return "capcon " + Version + " (" + Commit + ")"
}
