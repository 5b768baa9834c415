package build

// Set at link time, e.g.
//
//	go build -ldflags "-X github.com/rohmanhakim/dns-cache/internal/build.Version=1.0.0"
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// FullVersion returns the version string with commit hash appended.
// Format: "Version+Commit" (e.g., "1.0.0+abc123")
func FullVersion() string {
	return Version + "+" + Commit
}

// Describe is FullVersion plus the build time, as printed by `dns-cache version`.
func Describe() string {
	return FullVersion() + " (built " + BuildTime + ")"
}
