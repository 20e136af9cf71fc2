package version

// Version is the version of the broker build, written into every account
// snapshot. It is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-broker/internal/version.Version=1.2.3"
// "main" marks a development build.
var Version = "v0.1.0"

// GetVersion returns the current version of the broker.
func GetVersion() string {
	return Version
}
