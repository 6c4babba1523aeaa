package config

// Set with -ldflags "-X growgent/internal/config.version=...". Local builds
// keep the defaults.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the metadata linked into the binary.
func NewBuildInfo() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}
