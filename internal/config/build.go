package config

// Build metadata stamped at link time. A release build sets these via
//
//	go build -ldflags "-X epigrid/internal/config.version=$(VERSION) \
//	    -X epigrid/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X epigrid/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// and an unstamped local build reports the defaults below.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo snapshots the linker-injected variables into the struct the
// Config carries and the startup log reports.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
