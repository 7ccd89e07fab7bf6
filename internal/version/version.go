// Package version holds build information, set at link time:
//
//	go build -ldflags "-X github.com/educube/groundstation/internal/version.Version=1.0.0 \
//	                   -X github.com/educube/groundstation/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/educube/groundstation/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import "log/slog"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// Attr groups the build information for a startup log line.
func Attr() slog.Attr {
	return slog.Group("build",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("time", BuildTime),
	)
}
