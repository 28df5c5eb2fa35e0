// Package version holds the application version, set at build time via ldflags.
package version

// Version is the current release version. Overridden at build time:
//
//	go build -ldflags "-X github.com/ballastd/ballast/internal/version.Version=v0.4.1"
var Version = "dev"
