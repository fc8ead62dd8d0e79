// Package version holds the whatsnew version string.
package version

// Version is the current whatsnew release. Overridden at build time via
// -ldflags "-X whatsnew/internal/version.Version=...".
var Version = "0.3.0"
