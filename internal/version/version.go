// Package version reports build metadata injected at link time.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies hark to remote recognizer services.
func UserAgent() string {
	return "hark/" + Version
}

// String returns the long form printed by the version command.
func String() string {
	return "hark " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}
