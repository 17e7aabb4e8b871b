// Package version carries build metadata stamped in via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

const name = "chatdock"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the line printed by the version command.
func String() string {
	return fmt.Sprintf("%s %s (commit=%s, date=%s, go=%s)", name, Version, Commit, Date, runtime.Version())
}

// UserAgent identifies the widget on outbound chat requests.
func UserAgent() string {
	return name + "/" + Version
}
