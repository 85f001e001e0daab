package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build information, overridden with -ldflags "-X" at build time
var (
	Version   = "0.1.0"
	GitCommit = ""
	BuildDate = ""
)

const (
	// AppName is the binary and command name
	AppName = "tinyhttpd"
	// Description is the one-line command summary
	Description = "A minimal HTTP/1.1 server for echo, user-agent and file routes"
)

// GetVersionInfo returns the version line followed by build details
func GetVersionInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s version %s", AppName, Version)
	if GitCommit != "" {
		fmt.Fprintf(&b, "\nGit commit: %s", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&b, "\nBuild date: %s", BuildDate)
	}
	fmt.Fprintf(&b, "\nGo version: %s", runtime.Version())
	fmt.Fprintf(&b, "\nPlatform: %s/%s", runtime.GOOS, runtime.GOARCH)
	return b.String()
}
