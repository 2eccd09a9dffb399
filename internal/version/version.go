package version

import (
	"fmt"
	"runtime"
)

// Name is the application name reported by /version and the User-Agent
const Name = "pvoutput-ingest"

var (
	// Version is the semantic version of the application
	Version = "dev"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Info returns version information as a map
func Info() map[string]string {
	return map[string]string{
		"name":      Name,
		"version":   Version,
		"gitCommit": GitCommit,
		"buildTime": BuildTime,
		"goVersion": runtime.Version(),
	}
}

// String returns a formatted version string
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", Name, Version, GitCommit, BuildTime)
}

// UserAgent returns the User-Agent sent with outbound API requests
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s)", Name, Version, runtime.Version())
}
