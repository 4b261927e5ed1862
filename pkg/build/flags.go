// SPDX-License-Identifier: MIT
//
// Package build provides functionality to manage and retrieve build information
// for the patchbay binary. The application name, build timestamp, Git commit
// hash, and semantic version are embedded at compile time using linker flags:
//
//	go build -ldflags "-X patchbay/pkg/build.buildName=patchbay \
//	  -X patchbay/pkg/build.buildVersion=v0.3.0 ..."
//
// Development builds run without them and report "unknown".
package build

import "fmt"

// Description is the one-line summary shown by the CLI.
const Description = "Real-time audio graph engine"

// Info holds the build metadata of the running binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the version line printed by --version.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Default values of "unknown" are used during development.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:    "patchbay",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// Initialize validates and copies build information from ldflags variables
// into the package Info. It returns an error naming the first missing flag
// and leaves the development defaults in place in that case.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildInfo.Name = buildName
	buildInfo.Time = buildTime
	buildInfo.Commit = buildCommit
	buildInfo.Version = buildVersion

	return nil
}

// GetInfo returns the current build information.
func GetInfo() Info {
	return *buildInfo
}
