// SPDX-License-Identifier: MIT
//
// Package build holds the build metadata embedded into the binary with
// linker flags:
//
//	go build -ldflags "-X lightshow/pkg/build.buildVersion=0.1.0 \
//	  -X lightshow/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X lightshow/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds carry none of them and report version "dev".
package build

import "fmt"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "lightshow",
		Description: "Drive an LED array from audio",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags variables into the build information. A
// release build must set time, commit and version together; setting only
// some of them is an error. With none set the development defaults stay.
func Initialize() error {
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildTime == "" && buildCommit == "" && buildVersion == "" {
		return nil
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

	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the version line printed by --version.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", f.Version, f.Commit, f.Time)
}
