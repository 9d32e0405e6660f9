// SPDX-License-Identifier: MIT
//
// Package build exposes the name, version, commit and build time of the
// binary. Release builds inject them with linker flags:
//
//	go build -ldflags "-X pulse/pkg/build.buildVersion=v0.3.0 ..."
//
// Development builds fall back to the module and VCS data the Go toolchain
// stamps into every binary.
package build

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// DefaultName is used when no name was injected.
const DefaultName = "pulse"

// ErrMissing reports build fields that neither ldflags nor the embedded
// build info could supply.
var ErrMissing = errors.New("build information missing")

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
	GoVersion   string
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var (
	readBuildInfo = debug.ReadBuildInfo
	info          = &Info{
		Name:        DefaultName,
		Description: "Fixed-memory signal processing for ECG, pulse and audio streams",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "unknown",
		GoVersion:   runtime.Version(),
	}
)

// Initialize resolves the build information. Fields not set by ldflags are
// taken from the embedded build info. The returned error wraps ErrMissing
// and names every field left unknown; Info stays usable either way.
func Initialize() error {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&info.Name, buildName)
	set(&info.Time, buildTime)
	set(&info.Commit, buildCommit)
	set(&info.Version, buildVersion)

	if bi, ok := readBuildInfo(); ok {
		if buildVersion == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		set(&info.GoVersion, bi.GoVersion)
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if buildCommit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					info.Time = s.Value
				}
			}
		}
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"time", info.Time},
		{"commit", info.Commit},
		{"version", info.Version},
	} {
		if f.value == "unknown" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// GetBuildFlags returns the build information resolved by Initialize.
func GetBuildFlags() *Info {
	return info
}

// String formats the version line printed by --version.
func (i *Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", i.Name, i.Version, commit, i.Time, i.GoVersion)
}
