// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata linked into the binary with -ldflags:
//
//	go build -ldflags "-X ledaudio/pkg/build.buildName=ledaudio \
//	    -X ledaudio/pkg/build.buildTime=2025-04-13T10:00:00Z \
//	    -X ledaudio/pkg/build.buildCommit=abc1234 \
//	    -X ledaudio/pkg/build.buildVersion=v0.3.0"
//
// Development builds carry no flags and report "unknown".
package build

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultName is the program name used when no name was linked in.
const DefaultName = "ledaudio"

// Description is the one-line summary shown by the CLI.
const Description = "Real-time audio feature extraction for LED controllers"

const unknown = "unknown"

// ErrMissingFlags is returned by Initialize when any ldflag is empty.
var ErrMissingFlags = errors.New("build: missing ldflags")

// Info is the build metadata.
type Info struct {
	Name    string
	Time    string // RFC 3339
	Commit  string
	Version string
}

// Set with -ldflags -X.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var current = Info{Name: unknown, Time: unknown, Commit: unknown, Version: unknown}

// Initialize copies the linked values into the build info. If any is
// missing it reports all of them and leaves the "unknown" defaults.
func Initialize() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"buildName", buildName},
		{"buildTime", buildTime},
		{"buildCommit", buildCommit},
		{"buildVersion", buildVersion},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFlags, strings.Join(missing, ", "))
	}

	current = Info{Name: buildName, Time: buildTime, Commit: buildCommit, Version: buildVersion}
	return nil
}

// Get returns a copy of the build info.
func Get() Info { return current }

// ProgramName returns the linked name, or DefaultName for development builds.
func (i Info) ProgramName() string {
	if i.Name == "" || i.Name == unknown {
		return DefaultName
	}
	return i.Name
}

// Built parses the build time.
func (i Info) Built() (time.Time, error) {
	return time.Parse(time.RFC3339, i.Time)
}

// String formats the info for --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}
