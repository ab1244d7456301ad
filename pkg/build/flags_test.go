// SPDX-License-Identifier: MIT
package build

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// setFlags sets the linker variables for one test and restores them after.
func setFlags(t *testing.T, name, built, commit, version string) {
	t.Helper()
	prevName, prevTime, prevCommit, prevVersion := buildName, buildTime, buildCommit, buildVersion
	prevInfo := current
	t.Cleanup(func() {
		buildName, buildTime, buildCommit, buildVersion = prevName, prevTime, prevCommit, prevVersion
		current = prevInfo
	})
	buildName, buildTime, buildCommit, buildVersion = name, built, commit, version
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name                        string
		flagName, time, commit, ver string
		wantMissing                 []string
	}{
		{"missing name", "", "2025-04-13T10:00:00Z", "abc1234", "v1.0.0", []string{"buildName"}},
		{"missing time", "ledaudio", "", "abc1234", "v1.0.0", []string{"buildTime"}},
		{"missing commit", "ledaudio", "2025-04-13T10:00:00Z", "", "v1.0.0", []string{"buildCommit"}},
		{"missing version", "ledaudio", "2025-04-13T10:00:00Z", "abc1234", "", []string{"buildVersion"}},
		{"development build", "", "", "", "", []string{"buildName", "buildTime", "buildCommit", "buildVersion"}},
		{"release build", "ledaudio", "2025-04-13T10:00:00Z", "abc1234", "v1.0.0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setFlags(t, tt.flagName, tt.time, tt.commit, tt.ver)
			current = Info{Name: unknown, Time: unknown, Commit: unknown, Version: unknown}

			err := Initialize()
			if tt.wantMissing == nil {
				if err != nil {
					t.Fatalf("Initialize() unexpected error: %v", err)
				}
				want := Info{Name: tt.flagName, Time: tt.time, Commit: tt.commit, Version: tt.ver}
				if got := Get(); got != want {
					t.Errorf("Get() = %+v, expected %+v", got, want)
				}
				return
			}

			if !errors.Is(err, ErrMissingFlags) {
				t.Fatalf("Initialize() error = %v, expected %v", err, ErrMissingFlags)
			}
			if !strings.HasSuffix(err.Error(), strings.Join(tt.wantMissing, ", ")) {
				t.Errorf("Initialize() error = %q, expected it to list %v", err, tt.wantMissing)
			}
			if got := Get(); got.Version != unknown || got.Name != unknown {
				t.Errorf("failed Initialize changed the info: %+v", got)
			}
		})
	}
}

func TestProgramName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", DefaultName},
		{unknown, DefaultName},
		{"ledaudio-pi", "ledaudio-pi"},
	}
	for _, tt := range tests {
		if got := (Info{Name: tt.name}).ProgramName(); got != tt.want {
			t.Errorf("ProgramName(%q) = %q, expected %q", tt.name, got, tt.want)
		}
	}
}

func TestBuilt(t *testing.T) {
	built, err := Info{Time: "2025-04-13T10:00:00Z"}.Built()
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2025, 4, 13, 10, 0, 0, 0, time.UTC); !built.Equal(want) {
		t.Errorf("Built() = %v, expected %v", built, want)
	}
	if _, err := (Info{Time: unknown}).Built(); err == nil {
		t.Error("expected an error for an unknown build time")
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Name: "ledaudio", Time: "2025-04-13T10:00:00Z", Commit: "abc1234", Version: "v0.3.0"}
	if got, want := info.String(), "v0.3.0 (commit abc1234, built 2025-04-13T10:00:00Z)"; got != want {
		t.Errorf("String() = %q, expected %q", got, want)
	}
}
