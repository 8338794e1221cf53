package domain

import (
	"strconv"
	"time"
)

// BuildConfig holds the global build parameters. It is read-only after load.
type BuildConfig struct {
	TargetTriplet string
	ParallelJobs  int
	Optimization  int
	DebugInfo     bool
	// FetchRetries is the number of additional attempts made after a failed transfer.
	FetchRetries int
	// StepTimeout bounds each recipe step. Zero means no deadline.
	StepTimeout time.Duration
	// TrackFiles records the files each install step adds to the prefix.
	TrackFiles bool
}

// Jobs returns the effective worker count, never less than one.
func (c BuildConfig) Jobs() int {
	if c.ParallelJobs < 1 {
		return 1
	}
	return c.ParallelJobs
}

// CompilerFlags returns the CFLAGS value derived from the optimization level and debug setting.
func (c BuildConfig) CompilerFlags() string {
	flags := "-O" + strconv.Itoa(c.Optimization)
	if c.DebugInfo {
		flags += " -g"
	}
	return flags
}

// Phase names a group of packages built together.
type Phase string

const (
	// PhaseToolchain builds the cross toolchain. Its packages are critical by default.
	PhaseToolchain Phase = "toolchain"
	// PhaseBase builds the base system.
	PhaseBase Phase = "base"
	// PhaseDesktop builds the optional desktop feature set.
	PhaseDesktop Phase = "desktop"
)

// Phases lists every phase in build order.
var Phases = []Phase{PhaseToolchain, PhaseBase, PhaseDesktop}

// LoggingConfig controls the log output of a run.
type LoggingConfig struct {
	Level   string
	File    string
	Verbose bool
	JSON    bool
}

// Manifest is the fully parsed build description.
type Manifest struct {
	SystemName    string
	SystemVersion string
	Build         BuildConfig
	Layout        Layout
	Logging       LoggingConfig
	// Packages maps each phase to its packages in declaration order.
	Packages map[Phase][]*Package
	// Desktop enables the desktop phase.
	Desktop bool
}

// PhasePackages returns the packages of a phase in declaration order.
func (m *Manifest) PhasePackages(p Phase) []*Package {
	return m.Packages[p]
}

// EnabledPhases returns the phases a full build runs, in order.
func (m *Manifest) EnabledPhases() []Phase {
	phases := []Phase{PhaseToolchain, PhaseBase}
	if m.Desktop {
		phases = append(phases, PhaseDesktop)
	}
	return phases
}

// Lookup finds a declared package by name across all phases.
func (m *Manifest) Lookup(name string) (*Package, Phase, bool) {
	for _, phase := range Phases {
		for _, pkg := range m.Packages[phase] {
			if pkg.Name.String() == name {
				return pkg, phase, true
			}
		}
	}
	return nil, "", false
}
