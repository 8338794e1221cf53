package domain

import (
	"maps"
	"os"
	"slices"
	"strings"
)

// allowListedEnvVars are the host variables inherited by recipe steps.
var allowListedEnvVars = map[string]struct{}{
	"HOME":   {},
	"TERM":   {},
	"USER":   {},
	"PATH":   {},
	"LANG":   {},
	"TMPDIR": {},
}

// BuildEnvironment is the process environment shared by every recipe step of a run.
// It is constructed once and never mutated.
type BuildEnvironment struct {
	vars map[string]string
}

// NewBuildEnvironment derives the environment from the host variables, the layout and the config.
// The toolchain binary directory is prepended to PATH, LFS points at the root
// used as sysroot, and LFS_TGT carries the target triplet.
func NewBuildEnvironment(hostEnv []string, layout Layout, cfg BuildConfig) *BuildEnvironment {
	vars := make(map[string]string)
	for _, entry := range hostEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, allowed := allowListedEnvVars[k]; allowed {
			vars[k] = v
		}
	}

	path := layout.ToolsBin()
	if sysPath := vars["PATH"]; sysPath != "" {
		path += string(os.PathListSeparator) + sysPath
	}
	vars["PATH"] = path
	vars["LC_ALL"] = "POSIX"
	vars["LFS"] = layout.Root
	vars["LFS_TGT"] = cfg.TargetTriplet
	vars["CFLAGS"] = cfg.CompilerFlags()
	vars["CXXFLAGS"] = cfg.CompilerFlags()

	return &BuildEnvironment{vars: vars}
}

// Get returns a single variable.
func (e *BuildEnvironment) Get(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Environ returns the variables in "KEY=VALUE" form, sorted by key.
func (e *BuildEnvironment) Environ() []string {
	keys := slices.Sorted(maps.Keys(e.vars))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.vars[k])
	}
	return out
}

// Session carries the immutable per-run parameters handed to every build.
type Session struct {
	Layout Layout
	Config BuildConfig
	Env    *BuildEnvironment
}

// NewSession builds a session, capturing the host environment once.
func NewSession(layout Layout, cfg BuildConfig) *Session {
	return &Session{
		Layout: layout,
		Config: cfg,
		Env:    NewBuildEnvironment(os.Environ(), layout, cfg),
	}
}
