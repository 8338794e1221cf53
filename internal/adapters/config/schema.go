package config

// Manifest represents the structure of the kiln.yaml build manifest.
type Manifest struct {
	System    SystemDTO    `yaml:"system"`
	Build     BuildDTO     `yaml:"build"`
	Paths     PathsDTO     `yaml:"paths"`
	Logging   LoggingDTO   `yaml:"logging"`
	Toolchain []PackageDTO `yaml:"toolchain"`
	Packages  PackagesDTO  `yaml:"packages"`
	Features  FeaturesDTO  `yaml:"features"`
}

// SystemDTO identifies the system being built.
type SystemDTO struct {
	Name          string `yaml:"name"`
	Version       string `yaml:"version"`
	TargetTriplet string `yaml:"target_triplet"`
}

// BuildDTO holds the global build parameters.
type BuildDTO struct {
	ParallelJobs *int   `yaml:"parallel_jobs"`
	Optimization *int   `yaml:"optimization"`
	DebugInfo    bool   `yaml:"debug_info"`
	FetchRetries int    `yaml:"fetch_retries"`
	StepTimeout  string `yaml:"step_timeout"`
	TrackFiles   *bool  `yaml:"track_files"`
}

// PathsDTO overrides the directories derived from root.
type PathsDTO struct {
	Root    string `yaml:"root"`
	Sources string `yaml:"sources"`
	Build   string `yaml:"build"`
	Tools   string `yaml:"tools"`
	Prefix  string `yaml:"prefix"`
}

// LoggingDTO controls log output.
type LoggingDTO struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Verbose bool   `yaml:"verbose"`
	JSON    bool   `yaml:"json"`
}

// PackagesDTO groups packages by phase.
type PackagesDTO struct {
	Base    []PackageDTO `yaml:"base"`
	Desktop []PackageDTO `yaml:"desktop"`
}

// FeaturesDTO toggles optional phases.
type FeaturesDTO struct {
	Desktop struct {
		EnableXorg bool `yaml:"enable_xorg"`
	} `yaml:"desktop"`
}

// PackageDTO represents a package declaration.
type PackageDTO struct {
	Name              string   `yaml:"name"`
	Version           string   `yaml:"version"`
	Dependencies      []string `yaml:"dependencies"`
	BuildDependencies []string `yaml:"build_dependencies"`
	Source            string   `yaml:"source"`
	Checksum          string   `yaml:"checksum"`
	Critical          *bool    `yaml:"critical"`
	Configure         []string `yaml:"configure"`
	MakeArgs          []string `yaml:"make_args"`
}
