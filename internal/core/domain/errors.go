package domain

import "go.trai.ch/zerr"

var (
	// ErrPackageAlreadyExists is returned when a package name is declared twice in the same build set.
	ErrPackageAlreadyExists = zerr.New("package already exists")

	// ErrInvalidPackage is returned when a package declaration is missing a required field.
	ErrInvalidPackage = zerr.New("invalid package declaration")

	// ErrPackageNotFound is returned when a requested package is not declared in the manifest.
	ErrPackageNotFound = zerr.New("package not found")

	// ErrMissingDependency is returned when a dependency is neither installed nor part of the build set.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCyclicDependency is returned when the dependency graph contains a cycle.
	ErrCyclicDependency = zerr.New("cyclic dependency")

	// ErrChecksumMismatch is returned when a source archive does not match its declared content hash.
	ErrChecksumMismatch = zerr.New("checksum mismatch")

	// ErrInvalidContentHash is returned when a declared content hash cannot be parsed.
	ErrInvalidContentHash = zerr.New("invalid content hash")

	// ErrFetchFailed is returned when a source archive cannot be transferred.
	ErrFetchFailed = zerr.New("fetch failed")

	// ErrUnsupportedArchiveFormat is returned when an archive matches no known compression signature.
	ErrUnsupportedArchiveFormat = zerr.New("unsupported archive format")

	// ErrUnsafeArchiveEntry is returned when an archive entry would be written outside the workspace.
	ErrUnsafeArchiveEntry = zerr.New("archive entry escapes destination")

	// ErrExtractFailed is returned when an archive cannot be unpacked.
	ErrExtractFailed = zerr.New("failed to extract archive")

	// ErrBuildStepFailed is returned when a recipe step exits unsuccessfully.
	ErrBuildStepFailed = zerr.New("build step failed")

	// ErrUnknownTemplateVariable is returned when a recipe option references an undefined variable.
	ErrUnknownTemplateVariable = zerr.New("unknown template variable")

	// ErrWorkspacePrepareFailed is returned when the per-package build workspace cannot be created.
	ErrWorkspacePrepareFailed = zerr.New("failed to prepare workspace")

	// ErrInvalidTransition is returned when a build job is moved to a state it cannot reach.
	ErrInvalidTransition = zerr.New("invalid job state transition")

	// ErrNotInstalled is returned when a registry operation targets a package that is not installed.
	ErrNotInstalled = zerr.New("package not installed")

	// ErrDependentsExist is returned when removing a package that other installed packages depend on.
	ErrDependentsExist = zerr.New("installed packages depend on this package")

	// ErrSkippedDueToFailedDependency is recorded on jobs whose dependency failed.
	ErrSkippedDueToFailedDependency = zerr.New("skipped due to failed dependency")

	// ErrRunAborted is recorded on jobs that never started because the run stopped early.
	ErrRunAborted = zerr.New("run aborted")

	// ErrCriticalPackageFailed is returned when a package marked critical fails.
	ErrCriticalPackageFailed = zerr.New("critical package failed")

	// ErrBuildFailed is returned when one or more non-critical packages failed during a run.
	ErrBuildFailed = zerr.New("build finished with failures")

	// ErrRegistryCorrupt is returned when the registry store contains an unparsable entry.
	ErrRegistryCorrupt = zerr.New("registry store is corrupt")

	// ErrStoreCreateFailed is returned when the registry directories cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create registry directory")

	// ErrStoreReadFailed is returned when the registry store cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read registry store")

	// ErrStoreWriteFailed is returned when the registry store cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write registry store")

	// ErrStoreUnmarshalFailed is returned when a package info file cannot be parsed.
	ErrStoreUnmarshalFailed = zerr.New("failed to parse package info")

	// ErrStoreMarshalFailed is returned when a package info file cannot be encoded.
	ErrStoreMarshalFailed = zerr.New("failed to encode package info")

	// ErrConfigReadFailed is returned when the manifest file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read manifest")

	// ErrConfigParseFailed is returned when the manifest file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse manifest")

	// ErrInvalidConfig is returned when the manifest contains invalid settings.
	ErrInvalidConfig = zerr.New("invalid manifest")

	// ErrFileHashFailed is returned when hashing an installed file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")
)
