package domain

import "path/filepath"

const (
	// SourcesDirName is the directory holding downloaded source archives.
	SourcesDirName = "sources"

	// BuildDirName is the directory holding per-package build workspaces.
	BuildDirName = "build"

	// ToolsDirName is the directory holding the cross toolchain.
	ToolsDirName = "tools"

	// PkgDBDir is the registry directory relative to the root.
	PkgDBDir = "var/lib/pkg"

	// DBFileName is the registry store file inside PkgDBDir.
	DBFileName = "db"

	// InfoDirName holds package info files and installed-file manifests inside PkgDBDir.
	InfoDirName = "info"

	// InfoFileExt is the extension of package info files.
	InfoFileExt = ".info"

	// FilesFileExt is the extension of installed-file manifests.
	FilesFileExt = ".files"

	// DirPerm is the default permission for directories (rwxr-xr-x).
	DirPerm = 0o755

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// Layout is the filesystem layout of a build root.
type Layout struct {
	Root    string
	Sources string
	Build   string
	Tools   string
	// Prefix is the tree scanned to derive installed-file manifests.
	Prefix string
}

// NewLayout returns the default layout under root.
func NewLayout(root string) Layout {
	return Layout{
		Root:    root,
		Sources: filepath.Join(root, SourcesDirName),
		Build:   filepath.Join(root, BuildDirName),
		Tools:   filepath.Join(root, ToolsDirName),
		Prefix:  root,
	}
}

// Workspace returns the build directory of a package.
func (l Layout) Workspace(pkg *Package) string {
	return filepath.Join(l.Build, pkg.ID())
}

// ToolsBin returns the toolchain binary directory that is prepended to PATH.
func (l Layout) ToolsBin() string {
	return filepath.Join(l.Tools, "bin")
}

// Usr returns the /usr directory of the target root.
func (l Layout) Usr() string {
	return filepath.Join(l.Root, "usr")
}

// Sysconf returns the /etc directory of the target root.
func (l Layout) Sysconf() string {
	return filepath.Join(l.Root, "etc")
}

// DBPath returns the registry store file.
func (l Layout) DBPath() string {
	return filepath.Join(l.Root, PkgDBDir, DBFileName)
}

// InfoDir returns the directory of info files and manifests.
func (l Layout) InfoDir() string {
	return filepath.Join(l.Root, PkgDBDir, InfoDirName)
}

// Dirs lists every directory that must exist before a build starts.
func (l Layout) Dirs() []string {
	return []string{l.Root, l.Sources, l.Build, l.Tools, l.ToolsBin(), l.InfoDir()}
}

// Internal lists the directories that belong to kiln itself and are never
// part of an installed-file manifest.
func (l Layout) Internal() []string {
	return []string{l.Sources, l.Build, filepath.Join(l.Root, PkgDBDir)}
}
