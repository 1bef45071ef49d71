// Package workspace defines the rooted-namespace abstraction instances
// use to stage input files, run scripts, and download output: a
// filesystem-like namespace with read/write/glob/mode operations and a
// pluggable backend. The bundled backend (pkg/workspace/local) maps a
// Workspace onto a directory; remote-execution backends (cloud object
// storage) are intentionally not part of this module — see DESIGN.md.
package workspace

import (
	"io"
	"io/fs"
)

// Workspace is a rooted namespace with read/write/glob/mode operations.
type Workspace interface {
	// Name identifies this workspace for logging (not necessarily a
	// filesystem path).
	Name() string

	// OpenRead opens path for reading.
	OpenRead(path string) (io.ReadCloser, error)

	// OpenWrite opens path for writing, truncating unless append is
	// set, creating parent directories as needed.
	OpenWrite(path string, append bool) (io.WriteCloser, error)

	// WriteAll writes src to path atomically (create-temp, then
	// rename), creating parent directories as needed. src is one of
	// []byte, io.Reader, or a source filesystem path (string) to copy
	// byte-for-byte, preserving its file mode.
	WriteAll(path string, src any) error

	// Exists reports whether path exists in this workspace.
	Exists(path string) bool

	// Glob returns every path matching pattern (doublestar syntax),
	// relative to the workspace root.
	Glob(pattern string) ([]string, error)

	// Files returns every regular file's path, relative to the
	// workspace root, recursively.
	Files() ([]string, error)

	// Mode returns path's file mode, and whether path exists.
	Mode(path string) (fs.FileMode, bool, error)

	// SetMode sets path's file mode.
	SetMode(path string, mode fs.FileMode) error

	// Subspace returns (creating if necessary) a child workspace
	// rooted at name within this one.
	Subspace(name string) (Workspace, error)

	// Destroy recursively removes this workspace's contents.
	Destroy() error
}

// Collection creates and tracks a family of workspaces sharing a root.
type Collection interface {
	// Open returns the workspace at path, creating it if absent.
	Open(path string, name string) (Workspace, error)

	// New creates a fresh, uniquely named workspace, optionally
	// prefixed.
	New(prefix string) (Workspace, error)

	// Destroy removes the workspace at path.
	Destroy(path string) error

	// Names lists every workspace directory name directly under the
	// collection's root.
	Names() ([]string, error)

	// Close releases any resources (e.g. a temp-directory collection
	// removes its entire root).
	Close() error
}

// Rooted is implemented by backends that expose a real local filesystem
// path for a Workspace (the bundled local backend does; a remote-backed
// implementation generally would not). Subprocess execution needs a
// real cwd, so Script.Run's caller type-asserts for this rather than
// widening the Workspace interface with a path-returning method every
// backend would have to fake.
type Rooted interface {
	Root() string
}
