// Package local implements the bundled Workspace/Collection backend: a
// Workspace maps onto a directory, Subspace onto a subdirectory created
// on demand, Destroy onto a recursive remove. This is the only backend
// the core ships; remote-execution backends (cloud batch, object
// storage) are out of scope and are reachable only through the
// workspace.Workspace / workspace.Collection interfaces.
package local

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/workspace"
)

// Workspace roots a workspace.Workspace at a directory on the local
// filesystem.
type Workspace struct {
	root string
	name string
}

// New constructs a local.Workspace rooted at root, creating it if
// necessary.
func New(root, name string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, gerr.Wrap("local.New", root, err)
	}
	return &Workspace{root: root, name: name}, nil
}

// Root returns the workspace's backing directory.
func (w *Workspace) Root() string { return w.root }

func (w *Workspace) Name() string { return w.name }

func (w *Workspace) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", gerr.Wrap("local.resolve", path, fmt.Errorf("path escapes workspace root"))
	}
	return filepath.Join(w.root, clean), nil
}

func (w *Workspace) OpenRead(path string) (io.ReadCloser, error) {
	full, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gerr.Wrap("local.OpenRead", path, gerr.ErrNotExist)
		}
		return nil, gerr.Wrap("local.OpenRead", path, err)
	}
	return f, nil
}

func (w *Workspace) OpenWrite(path string, append bool) (io.WriteCloser, error) {
	full, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, gerr.Wrap("local.OpenWrite", path, err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(full, flags, 0o644)
	if err != nil {
		return nil, gerr.Wrap("local.OpenWrite", path, err)
	}
	return f, nil
}

// WriteAll writes src to path atomically via create-temp-then-rename, so
// a concurrent reader never observes a partially written file. When src
// is a string naming a source filesystem path, the source's file mode
// is preserved on the written file.
func (w *Workspace) WriteAll(path string, src any) error {
	full, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return gerr.Wrap("local.WriteAll", path, err)
	}

	mode := fs.FileMode(0o644)
	var reader io.Reader
	var closer io.Closer

	switch v := src.(type) {
	case []byte:
		reader = bytes.NewReader(v)
	case io.Reader:
		reader = v
	case string:
		f, err := os.Open(v)
		if err != nil {
			return gerr.Wrap("local.WriteAll", path, err)
		}
		if info, statErr := f.Stat(); statErr == nil {
			mode = info.Mode().Perm()
		}
		reader = f
		closer = f
	default:
		return gerr.Wrap("local.WriteAll", path, fmt.Errorf("unsupported source type %T", src))
	}
	if closer != nil {
		defer closer.Close()
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".grevling-tmp-*")
	if err != nil {
		return gerr.Wrap("local.WriteAll", path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		return gerr.Wrap("local.WriteAll", path, err)
	}
	if err := tmp.Close(); err != nil {
		return gerr.Wrap("local.WriteAll", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return gerr.Wrap("local.WriteAll", path, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return gerr.Wrap("local.WriteAll", path, err)
	}
	return nil
}

func (w *Workspace) Exists(path string) bool {
	full, err := w.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// Glob returns every path matching pattern using doublestar (`**`)
// semantics, relative to the workspace root.
func (w *Workspace) Glob(pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(w.root), pattern)
	if err != nil {
		return nil, gerr.Wrap("local.Glob", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Files returns every regular file's path, relative to the workspace
// root, recursively.
func (w *Workspace) Files() ([]string, error) {
	var out []string
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return relErr
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gerr.Wrap("local.Files", w.root, err)
	}
	sort.Strings(out)
	return out, nil
}

func (w *Workspace) Mode(path string) (fs.FileMode, bool, error) {
	full, err := w.resolve(path)
	if err != nil {
		return 0, false, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, gerr.Wrap("local.Mode", path, err)
	}
	return info.Mode(), true, nil
}

func (w *Workspace) SetMode(path string, mode fs.FileMode) error {
	full, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Chmod(full, mode); err != nil {
		return gerr.Wrap("local.SetMode", path, err)
	}
	return nil
}

// Subspace returns (creating if necessary) a child workspace rooted at a
// subdirectory of this one.
func (w *Workspace) Subspace(name string) (workspace.Workspace, error) {
	full, err := w.resolve(name)
	if err != nil {
		return nil, err
	}
	return New(full, w.name+"/"+name)
}

func (w *Workspace) Destroy() error {
	if err := os.RemoveAll(w.root); err != nil {
		return gerr.Wrap("local.Destroy", w.root, err)
	}
	return nil
}

// Collection maps Open/New/Destroy onto directories under a fixed root.
type Collection struct {
	root string
}

// NewCollection constructs a Collection rooted at root.
func NewCollection(root string) (*Collection, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, gerr.Wrap("local.NewCollection", root, err)
	}
	return &Collection{root: root}, nil
}

func (c *Collection) Root() string { return c.root }

func (c *Collection) Open(path string, name string) (workspace.Workspace, error) {
	return New(filepath.Join(c.root, path), name)
}

func (c *Collection) New(prefix string) (workspace.Workspace, error) {
	if prefix == "" {
		prefix = "ws"
	}
	name := prefix + "-" + uuid.NewString()
	return New(filepath.Join(c.root, name), name)
}

func (c *Collection) Destroy(path string) error {
	full := filepath.Join(c.root, path)
	if err := os.RemoveAll(full); err != nil {
		return gerr.Wrap("local.Destroy", full, err)
	}
	return nil
}

func (c *Collection) Names() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gerr.Wrap("local.Names", c.root, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (c *Collection) Close() error { return nil }

// TempCollection is a Collection whose root is an ephemeral temp
// directory, removed in its entirety on Close. This backs the default
// remote-workspace WorkspaceCollection used by the pipeline runtime.
type TempCollection struct {
	*Collection
}

// NewTempCollection creates a fresh temp directory under the OS temp
// root (or under base, if non-empty) to back a family of per-instance
// remote workspaces.
func NewTempCollection(base, prefix string) (*TempCollection, error) {
	if prefix == "" {
		prefix = "grevling-"
	}
	dir, err := os.MkdirTemp(base, prefix)
	if err != nil {
		return nil, gerr.Wrap("local.NewTempCollection", base, err)
	}
	coll, err := NewCollection(dir)
	if err != nil {
		return nil, err
	}
	return &TempCollection{Collection: coll}, nil
}

func (t *TempCollection) Close() error {
	if err := os.RemoveAll(t.root); err != nil {
		return gerr.Wrap("local.TempCollection.Close", t.root, err)
	}
	return nil
}

var _ workspace.Workspace = (*Workspace)(nil)
var _ workspace.Collection = (*Collection)(nil)
var _ workspace.Collection = (*TempCollection)(nil)
