// Package filemap implements templated and glob-based file copy between
// two workspaces: the simple (one path to one path) and glob
// (relative-tree mirroring) entry modes described for Case premap and
// postmap.
package filemap

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/render"
	"github.com/TheBB/Grevling/pkg/workspace"
)

// Mode selects whether an Entry copies a single path or mirrors a glob.
type Mode int

const (
	Simple Mode = iota
	Glob
)

// Entry is a single FileMap entry: a source/target path (or glob
// pattern), whether it should be rendered as a template, and its mode.
// Template entries are forced to Simple mode.
type Entry struct {
	Source   string
	Target   string
	Template bool
	Mode     Mode
}

// FileMap is an ordered list of Entry values, applied in order.
type FileMap []Entry

// Apply copies every entry from src to dst in order. If ignoreMissing is
// false, a missing source path aborts the whole FileMap and returns
// false; if true, the entry is skipped with a warning log and
// processing continues. Apply returns true only if every entry
// succeeded (or was skipped because missing and ignoreMissing is set).
func (fm FileMap) Apply(ctx map[string]any, src, dst workspace.Workspace, ignoreMissing bool, logger *zap.Logger) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ok := true
	for i, entry := range fm {
		entryOK, err := entry.apply(ctx, src, dst, ignoreMissing, logger)
		if err != nil {
			return false, gerr.Wrap("filemap.Apply", fmt.Sprintf("entry %d", i), err)
		}
		if !entryOK {
			ok = false
		}
	}
	return ok, nil
}

func (e Entry) apply(ctx map[string]any, src, dst workspace.Workspace, ignoreMissing bool, logger *zap.Logger) (bool, error) {
	mode := e.Mode
	if e.Template {
		mode = Simple
	}
	if mode == Glob {
		return e.applyGlob(ctx, src, dst, logger)
	}
	return e.applySimple(ctx, src, dst, ignoreMissing, logger)
}

func (e Entry) applySimple(ctx map[string]any, src, dst workspace.Workspace, ignoreMissing bool, logger *zap.Logger) (bool, error) {
	sourcePath, err := render.Render(e.Source, ctx)
	if err != nil {
		return false, err
	}
	targetPath, err := render.Render(e.Target, ctx)
	if err != nil {
		return false, err
	}

	if !src.Exists(sourcePath) {
		if ignoreMissing {
			logger.Warn("filemap: source missing, skipping", zap.String("source", sourcePath))
			return true, nil
		}
		logger.Error("filemap: source missing", zap.String("source", sourcePath))
		return false, gerr.Wrap("filemap.applySimple", sourcePath, gerr.ErrMissingSource)
	}

	if e.Template {
		r, err := src.OpenRead(sourcePath)
		if err != nil {
			return false, err
		}
		defer r.Close()
		buf := make([]byte, 0, 4096)
		chunk := make([]byte, 4096)
		for {
			n, readErr := r.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
			}
			if readErr != nil {
				break
			}
		}
		rendered, err := render.Render(string(buf), ctx)
		if err != nil {
			return false, err
		}
		if err := dst.WriteAll(targetPath, []byte(rendered)); err != nil {
			return false, err
		}
		if mode, exists, err := src.Mode(sourcePath); err == nil && exists {
			_ = dst.SetMode(targetPath, mode)
		}
		return true, nil
	}

	if err := copyFile(src, dst, sourcePath, targetPath); err != nil {
		return false, err
	}
	return true, nil
}

func (e Entry) applyGlob(ctx map[string]any, src, dst workspace.Workspace, logger *zap.Logger) (bool, error) {
	pattern, err := render.Render(e.Source, ctx)
	if err != nil {
		return false, err
	}
	targetDir, err := render.Render(e.Target, ctx)
	if err != nil {
		return false, err
	}

	matches, err := src.Glob(pattern)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		logger.Warn("filemap: glob matched nothing", zap.String("pattern", pattern))
	}

	for _, p := range matches {
		targetPath := joinPath(targetDir, p)
		if err := copyFile(src, dst, p, targetPath); err != nil {
			return false, err
		}
	}
	return true, nil
}

func copyFile(src, dst workspace.Workspace, sourcePath, targetPath string) error {
	r, err := src.OpenRead(sourcePath)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := dst.WriteAll(targetPath, r); err != nil {
		return err
	}
	if mode, exists, err := src.Mode(sourcePath); err == nil && exists {
		_ = dst.SetMode(targetPath, mode)
	}
	return nil
}

func joinPath(dir, rel string) string {
	if dir == "" {
		return rel
	}
	return dir + "/" + rel
}
