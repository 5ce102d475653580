// Package storage owns the destination tree. Files under the
// destination root are append-only: existing files are read-checked for
// dedup but never mutated or overwritten.
package storage

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "coursegrab/pkg/errors"
)

// Manager handles placement into the mirrored destination tree and
// duplicate detection by presence
type Manager struct {
	root string
}

// NewManager creates a storage manager rooted at the destination
// directory, creating it if needed
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination root: %w", err)
	}
	return &Manager{root: abs}, nil
}

// Root returns the absolute destination root
func (m *Manager) Root() string {
	return m.root
}

// resolve joins a relative destination path onto the root, refusing
// anything that would escape it
func (m *Manager) resolve(relPath string) (string, error) {
	joined := filepath.Join(m.root, relPath)
	if joined != m.root && !strings.HasPrefix(joined, m.root+string(filepath.Separator)) {
		return "", errs.Newf(errs.ErrorTypeFilesystem, "path %q escapes destination root", relPath)
	}
	return joined, nil
}

// Exists reports whether a file is already present at the destination
// path
func (m *Manager) Exists(relPath string) bool {
	abs, err := m.resolve(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

// Placed reports whether a task's output already sits at the
// destination path in any of its placed forms: the path itself, a file
// that gained a borrowed extension (label "Week 1" placed as
// "Week 1.zip"), or the directory an extracted package left behind.
func (m *Manager) Placed(relPath string) bool {
	abs, err := m.resolve(relPath)
	if err != nil {
		return false
	}
	if _, err := os.Stat(abs); err == nil {
		return true
	}

	ext := filepath.Ext(relPath)
	if ext != "" {
		// An extracted package is removed after unpacking; its
		// directory is the presence signal
		info, err := os.Stat(strings.TrimSuffix(abs, ext))
		return err == nil && info.IsDir()
	}

	entries, err := os.ReadDir(filepath.Dir(abs))
	if err != nil {
		return false
	}
	prefix := filepath.Base(abs) + "."
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			return true
		}
	}
	return false
}

// Place moves a completed download from the staging area into its
// destination path, creating intermediate directories. The move is the
// last step, so no half-written file ever sits at a completed-looking
// destination. Never overwrites.
func (m *Manager) Place(srcPath, relPath string) error {
	dest, err := m.resolve(relPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dest); err == nil {
		return errs.Newf(errs.ErrorTypeFilesystem, "destination already exists: %s", relPath)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to create destination directory", err)
	}

	if err := os.Rename(srcPath, dest); err == nil {
		return nil
	}

	// Staging and destination can live on different filesystems;
	// fall back to copy-then-rename within the destination
	if err := m.copyInto(srcPath, dest); err != nil {
		return err
	}
	return os.Remove(srcPath)
}

// copyInto copies srcPath to dest via a temp file and atomic rename
func (m *Manager) copyInto(srcPath, dest string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to open staged file", err)
	}
	defer src.Close()

	tmp := dest + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to create temporary file", err)
	}

	_, copyErr := io.Copy(out, src)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to copy staged file", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to close destination file", closeErr)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to move file into place", err)
	}
	return nil
}

// WriteSnapshot writes captured page HTML at the destination path via
// temp file and atomic rename. Never overwrites.
func (m *Manager) WriteSnapshot(relPath, html string) error {
	dest, err := m.resolve(relPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dest); err == nil {
		return errs.Newf(errs.ErrorTypeFilesystem, "destination already exists: %s", relPath)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to create destination directory", err)
	}

	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, []byte(html), 0644); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to write snapshot", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to move snapshot into place", err)
	}
	return nil
}

// ExtractArchive unpacks a placed zip archive into its own directory,
// removes the archive, and drops the portal's "Table of Contents"
// index pages. Entries that would escape the archive's directory are
// skipped.
func (m *Manager) ExtractArchive(relPath string) error {
	archive, err := m.resolve(relPath)
	if err != nil {
		return err
	}

	// The archive's own name, minus extension, becomes the package
	// directory. It doubles as the presence signal for re-runs once
	// the archive itself is gone.
	destDir := strings.TrimSuffix(archive, filepath.Ext(archive))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to create package directory", err)
	}

	r, err := zip.OpenReader(archive)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to open archive", err)
	}

	for _, f := range r.File {
		if strings.Contains(f.Name, "Table of Contents") {
			continue
		}
		if err := extractEntry(f, destDir); err != nil {
			r.Close()
			return err
		}
	}
	if err := r.Close(); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to close archive", err)
	}

	if err := os.Remove(archive); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to remove extracted archive", err)
	}
	return nil
}

// extractEntry writes one archive entry under destDir
func extractEntry(f *zip.File, destDir string) error {
	target := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(target, destDir+string(filepath.Separator)) {
		// Zip-slip entry, refuse silently
		return nil
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0755); err != nil {
			return errs.Wrap(errs.ErrorTypeFilesystem, "failed to create archive directory", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to create archive directory", err)
	}

	in, err := f.Open()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to read archive entry", err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		// Already extracted by an earlier run; leave it untouched
		if os.IsExist(err) {
			return nil
		}
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to create archive entry", err)
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to extract archive entry", copyErr)
	}
	if closeErr != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to close archive entry", closeErr)
	}
	return nil
}
