// Package atomicfile writes files atomically: a temp file in the target
// directory is written and renamed over the destination, with a
// backup-and-restore fallback for platforms where rename-over-existing
// fails.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Write atomically replaces path's contents with data. It writes to a
// sibling temp file, fsyncs it, and renames it over path. If the direct
// rename fails (some platforms refuse rename-over-existing), it falls back
// to: rename path -> path+".bak", rename temp -> path, remove .bak on
// success, restore .bak on failure.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("atomicfile: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("atomicfile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("atomicfile: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomicfile: close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("atomicfile: chmod temp: %w", err)
	}

	if err := os.Rename(tmpPath, path); err == nil {
		cleanupTmp = false
		return nil
	}

	// Rename-over-existing failed; fall back to backup-and-restore.
	bakPath := path + ".bak"
	targetExists := true
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) {
			targetExists = false
		} else {
			return fmt.Errorf("atomicfile: stat target: %w", statErr)
		}
	}

	if targetExists {
		if err := os.Rename(path, bakPath); err != nil {
			return fmt.Errorf("atomicfile: backup existing target: %w", err)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			_ = os.Rename(bakPath, path) // restore
			return fmt.Errorf("atomicfile: move temp into place: %w", err)
		}
		cleanupTmp = false
		_ = os.Remove(bakPath)
		return nil
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomicfile: move temp into place: %w", err)
	}
	cleanupTmp = false
	return nil
}

// WriteNoClobber writes data to path only if path does not already exist,
// failing fast otherwise.
func WriteNoClobber(path string, data []byte, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("atomicfile: target already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("atomicfile: stat target: %w", err)
	}
	return Write(path, data, perm)
}
