package scratch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docgate/internal/logging"
)

// SweepResult contains the outcome of a stale file sweep.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a file path with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// Entry describes a file currently held in the scratch directory.
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// Sweep removes staged files older than maxAge. Subdirectories and dot files
// (office instance profiles, the lock file) are left alone. A non-positive
// maxAge disables the sweep.
func (m *Manager) Sweep(ctx context.Context, maxAge time.Duration) SweepResult {
	result := SweepResult{}
	if maxAge <= 0 {
		return result
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: m.dir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !isStagedEntry(entry) {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			m.logger.Warn("failed to remove stale scratch file",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "scratch_sweep_failed"),
				logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		m.logger.Info("removed stale scratch file",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "scratch_sweep"),
		)
	}
	return result
}

// List returns the staged files currently present.
func (m *Manager) List() ([]Entry, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []Entry
	for _, entry := range entries {
		if !isStagedEntry(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, Entry{
			Name:    entry.Name(),
			Path:    filepath.Join(m.dir, entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return files, nil
}

func isStagedEntry(entry os.DirEntry) bool {
	return entry.Type().IsRegular() && !strings.HasPrefix(entry.Name(), ".")
}
