// Package fileutil holds the small file operations shared by the scratch
// manager and the office backend.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// CopyFile copies src to dst with mode 0o644, truncating dst if it exists.
func CopyFile(src, dst string) error {
	_, err := copyContents(src, dst, 0o644)
	return err
}

// copyContents truncates rather than replaces dst, so a path reserved with
// O_EXCL keeps its inode. It returns the number of bytes written.
func copyContents(src, dst string, mode os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// MoveFile renames src onto dst. Across filesystems it copies, checks the
// copied size against the source and removes src; a short copy removes dst.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	written, err := copyContents(src, dst, 0o644)
	if err != nil {
		return err
	}
	if written != info.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	return os.Remove(src)
}

// CopyDir recursively copies the tree rooted at src into dst, preserving file
// modes. Symlinks are recreated rather than followed.
func CopyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			entryInfo, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, entryInfo.Mode().Perm()|0o700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			entryInfo, err := d.Info()
			if err != nil {
				return err
			}
			_, err = copyContents(path, target, entryInfo.Mode().Perm())
			return err
		default:
			return nil
		}
	})
}
