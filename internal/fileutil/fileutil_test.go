package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileTruncatesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	dst := filepath.Join(dir, "dst.pdf")

	if err := os.WriteFile(src, []byte("%PDF-1.7"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("stale content that is longer"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "%PDF-1.7" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestMoveFileReplacesReservation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "produced.pdf")
	dst := filepath.Join(dir, "reserved.pdf")

	if err := os.WriteFile(src, []byte("result"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, stat err=%v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "result" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestMoveFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := MoveFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "copy")

	if err := os.MkdirAll(filepath.Join(src, "user", "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "user", "registrymodifications.xcu"), []byte("<xml/>"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("registrymodifications.xcu", filepath.Join(src, "user", "link.xcu")); err != nil {
		t.Fatal(err)
	}

	if err := CopyDir(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "user", "registrymodifications.xcu"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "<xml/>" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(filepath.Join(dst, "user", "config"))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected nested directory copied, err=%v", err)
	}
	link, err := os.Readlink(filepath.Join(dst, "user", "link.xcu"))
	if err != nil {
		t.Fatal(err)
	}
	if link != "registrymodifications.xcu" {
		t.Fatalf("unexpected symlink target %q", link)
	}
}

func TestCopyDirRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyDir(file, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error copying a file as a directory")
	}
}
