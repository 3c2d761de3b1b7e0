package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docgate/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("scratch", dir, 1); !result.Passed {
		t.Fatalf("expected pass with a 1 byte minimum, got %s", result.Detail)
	}
	result := CheckFreeSpace("scratch", dir, ^uint64(0))
	if result.Passed {
		t.Fatal("expected failure with an impossible minimum")
	}
	if !strings.Contains(result.Detail, "need at least") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
	if result := CheckFreeSpace("scratch", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckPortAvailable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	if result := CheckPortAvailable("busy", listener.Addr().String()); result.Passed {
		t.Fatal("expected failure for a bound port")
	}
	if result := CheckPortAvailable("free", "127.0.0.1:0"); !result.Passed {
		t.Fatalf("expected pass for port 0, got %s", result.Detail)
	}
}

func TestCheckProfileTemplate(t *testing.T) {
	dir := t.TempDir()
	if result := CheckProfileTemplate(dir); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckProfileTemplate(filepath.Join(dir, "missing")); result.Passed {
		t.Fatal("expected failure for missing template")
	}
}

func TestRunAllWithStubbedOffice(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedOffice())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Scratch directory", "LibreOffice", "HTTP listener"} {
		r, ok := byName[name]
		if !ok {
			t.Fatalf("missing %q check in %v", name, results)
		}
		if !r.Passed {
			t.Fatalf("%s check failed: %s", name, r.Detail)
		}
	}
}

func TestRunAllReportsMissingOffice(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Office.Home = filepath.Join(t.TempDir(), "no-office")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	failed := Failed(RunAll(context.Background(), cfg))
	var sawOffice bool
	for _, r := range failed {
		if r.Name == "LibreOffice" {
			sawOffice = true
		}
	}
	if !sawOffice {
		t.Fatalf("expected LibreOffice failure, got %v", failed)
	}
}

func TestCheckSystemDepsFindsOfficeOnPath(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("soffice"))

	statuses := CheckSystemDeps(context.Background(), cfg)
	if len(statuses) != 1 {
		t.Fatalf("expected one dependency, got %d", len(statuses))
	}
	if !statuses[0].Available {
		t.Fatalf("expected soffice from PATH to be available: %s", statuses[0].Detail)
	}
	if !strings.HasSuffix(statuses[0].Command, "soffice") {
		t.Fatalf("unexpected command %q", statuses[0].Command)
	}
}
