package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"docgate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.LogDir = ""
	cfgVal.Server.Listen = "127.0.0.1:0"
	cfgVal.Server.ShutdownTimeout = 5
	cfgVal.Office.Port = 0
	cfgVal.Office.StartTimeout = 5
	cfgVal.Office.TaskTimeout = 10
	cfgVal.Office.QueueTimeout = 1
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithUploadCap sets fileupload.fileSizeMax.
func WithUploadCap(limit int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.FileUpload.FileSizeMax = limit
	}
}

// WithStubbedOffice installs a fake office under <base>/office/program/soffice
// and points office.home at it. See StubSoffice for its behaviour.
func WithStubbedOffice() ConfigOption {
	return func(b *configBuilder) {
		home := filepath.Join(b.baseDir, "office")
		WriteStubSoffice(b.t, filepath.Join(home, "program"))
		b.cfg.Office.Home = home
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, soffice is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"soffice"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}
