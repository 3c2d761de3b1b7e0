package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"docgate/internal/config"
)

func clearDocgateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DOCGATE_OFFICE_HOME",
		"DOCGATE_OFFICE_PORT",
		"DOCGATE_OFFICE_PROFILE",
		"DOCGATE_FILEUPLOAD_FILESIZEMAX",
		"DOCGATE_LISTEN",
		"DOCGATE_API_TOKEN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearDocgateEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantScratch := filepath.Join(tempHome, ".local", "share", "docgate", "scratch")
	if cfg.Paths.ScratchDir != wantScratch {
		t.Fatalf("unexpected scratch dir: got %q want %q", cfg.Paths.ScratchDir, wantScratch)
	}
	if cfg.Server.Listen != "127.0.0.1:8080" {
		t.Fatalf("unexpected listen address: %q", cfg.Server.Listen)
	}
	if cfg.Office.Port != 2002 {
		t.Fatalf("unexpected office port: %d", cfg.Office.Port)
	}
	if cfg.Office.PoolSize != 1 {
		t.Fatalf("unexpected pool size: %d", cfg.Office.PoolSize)
	}
	if cfg.UploadCapped() {
		t.Fatal("expected upload cap disabled by default")
	}
	if cfg.SofficeBinary() != "soffice" {
		t.Fatalf("expected PATH lookup binary, got %q", cfg.SofficeBinary())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.ScratchDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearDocgateEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "docgate.toml")

	contents := `
[paths]
scratch_dir = "` + filepath.Join(tempDir, "scratch") + `"

[office]
port = 8100
home = "` + filepath.Join(tempDir, "office") + `"
pool_size = 3

[fileupload]
fileSizeMax = 1048576
`
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Office.Port != 8100 || cfg.Office.PoolSize != 3 {
		t.Fatalf("unexpected office settings: %+v", cfg.Office)
	}
	if cfg.FileUpload.FileSizeMax != 1048576 {
		t.Fatalf("expected fileSizeMax from file, got %d", cfg.FileUpload.FileSizeMax)
	}
	wantBinary := filepath.Join(tempDir, "office", "program", "soffice")
	if cfg.SofficeBinary() != wantBinary {
		t.Fatalf("unexpected soffice binary: got %q want %q", cfg.SofficeBinary(), wantBinary)
	}
}

func TestEnvFallbacksApplyWhenUnset(t *testing.T) {
	clearDocgateEnv(t)
	tempDir := t.TempDir()
	t.Setenv("DOCGATE_OFFICE_HOME", filepath.Join(tempDir, "lo"))
	t.Setenv("DOCGATE_OFFICE_PORT", "9000")
	t.Setenv("DOCGATE_OFFICE_PROFILE", filepath.Join(tempDir, "profile"))
	t.Setenv("DOCGATE_FILEUPLOAD_FILESIZEMAX", "25MB")
	t.Setenv("DOCGATE_LISTEN", "0.0.0.0:9090")
	t.Setenv("DOCGATE_API_TOKEN", " secret ")

	cfg, _, _, err := config.Load(filepath.Join(tempDir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Office.Home != filepath.Join(tempDir, "lo") {
		t.Errorf("expected office home from env, got %q", cfg.Office.Home)
	}
	if cfg.Office.Port != 9000 {
		t.Errorf("expected office port from env, got %d", cfg.Office.Port)
	}
	if cfg.Office.Profile != filepath.Join(tempDir, "profile") {
		t.Errorf("expected office profile from env, got %q", cfg.Office.Profile)
	}
	if cfg.FileUpload.FileSizeMax != 25_000_000 {
		t.Errorf("expected 25MB cap from env, got %d", cfg.FileUpload.FileSizeMax)
	}
	if cfg.Server.Listen != "0.0.0.0:9090" {
		t.Errorf("expected listen from env, got %q", cfg.Server.Listen)
	}
	if cfg.Server.APIToken != "secret" {
		t.Errorf("expected api token from env, got %q", cfg.Server.APIToken)
	}
}

func TestFileValuesWinOverEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
		body  string
		check func(*config.Config) bool
	}{
		{
			name: "upload cap", env: "DOCGATE_FILEUPLOAD_FILESIZEMAX", value: "1GB",
			body:  "[fileupload]\nfileSizeMax = 10\n",
			check: func(c *config.Config) bool { return c.FileUpload.FileSizeMax == 10 },
		},
		{
			name: "office port", env: "DOCGATE_OFFICE_PORT", value: "9000",
			body:  "[office]\nport = 8100\n",
			check: func(c *config.Config) bool { return c.Office.Port == 8100 },
		},
		{
			name: "office port zero", env: "DOCGATE_OFFICE_PORT", value: "9000",
			body:  "[office]\nport = 0\n",
			check: func(c *config.Config) bool { return c.Office.Port == 0 },
		},
		{
			name: "listen", env: "DOCGATE_LISTEN", value: "0.0.0.0:9090",
			body:  "[server]\nlisten = \"127.0.0.1:7000\"\n",
			check: func(c *config.Config) bool { return c.Server.Listen == "127.0.0.1:7000" },
		},
		{
			name: "api token", env: "DOCGATE_API_TOKEN", value: "from-env",
			body:  "[server]\napi_token = \"from-file\"\n",
			check: func(c *config.Config) bool { return c.Server.APIToken == "from-file" },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearDocgateEnv(t)
			t.Setenv(tc.env, tc.value)
			path := filepath.Join(t.TempDir(), "docgate.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			cfg, _, _, err := config.Load(path)
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if !tc.check(cfg) {
				t.Fatalf("%s from the environment overrode the file value: %+v", tc.env, cfg)
			}
		})
	}
}

func TestEnvFillsKeysMissingFromFile(t *testing.T) {
	clearDocgateEnv(t)
	t.Setenv("DOCGATE_LISTEN", "0.0.0.0:9090")
	t.Setenv("DOCGATE_OFFICE_PORT", "9000")
	path := filepath.Join(t.TempDir(), "docgate.toml")
	if err := os.WriteFile(path, []byte("[office]\npool_size = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Listen != "0.0.0.0:9090" || cfg.Office.Port != 9000 || cfg.Office.PoolSize != 2 {
		t.Fatalf("unexpected merge of file and env: listen=%q port=%d pool=%d",
			cfg.Server.Listen, cfg.Office.Port, cfg.Office.PoolSize)
	}
}

func TestLoadRejectsBadEnvValues(t *testing.T) {
	clearDocgateEnv(t)
	t.Setenv("DOCGATE_OFFICE_PORT", "high")
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil ||
		!strings.Contains(err.Error(), "DOCGATE_OFFICE_PORT") {
		t.Fatalf("expected DOCGATE_OFFICE_PORT error, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "negative port", body: "[office]\nport = -1\n", wantErr: "office.port"},
		{name: "port range overflow", body: "[office]\nport = 65535\npool_size = 2\n", wantErr: "port range"},
		{name: "negative upload cap", body: "[fileupload]\nfileSizeMax = -5\n", wantErr: "fileupload.fileSizeMax"},
		{name: "bad listen", body: "[server]\nlisten = \"nope\"\n", wantErr: "server.listen"},
		{name: "bad level", body: "[logging]\nlevel = \"loud\"\n", wantErr: "logging.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearDocgateEnv(t)
			path := filepath.Join(t.TempDir(), "docgate.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	clearDocgateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	for _, want := range []string{"[office]", "[fileupload]", "fileSizeMax"} {
		if !strings.Contains(string(contents), want) {
			t.Fatalf("sample missing %q", want)
		}
	}

	var decoded config.Config
	if err := toml.Unmarshal(contents, &decoded); err != nil {
		t.Fatalf("sample does not parse: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}

func TestEncodeRoundTripsEffectiveConfig(t *testing.T) {
	cfg := config.Default()
	cfg.FileUpload.FileSizeMax = 2048
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), "fileSizeMax = 2048") {
		t.Fatalf("encoded config missing upload cap:\n%s", data)
	}
}
