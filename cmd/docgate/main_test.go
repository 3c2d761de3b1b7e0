package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docgate/internal/api"
	"docgate/internal/config"
	"docgate/internal/lifecycle"
	"docgate/internal/logging"
	"docgate/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	server     string
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, token string) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedOffice())
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("DOCGATE_API_TOKEN", "")
	cfg.Server.APIToken = token

	configPath := filepath.Join(base, "docgate.toml")
	writeTestConfig(t, configPath, cfg)

	l, err := lifecycle.New(cfg, logging.NewNop(), lifecycle.WithBackend(&testsupport.FakeBackend{}))
	if err != nil {
		t.Fatalf("lifecycle.New: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Stop(ctx)
	})

	return &cliTestEnv{cfg: cfg, server: l.Addr(), configPath: configPath, baseDir: base}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath, "--server", e.server}, args...))
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestFormatsCommand(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := env.run(t, "formats")
	if err != nil {
		t.Fatalf("formats: %v", err)
	}
	requireContains(t, out, "pdf")
	requireContains(t, out, "application/pdf")

	out, _, err = env.run(t, "formats", "--json")
	if err != nil {
		t.Fatalf("formats --json: %v", err)
	}
	var resp api.FormatsResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode formats json: %v\n%s", err, out)
	}
	if len(resp.Formats) == 0 {
		t.Fatal("expected formats in json output")
	}
}

func TestConvertCommandWritesOutput(t *testing.T) {
	env := setupCLITestEnv(t, "")

	dir := t.TempDir()
	input := filepath.Join(dir, "report.odt")
	if err := os.WriteFile(input, []byte("report body"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	output := filepath.Join(dir, "out.pdf")

	_, stderr, err := env.run(t, "convert", input, "--to", ".PDF", "-o", output)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	requireContains(t, stderr, "Wrote "+output)

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "report body" {
		t.Fatalf("unexpected output %q", data)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".docgate-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temporary output left behind: %v", leftovers)
	}
}

func TestConvertCommandToStdout(t *testing.T) {
	env := setupCLITestEnv(t, "")

	input := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(input, []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err := env.run(t, "convert", input, "--to", "pdf", "-o", "-")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out != "plain" {
		t.Fatalf("unexpected stdout %q", out)
	}
}

func TestConvertCommandRequiresTarget(t *testing.T) {
	env := setupCLITestEnv(t, "")
	input := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.run(t, "convert", input); err == nil || !strings.Contains(err.Error(), "--to") {
		t.Fatalf("expected --to error, got %v", err)
	}
}

func TestConvertCommandReportsGatewayError(t *testing.T) {
	env := setupCLITestEnv(t, "")
	input := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "a.pdf")
	_, _, err := env.run(t, "convert", input, "--to", "bad-ext!", "-o", out)
	if err == nil {
		t.Fatal("expected error for invalid target")
	}
	requireContains(t, err.Error(), "invalid_format")
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatal("no output should be written on failure")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Engine ==")
	requireContains(t, out, "[OK] running")
	requireContains(t, out, "not configured")

	out, _, err = env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.StatusResponse
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Engine.State != "running" || status.PID != os.Getpid() {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestStatusCommandHonoursToken(t *testing.T) {
	env := setupCLITestEnv(t, "s3cret")

	// The config file carries the token, so drop it to exercise the flag.
	cfgNoToken := *env.cfg
	cfgNoToken.Server.APIToken = ""
	writeTestConfig(t, env.configPath, &cfgNoToken)

	if _, _, err := env.run(t, "status"); err == nil || !strings.Contains(err.Error(), "--token") {
		t.Fatalf("expected token hint, got %v", err)
	}
	if _, _, err := env.run(t, "--token", "s3cret", "status"); err != nil {
		t.Fatalf("status with token: %v", err)
	}
}

func TestStatusCommandWithoutGateway(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "docgate.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"--config", configPath, "--server", "127.0.0.1:1", "status"})
	if err == nil {
		t.Fatal("expected connection error")
	}
	requireContains(t, err.Error(), "docgate serve")
}

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	out, _, err = runCLI(t, []string{"--config", target, "config", "validate"})
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigShowRedactsToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.APIToken = "very-secret"
	configPath := filepath.Join(testsupport.BaseDir(cfg), "docgate.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"--config", configPath, "config", "show"})
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "very-secret") {
		t.Fatalf("token leaked:\n%s", out)
	}
	requireContains(t, out, redactedToken)
	requireContains(t, out, cfg.Paths.ScratchDir)
}

func TestDoctorListsChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedOffice())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "docgate.toml")
	writeTestConfig(t, configPath, cfg)

	// Free space depends on the host, so only the rendered checks are asserted.
	out, _, _ := runCLI(t, []string{"--config", configPath, "doctor"})
	requireContains(t, out, "Scratch directory")
	requireContains(t, out, "LibreOffice")
	requireContains(t, out, "docgate-stub")
}

func TestLogsCommandFiltersByRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.LogDir = filepath.Join(testsupport.BaseDir(cfg), "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "docgate.toml")
	writeTestConfig(t, configPath, cfg)

	content := "first request_id=aaa\nsecond request_id=bbb\nthird request_id=aaa\n"
	if err := os.WriteFile(filepath.Join(cfg.Paths.LogDir, "docgate.log"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"--config", configPath, "logs", "--request", "aaa"})
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "first request_id=aaa\nthird request_id=aaa\n" {
		t.Fatalf("unexpected logs output %q", out)
	}

	out, _, err = runCLI(t, []string{"--config", configPath, "logs", "-n", "1"})
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if out != "third request_id=aaa\n" {
		t.Fatalf("unexpected tail %q", out)
	}
}
