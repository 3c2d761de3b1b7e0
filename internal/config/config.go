package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir          string `toml:"scratch_dir"`
	LogDir              string `toml:"log_dir"`
	ScratchSweepMinutes int    `toml:"scratch_sweep_minutes"`
}

// Server contains HTTP listener configuration.
type Server struct {
	Listen          string `toml:"listen"`
	ShutdownTimeout int    `toml:"shutdown_timeout"`
	WriteTimeout    int    `toml:"write_timeout"`
	// APIToken, when set, is required as a bearer token on /api/* endpoints.
	APIToken string `toml:"api_token"`
}

// Office contains configuration for the external office conversion engine.
type Office struct {
	// Port is the first listener port; instance N uses Port+N. Zero picks free ports.
	Port int `toml:"port"`
	// Home overrides the office installation directory (soffice lives in Home/program).
	Home string `toml:"home"`
	// Profile is a template user profile copied into every instance.
	Profile      string `toml:"profile"`
	PoolSize     int    `toml:"pool_size"`
	TaskTimeout  int    `toml:"task_timeout"`
	QueueTimeout int    `toml:"queue_timeout"`
	StartTimeout int    `toml:"start_timeout"`
}

// FileUpload contains limits applied to uploaded documents.
type FileUpload struct {
	// FileSizeMax is the maximum accepted upload size in bytes. Zero disables the cap.
	FileSizeMax int64 `toml:"fileSizeMax"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for docgate.
//
// Configuration sections by subsystem:
//   - Paths: scratch and log directories
//   - Server: HTTP listener address and timeouts
//   - Office: office engine installation, ports, pool and timeouts
//   - FileUpload: upload size cap
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Server     Server     `toml:"server"`
	Office     Office     `toml:"office"`
	FileUpload FileUpload `toml:"fileupload"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/docgate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("docgate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for server operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SofficeBinary returns the office executable. When office.home is set the
// binary inside its program directory is preferred; otherwise PATH lookup applies.
func (c *Config) SofficeBinary() string {
	if home := strings.TrimSpace(c.Office.Home); home != "" {
		return filepath.Join(home, "program", "soffice")
	}
	return "soffice"
}

// OfficeTaskTimeout returns the per-conversion deadline.
func (c *Config) OfficeTaskTimeout() time.Duration {
	return time.Duration(c.Office.TaskTimeout) * time.Second
}

// OfficeQueueTimeout returns how long a conversion waits for a free instance.
func (c *Config) OfficeQueueTimeout() time.Duration {
	return time.Duration(c.Office.QueueTimeout) * time.Second
}

// OfficeStartTimeout returns how long each instance gets to accept connections.
func (c *Config) OfficeStartTimeout() time.Duration {
	return time.Duration(c.Office.StartTimeout) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}

// ScratchSweepAge returns the age after which leftover scratch files are removed at start.
func (c *Config) ScratchSweepAge() time.Duration {
	return time.Duration(c.Paths.ScratchSweepMinutes) * time.Minute
}

// UploadCapped reports whether an upload size limit is configured.
func (c *Config) UploadCapped() bool {
	return c.FileUpload.FileSizeMax > 0
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
