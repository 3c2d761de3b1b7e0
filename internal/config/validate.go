package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateOffice(); err != nil {
		return err
	}
	if err := c.validateFileUpload(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	if c.Paths.ScratchSweepMinutes < 0 {
		return errors.New("paths.scratch_sweep_minutes must be >= 0")
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		return fmt.Errorf("server.listen must be host:port: %w", err)
	}
	return ensurePositiveMap(map[string]int{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
	})
}

func (c *Config) validateOffice() error {
	if c.Office.Port < 0 || c.Office.Port > 65535 {
		return errors.New("office.port must be between 0 and 65535")
	}
	if c.Office.PoolSize < 1 {
		return errors.New("office.pool_size must be >= 1")
	}
	if c.Office.Port > 0 && c.Office.Port+c.Office.PoolSize-1 > 65535 {
		return errors.New("office.port plus office.pool_size exceeds the port range")
	}
	return ensurePositiveMap(map[string]int{
		"office.task_timeout":  c.Office.TaskTimeout,
		"office.queue_timeout": c.Office.QueueTimeout,
		"office.start_timeout": c.Office.StartTimeout,
	})
}

func (c *Config) validateFileUpload() error {
	if c.FileUpload.FileSizeMax < 0 {
		return errors.New("fileupload.fileSizeMax must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
