package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	if err := c.normalizeOffice(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Listen = strings.TrimSpace(c.Server.Listen)
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
}

func (c *Config) normalizeOffice() error {
	var err error
	if c.Office.Home, err = expandPath(strings.TrimSpace(c.Office.Home)); err != nil {
		return fmt.Errorf("office.home: %w", err)
	}
	if c.Office.Profile, err = expandPath(strings.TrimSpace(c.Office.Profile)); err != nil {
		return fmt.Errorf("office.profile: %w", err)
	}
	if c.Office.PoolSize <= 0 {
		c.Office.PoolSize = defaultOfficePoolSize
	}
	if c.Office.TaskTimeout <= 0 {
		c.Office.TaskTimeout = defaultOfficeTaskTimeout
	}
	if c.Office.QueueTimeout <= 0 {
		c.Office.QueueTimeout = defaultOfficeQueueTimeout
	}
	if c.Office.StartTimeout <= 0 {
		c.Office.StartTimeout = defaultOfficeStartTimeout
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
