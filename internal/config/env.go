package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// applyEnv layers DOCGATE_* variables over the defaults. Load runs it before
// decoding the file, so any key the file sets wins over the environment.
// Blank variables are ignored.
func (c *Config) applyEnv() error {
	if value, ok := lookupEnv("DOCGATE_LISTEN"); ok {
		c.Server.Listen = value
	}
	if value, ok := lookupEnv("DOCGATE_API_TOKEN"); ok {
		c.Server.APIToken = value
	}
	if value, ok := lookupEnv("DOCGATE_OFFICE_HOME"); ok {
		c.Office.Home = value
	}
	if value, ok := lookupEnv("DOCGATE_OFFICE_PROFILE"); ok {
		c.Office.Profile = value
	}
	if value, ok := lookupEnv("DOCGATE_OFFICE_PORT"); ok {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("DOCGATE_OFFICE_PORT: %w", err)
		}
		c.Office.Port = port
	}
	// The upload cap also accepts human sizes such as "25MB" or "1 GiB".
	if value, ok := lookupEnv("DOCGATE_FILEUPLOAD_FILESIZEMAX"); ok {
		size, err := humanize.ParseBytes(value)
		if err != nil {
			return fmt.Errorf("DOCGATE_FILEUPLOAD_FILESIZEMAX: %w", err)
		}
		c.FileUpload.FileSizeMax = int64(size)
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}
