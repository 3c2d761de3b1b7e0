// Command docgated runs the conversion gateway as a service process. The
// configuration comes from --config, then DOCGATE_CONFIG, then the default
// path. A .env file in the working directory is loaded first when present.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"docgate/internal/config"
	"docgate/internal/daemonrun"
)

func main() {
	_ = godotenv.Load()

	configPath, err := parseArgs(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("docgated: %v", err)
	}
	if err := run(context.Background(), configPath, daemonrun.Options{}); err != nil {
		log.Fatalf("docgated: %v", err)
	}
}

// parseArgs returns the config path to load. An explicit --config wins over
// DOCGATE_CONFIG.
func parseArgs(args []string, getenv func(string) string) (string, error) {
	fs := flag.NewFlagSet("docgated", flag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "Configuration file path (default: DOCGATE_CONFIG or ~/.config/docgate/config.toml)")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() > 0 {
		return "", fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if fs.Changed("config") {
		return strings.TrimSpace(*configPath), nil
	}
	return strings.TrimSpace(getenv("DOCGATE_CONFIG")), nil
}

func run(ctx context.Context, configPath string, opts daemonrun.Options) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return daemonrun.Run(ctx, cfg, opts)
}
