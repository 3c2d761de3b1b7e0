// Package daemonrun runs a docgate server in the foreground until it is
// signalled or its listener fails.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"docgate/internal/config"
	"docgate/internal/engine"
	"docgate/internal/lifecycle"
	"docgate/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Backend replaces the office backend; nil uses the configured office.
	Backend engine.Backend
	// Ready is called with the bound address once the server accepts requests.
	Ready func(addr string)
	// Logger replaces the logger built from the config.
	Logger *slog.Logger
}

// Run starts the gateway and blocks until ctx is cancelled, SIGINT/SIGTERM
// arrives, or the HTTP server fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger := opts.Logger
	if logger == nil {
		var logPath string
		var err error
		logger, logPath, err = newRunLogger(cfg, opts)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		if logPath != "" {
			if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
				fmt.Fprintf(os.Stderr, "warn: unable to update docgate.log link: %v\n", err)
			}
		}
	}

	if cfg.Paths.LogDir != "" {
		pidPath := filepath.Join(cfg.Paths.LogDir, "docgate.pid")
		if err := writePIDFile(pidPath); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		defer os.Remove(pidPath)
	}

	var lcOpts []lifecycle.Option
	if opts.Backend != nil {
		lcOpts = append(lcOpts, lifecycle.WithBackend(opts.Backend))
	}
	lc, err := lifecycle.New(cfg, logger, lcOpts...)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	if err := lc.Start(signalCtx); err != nil {
		logger.Error("gateway start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "gateway_start_failed"),
			logging.String(logging.FieldErrorHint, "run docgate doctor to check the office installation and ports"),
			logging.String(logging.FieldImpact, "no conversions are served"),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(lc.Addr())
	}

	var serveErr error
	select {
	case <-signalCtx.Done():
		logger.Info("docgate shutting down")
	case serveErr = <-lc.Done():
		if serveErr != nil {
			logger.Error("http server failed", logging.Error(serveErr))
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(cmdCtx), cfg.ShutdownTimeout())
	defer stopCancel()
	stopErr := lc.Stop(stopCtx)
	return errors.Join(serveErr, stopErr)
}

func newRunLogger(cfg *config.Config, opts Options) (*slog.Logger, string, error) {
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{"stdout"}
	var logPath string
	if cfg.Paths.LogDir != "" {
		runID := time.Now().UTC().Format("20060102T150405.000Z")
		logPath = filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("docgate-%s.log", runID))
		outputs = append(outputs, logPath)
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
	})
	return logger, logPath, err
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "docgate.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
