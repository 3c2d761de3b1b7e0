package preflight

import (
	"context"
	"net"
	"strconv"

	"docgate/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check that applies to cfg. Port checks
// only make sense while the server is not running.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir))
	results = append(results, CheckFreeSpace("Scratch free space", cfg.Paths.ScratchDir, MinScratchFreeBytes))

	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if cfg.Office.Profile != "" {
		results = append(results, CheckProfileTemplate(cfg.Office.Profile))
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			result.Detail = status.Command
			if status.Version != "" {
				result.Detail = status.Version
			}
		}
		results = append(results, result)
	}

	results = append(results, CheckPortAvailable("HTTP listener", cfg.Server.Listen))
	if cfg.Office.Port > 0 {
		for i := 0; i < cfg.Office.PoolSize; i++ {
			addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Office.Port+i))
			results = append(results, CheckPortAvailable("Office port "+strconv.Itoa(cfg.Office.Port+i), addr))
		}
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
