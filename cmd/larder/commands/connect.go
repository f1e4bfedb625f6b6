package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/larder/internal/backend"
	"github.com/dyluth/larder/internal/config"
	"github.com/dyluth/larder/internal/printer"
)

// loadConfig loads the --config file, falling back to defaults when absent.
func loadConfig() (*config.LarderConfig, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Fix %s, or regenerate it:\n  larder init --force", configPath)},
		)
	}
	return cfg, nil
}

// openStorage opens the configured backend, printing a formatted error on
// failure.
func openStorage(ctx context.Context, cfg *config.LarderConfig) (backend.Storage, error) {
	storage, err := backend.Open(ctx, cfg)
	if err != nil {
		details := map[string]string{
			"Backend": cfg.Backend,
			"Origin":  cfg.Origin,
			"Area":    cfg.Area,
		}
		var suggestions []string
		switch cfg.Backend {
		case config.BackendRedis:
			details["Redis"] = cfg.Redis.URL
			suggestions = []string{
				"Start Redis locally:\n  docker run -d -p 6379:6379 redis:7-alpine",
				fmt.Sprintf("Point at another server:\n  %s=redis://host:6379 larder ...", config.EnvRedisURL),
			}
		case config.BackendSQLite:
			details["Path"] = cfg.SQLite.Path
			suggestions = []string{"Check the directory exists and is writable"}
		}
		return nil, printer.ErrorWithContext(
			"storage connection failed",
			fmt.Sprintf("Error: %v", err),
			details,
			suggestions,
		)
	}
	return storage, nil
}
