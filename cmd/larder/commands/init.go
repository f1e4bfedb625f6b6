package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/larder/internal/config"
	"github.com/dyluth/larder/internal/printer"
	"github.com/spf13/cobra"
)

var (
	forceInit   bool
	initBackend string
	initOrigin  string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a larder.yml configuration",
	Long: `Create a larder.yml configuration with default settings.

Use --force to overwrite an existing file.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing configuration")
	initCmd.Flags().StringVar(&initBackend, "backend", config.BackendRedis, "Storage backend (redis, sqlite or memory)")
	initCmd.Flags().StringVar(&initOrigin, "origin", "", "Origin name (default \"default\")")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if _, err := os.Stat(configPath); err == nil {
			return printer.Error(
				fmt.Sprintf("%s already exists", configPath),
				"Refusing to overwrite an existing configuration.",
				[]string{"Overwrite it:\n  larder init --force"},
			)
		}
	}

	cfg := config.Default()
	cfg.Backend = initBackend
	if initOrigin != "" {
		cfg.Origin = initOrigin
	}
	if cfg.Backend != config.BackendRedis {
		cfg.Redis = nil
	}
	if err := cfg.Validate(); err != nil {
		return printer.Error("invalid configuration", fmt.Sprintf("Error: %v", err), nil)
	}

	if err := cfg.Write(configPath); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	printer.Success("Created %s (backend: %s, origin: %s)\n", configPath, cfg.Backend, cfg.Origin)
	return nil
}
