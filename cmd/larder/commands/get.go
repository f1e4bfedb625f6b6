package commands

import (
	"fmt"
	"time"

	"github.com/dyluth/larder/internal/printer"
	"github.com/dyluth/larder/internal/watch"
	"github.com/spf13/cobra"
)

var getOutputFormat string

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current slot value",
	Long: `Read the slot once, exactly as an application reads its boot flags,
and print it.

Output Formats:
  default - The raw stored value, or "(absent)"
  json    - A single JSON object`,
	Args: cobra.NoArgs,
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := watch.ParseOutputFormat(getOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	value, err := storage.Get(ctx, cfg.StoreKey)
	if err != nil {
		return printer.ErrorWithContext(
			"slot read failed",
			fmt.Sprintf("Error: %v", err),
			map[string]string{"Key": cfg.StoreKey, "Backend": cfg.Backend},
			nil,
		)
	}

	if format == watch.OutputFormatJSON {
		return watch.WriteNotification(printer.Out(), format, watch.Notification{
			Time:  time.Now(),
			Key:   cfg.StoreKey,
			Value: value,
		})
	}

	if value.IsAbsent() {
		printer.Detail("(absent)\n")
		return nil
	}
	printer.Info("%s\n", value)
	return nil
}
