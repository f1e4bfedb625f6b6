package commands

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/larder/internal/app"
	"github.com/dyluth/larder/internal/host"
	"github.com/dyluth/larder/internal/printer"
	"github.com/dyluth/larder/internal/watch"
	"github.com/dyluth/larder/pkg/slot"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchCount        int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream slot changes from other contexts",
	Long: `Boot a context and print every store-changed notification it receives
until interrupted.

Output Formats:
  default - Human-readable output with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the configured slot
  larder watch

  # Export changes as JSON
  larder watch --output=json > changes.jsonl

  # Exit after the first change
  larder watch --count 1`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().IntVar(&watchCount, "count", 0, "Exit after this many notifications (0 = run until interrupted)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	out := printer.Out()
	seq := 0
	onChange := func(v slot.Value) {
		seq++
		if err := watch.WriteNotification(out, format, watch.Notification{
			Seq:   seq,
			Time:  time.Now(),
			Key:   cfg.StoreKey,
			Value: v,
		}); err != nil {
			log.Printf("[Watch] %v", err)
		}
		if watchCount > 0 && seq >= watchCount {
			cancel()
		}
	}

	h, err := host.Boot(ctx, host.Options{Storage: storage, Key: cfg.StoreKey}, app.NewMirror(onChange))
	if err != nil {
		return printer.ErrorWithContext(
			"boot failed",
			err.Error(),
			map[string]string{"Key": cfg.StoreKey, "Backend": cfg.Backend},
			nil,
		)
	}
	defer h.Close()

	if format == watch.OutputFormatDefault {
		printer.Step("Watching '%s' on origin '%s' (%s)\n", cfg.StoreKey, cfg.Origin, cfg.Backend)
		printer.Detail("  boot value: %s\n", h.Flags())
		if h.Degraded() {
			printer.Warning("The %s backend cannot broadcast: changes from other contexts will not appear\n", cfg.Backend)
		}
	}

	return h.Run(ctx)
}
