package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/larder/internal/app"
	"github.com/dyluth/larder/internal/host"
	"github.com/dyluth/larder/internal/printer"
	"github.com/dyluth/larder/internal/watch"
	"github.com/dyluth/larder/pkg/slot"
	"github.com/spf13/cobra"
)

var (
	setRaw       bool
	storeTimeout time.Duration
)

var setCmd = &cobra.Command{
	Use:   "set <value>",
	Short: "Store a value in the slot",
	Long: `Store a value in the slot and wait for the store acknowledgement.

The value must be JSON unless --raw is given. Every other context watching
the same origin receives the new value.

Examples:
  larder set '{"count":1}'
  larder set --raw plain-text-token`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the slot",
	Long: `Remove the slot entirely and wait for the store acknowledgement.

Clearing is distinct from storing an empty value: afterwards the slot is
absent.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	setCmd.Flags().BoolVar(&setRaw, "raw", false, "Store the argument as-is instead of requiring JSON")
	for _, cmd := range []*cobra.Command{setCmd, clearCmd} {
		cmd.Flags().DurationVar(&storeTimeout, "timeout", 5*time.Second, "How long to wait for the acknowledgement")
		rootCmd.AddCommand(cmd)
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	value := slot.Value(args[0])
	if !setRaw && !json.Valid(value) {
		return printer.Error(
			"value is not valid JSON",
			fmt.Sprintf("Got: %s", args[0]),
			[]string{
				"Quote strings as JSON:\n  larder set '\"text\"'",
				"Store the bytes as-is:\n  larder set --raw <value>",
			},
		)
	}
	return storeAndAcknowledge(cmd.Context(), value)
}

func runClear(cmd *cobra.Command, args []string) error {
	return storeAndAcknowledge(cmd.Context(), nil)
}

// storeAndAcknowledge boots a context, issues one store request through its
// application and waits for the echo of that value. Remote echoes carrying
// other values are skipped.
func storeAndAcknowledge(parent context.Context, value slot.Value) error {
	ctx, cancel := context.WithCancel(parent)
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

	acks := make(chan slot.Value, 16)
	h, err := host.Boot(ctx, host.Options{Storage: storage, Key: cfg.StoreKey}, app.NewMirror(func(v slot.Value) {
		select {
		case acks <- v:
		default:
		}
	}))
	if err != nil {
		return fmt.Errorf("failed to boot: %w", err)
	}
	defer h.Close()
	go h.Run(ctx)

	var storeErr error
	if err := h.Do(ctx, func(a host.Application) {
		storeErr = a.(*app.Mirror).Store(ctx, value)
	}); err != nil {
		return err
	}
	if storeErr != nil {
		var suggestions []string
		if errors.Is(storeErr, slot.ErrQuotaExceeded) {
			suggestions = []string{"Store a smaller value, or clear the slot first:\n  larder clear"}
		}
		return printer.ErrorWithContext(
			"store request failed",
			fmt.Sprintf("Error: %v", storeErr),
			map[string]string{"Key": cfg.StoreKey, "Backend": cfg.Backend},
			suggestions,
		)
	}

	if err := watch.WaitForValue(ctx, acks, value, storeTimeout); err != nil {
		return printer.Error("store not acknowledged", fmt.Sprintf("Error: %v", err), nil)
	}

	if value.IsAbsent() {
		printer.Success("Cleared '%s'\n", cfg.StoreKey)
	} else {
		printer.Success("Stored '%s' (%d bytes)\n", cfg.StoreKey, len(value))
	}
	return nil
}
