package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/larder/internal/app"
	"github.com/dyluth/larder/internal/host"
	"github.com/dyluth/larder/internal/memslot"
	"github.com/dyluth/larder/internal/printer"
	"github.com/dyluth/larder/internal/watch"
	"github.com/dyluth/larder/pkg/slot"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Show local and remote echoes between in-memory contexts",
	Long: `Run contexts on a throwaway in-memory origin and trace how a store
request in one context reaches every other.

No configuration or external services are needed.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

// demoTab is one context in the demo.
type demoTab struct {
	name  string
	host  *host.Host
	notes chan slot.Value
}

func bootDemoTab(ctx context.Context, origin *memslot.Origin, name string) (*demoTab, error) {
	tab := &demoTab{name: name, notes: make(chan slot.Value, 16)}
	h, err := host.Boot(ctx, host.Options{Storage: origin.Open(slot.AreaLocal)}, app.NewMirror(func(v slot.Value) {
		tab.notes <- v
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to boot %s: %w", name, err)
	}
	tab.host = h
	go h.Run(ctx)
	return tab, nil
}

func (t *demoTab) store(ctx context.Context, v slot.Value) error {
	var storeErr error
	if err := t.host.Do(ctx, func(a host.Application) {
		storeErr = a.(*app.Mirror).Store(ctx, v)
	}); err != nil {
		return err
	}
	return storeErr
}

func (t *demoTab) expect(ctx context.Context, kind string) error {
	v, err := watch.WaitForNotification(ctx, t.notes, 2*time.Second)
	if err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}
	printer.Info("    %s %s echo: %s\n", t.name, kind, v)
	return nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	origin := memslot.NewOrigin("demo")

	tab1, err := bootDemoTab(ctx, origin, "tab-1")
	if err != nil {
		return err
	}
	defer tab1.host.Close()
	tab2, err := bootDemoTab(ctx, origin, "tab-2")
	if err != nil {
		return err
	}
	defer tab2.host.Close()

	steps := []struct {
		title string
		from  *demoTab
		to    *demoTab
		value slot.Value
	}{
		{"tab-1 stores {\"count\":1}", tab1, tab2, slot.Value(`{"count":1}`)},
		{"tab-2 stores {\"count\":2}", tab2, tab1, slot.Value(`{"count":2}`)},
	}

	for _, step := range steps {
		printer.Step("%s\n", step.title)
		if err := step.from.store(ctx, step.value); err != nil {
			return err
		}
		if err := step.from.expect(ctx, "local"); err != nil {
			return err
		}
		if err := step.to.expect(ctx, "remote"); err != nil {
			return err
		}
	}

	printer.Step("tab-3 boots\n")
	tab3, err := bootDemoTab(ctx, origin, "tab-3")
	if err != nil {
		return err
	}
	defer tab3.host.Close()
	printer.Info("    tab-3 boot value: %s\n", tab3.host.Flags())
	var counter struct {
		Count int `json:"count"`
	}
	var decodeErr error
	if err := tab3.host.Do(ctx, func(a host.Application) {
		_, decodeErr = a.(*app.Mirror).CurrentInto(&counter)
	}); err != nil {
		return err
	}
	if decodeErr != nil {
		return decodeErr
	}
	printer.Info("    tab-3 decoded count: %d\n", counter.Count)

	printer.Step("tab-3 clears the slot\n")
	if err := tab3.store(ctx, nil); err != nil {
		return err
	}
	for _, step := range []struct {
		tab  *demoTab
		kind string
	}{{tab3, "local"}, {tab1, "remote"}, {tab2, "remote"}} {
		if err := step.tab.expect(ctx, step.kind); err != nil {
			return err
		}
	}

	printer.Info("\n")
	var rows []watch.ContextSummary
	for _, tab := range []*demoTab{tab1, tab2, tab3} {
		var row watch.ContextSummary
		if err := tab.host.Do(ctx, func(a host.Application) {
			m := a.(*app.Mirror)
			row = watch.ContextSummary{Name: tab.name, Notifications: m.Notifications(), Current: m.Current()}
		}); err != nil {
			return err
		}
		rows = append(rows, row)
	}
	watch.FormatTable(printer.Out(), origin.Name(), rows)

	printer.Success("All contexts converged\n")
	return nil
}
