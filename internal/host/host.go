// Package host boots an application against a persistent slot and wires the
// two bridge channels to it.
package host

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dyluth/larder/internal/bridge"
	"github.com/dyluth/larder/internal/loop"
	"github.com/dyluth/larder/pkg/slot"
)

// Application is the state machine the host drives. OnStoreChanged runs on
// the event loop for local and remote echoes alike.
type Application interface {
	OnStoreChanged(value slot.Value)
}

// StoreFunc is the inbound channel handed to the application.
// Must be called from the event loop.
type StoreFunc func(ctx context.Context, value slot.Value) error

// Factory builds the application from the slot contents read at boot.
type Factory func(flags slot.Value, store StoreFunc) Application

// Options configures Boot.
type Options struct {
	Storage slot.Storage
	Key     string     // defaults to slot.DefaultKey
	Loop    *loop.Loop // defaults to a new loop
}

// Host owns one context: its loop, bridge and listener.
type Host struct {
	loop     *loop.Loop
	bridge   *bridge.Bridge
	listener *bridge.Listener
	app      Application
	flags    slot.Value
}

// Boot reads the slot once, builds the application with those flags and
// starts listening for changes from other contexts.
// A failed boot read is fatal; a missing broadcast is not.
func Boot(ctx context.Context, opts Options, factory Factory) (*Host, error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("application factory is required")
	}
	key := opts.Key
	if key == "" {
		key = slot.DefaultKey
	}
	l := opts.Loop
	if l == nil {
		l = loop.New()
	}

	raw, err := opts.Storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read boot flags: %w", err)
	}
	flags := slot.Decode(raw)

	h := &Host{loop: l, flags: flags}

	h.bridge, err = bridge.New(opts.Storage, key, l, func(value slot.Value) {
		h.app.OnStoreChanged(value)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge: %w", err)
	}

	h.app = factory(flags.Clone(), h.bridge.OnStoreRequest)
	if h.app == nil {
		return nil, fmt.Errorf("application factory returned nil")
	}

	h.listener, err = bridge.NewListener(opts.Storage, key, h.bridge, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	if err := h.listener.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start listener: %w", err)
	}

	log.Printf("[Host] Booted '%s' in area '%s' (flags: %s, cross-context: %t)",
		key, opts.Storage.Area(), describeFlags(flags), !h.listener.Degraded())
	return h, nil
}

func describeFlags(flags slot.Value) string {
	if flags.IsAbsent() {
		return "absent"
	}
	return fmt.Sprintf("%d bytes", len(flags))
}

// Run drives the event loop until ctx is done. Returns nil on cancellation.
func (h *Host) Run(ctx context.Context) error {
	err := h.loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Request submits a store request from outside the event loop and waits for
// the write. The echo arrives later through the application.
func (h *Host) Request(ctx context.Context, value slot.Value) error {
	var reqErr error
	if err := h.loop.Do(ctx, func() {
		reqErr = h.bridge.OnStoreRequest(ctx, value)
	}); err != nil {
		return err
	}
	return reqErr
}

// Do runs fn on the event loop and waits for it.
func (h *Host) Do(ctx context.Context, fn func(app Application)) error {
	return h.loop.Do(ctx, func() {
		fn(h.app)
	})
}

// Flags returns a copy of the slot contents read at boot.
func (h *Host) Flags() slot.Value {
	return h.flags.Clone()
}

// Application returns the booted application.
func (h *Host) Application() Application {
	return h.app
}

// Degraded reports whether the context runs without cross-context sync.
func (h *Host) Degraded() bool {
	return h.listener.Degraded()
}

// Close stops listening for other contexts.
func (h *Host) Close() error {
	return h.listener.Close()
}
