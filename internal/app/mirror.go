// Package app provides Mirror, a minimal application that keeps the last
// known slot value in memory. The CLI commands drive it.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/dyluth/larder/internal/host"
	"github.com/dyluth/larder/pkg/slot"
)

// Mirror tracks the slot value it booted with and every notification since.
type Mirror struct {
	store    host.StoreFunc
	onChange func(slot.Value)

	mu      sync.RWMutex
	current slot.Value
	seen    int
}

var _ host.Application = (*Mirror)(nil)

// NewMirror returns a factory that builds a Mirror. onChange, if set, runs on
// the event loop after each notification is applied.
func NewMirror(onChange func(slot.Value)) host.Factory {
	return func(flags slot.Value, store host.StoreFunc) host.Application {
		return &Mirror{
			store:    store,
			onChange: onChange,
			current:  flags,
		}
	}
}

// OnStoreChanged applies a notification.
func (m *Mirror) OnStoreChanged(value slot.Value) {
	m.mu.Lock()
	m.current = value.Clone()
	m.seen++
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(value)
	}
}

// Store encodes v and requests it be persisted. A nil v clears the slot.
// Must be called from the event loop.
func (m *Mirror) Store(ctx context.Context, v any) error {
	value, err := slot.Encode(v)
	if err != nil {
		return err
	}
	if err := m.store(ctx, value); err != nil {
		return fmt.Errorf("store request failed: %w", err)
	}
	return nil
}

// Current returns a copy of the last known value.
func (m *Mirror) Current() slot.Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// CurrentInto decodes the last known value into dst.
// Returns false without touching dst when the slot is absent.
func (m *Mirror) CurrentInto(dst any) (bool, error) {
	return slot.DecodeInto(m.Current(), dst)
}

// Notifications returns how many notifications have been applied.
func (m *Mirror) Notifications() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seen
}
