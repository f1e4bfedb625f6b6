package bridge

import (
	"context"
	"fmt"

	"github.com/dyluth/larder/pkg/slot"
)

// Scheduler defers work to a later turn of the event loop.
// *loop.Loop satisfies it.
type Scheduler interface {
	Post(fn func())
}

// Outbound receives store-changed notifications.
type Outbound func(value slot.Value)

// Bridge mediates between one application and its persistent slot.
// It holds no state between calls; every call is an independent transaction
// against the slot. Methods must be called from the event loop.
type Bridge struct {
	storage slot.Storage
	key     string
	sched   Scheduler
	out     Outbound
}

// New creates a bridge writing to key in storage and notifying out.
func New(storage slot.Storage, key string, sched Scheduler, out Outbound) (*Bridge, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if sched == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if out == nil {
		return nil, fmt.Errorf("outbound channel is required")
	}
	if err := slot.ValidateKey(key); err != nil {
		return nil, err
	}

	return &Bridge{
		storage: storage,
		key:     key,
		sched:   sched,
		out:     out,
	}, nil
}

// Key returns the store key.
func (b *Bridge) Key() string {
	return b.key
}

// OnStoreRequest persists value and schedules its echo.
//
// A present value is written to the slot; an absent value removes the slot.
// The echo carries the same value and is posted to the scheduler only after
// the write returned, so it never runs inside this call. When the write
// fails the error is returned and no echo is scheduled.
func (b *Bridge) OnStoreRequest(ctx context.Context, value slot.Value) error {
	var err error
	if value.IsAbsent() {
		err = b.storage.Remove(ctx, b.key)
	} else {
		err = b.storage.Set(ctx, b.key, value)
	}
	if err != nil {
		return fmt.Errorf("failed to persist '%s': %w", b.key, err)
	}

	echo := value.Clone()
	b.sched.Post(func() {
		b.out(echo)
	})
	return nil
}

// EmitExternalChange forwards a change made by another context to the
// outbound channel immediately.
func (b *Bridge) EmitExternalChange(value slot.Value) {
	b.out(value)
}
