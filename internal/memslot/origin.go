// Package memslot provides a process-local origin whose contexts share slots
// and storage broadcasts in memory. It backs tests and the demo command.
package memslot

import (
	"context"
	"fmt"
	"sync"

	"github.com/dyluth/larder/pkg/slot"
	"github.com/google/uuid"
)

// Origin is a shared in-memory store. Every Storage opened from it is a
// separate context.
type Origin struct {
	name string

	mu               sync.Mutex
	areas            map[string]map[string]slot.Value
	subscribers      map[*subscriber]struct{}
	quota            int
	disabled         bool
	broadcastBlocked bool
}

// Option configures an Origin.
type Option func(*Origin)

// WithQuota limits each area to n bytes of keys plus values.
// Zero means unlimited.
func WithQuota(n int) Option {
	return func(o *Origin) {
		o.quota = n
	}
}

// WithoutBroadcast makes Subscribe fail with slot.ErrBroadcastUnavailable,
// as a sandboxed context would.
func WithoutBroadcast() Option {
	return func(o *Origin) {
		o.broadcastBlocked = true
	}
}

// NewOrigin creates an empty origin.
func NewOrigin(name string, opts ...Option) *Origin {
	o := &Origin{
		name:        name,
		areas:       make(map[string]map[string]slot.Value),
		subscribers: make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name returns the origin name.
func (o *Origin) Name() string {
	return o.name
}

// SetDisabled toggles write refusal for every context of the origin.
func (o *Origin) SetDisabled(disabled bool) {
	o.mu.Lock()
	o.disabled = disabled
	o.mu.Unlock()
}

// Open creates a new context onto area.
func (o *Origin) Open(area string) *Storage {
	return &Storage{
		origin:    o,
		area:      area,
		contextID: uuid.New().String(),
	}
}

// Storage is one context's handle onto an Origin.
type Storage struct {
	origin    *Origin
	area      string
	contextID string
}

var _ slot.Storage = (*Storage)(nil)

// Area returns the storage area of this context.
func (s *Storage) Area() string {
	return s.area
}

// ContextID returns the id stamped on events this context causes.
func (s *Storage) ContextID() string {
	return s.contextID
}

// Get returns a copy of the slot under key, or nil when absent.
func (s *Storage) Get(ctx context.Context, key string) (slot.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := s.origin
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.areas[s.area][key].Clone(), nil
}

// Set stores value under key and broadcasts the change.
func (s *Storage) Set(ctx context.Context, key string, value slot.Value) error {
	if value.IsAbsent() {
		return fmt.Errorf("cannot set absent value for key '%s': use Remove", key)
	}
	return s.update(ctx, key, value)
}

// Remove deletes the slot under key and broadcasts the change.
func (s *Storage) Remove(ctx context.Context, key string) error {
	return s.update(ctx, key, nil)
}

func (s *Storage) update(ctx context.Context, key string, value slot.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o := s.origin
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.disabled {
		return fmt.Errorf("failed to write '%s': %w", key, slot.ErrStorageDisabled)
	}

	slots := o.areas[s.area]
	old := slots[key]
	if slot.Equal(old, value) {
		return nil
	}

	if !value.IsAbsent() && o.quota > 0 {
		if used := usage(slots, key, value); used > o.quota {
			return fmt.Errorf("failed to write '%s' (%d of %d bytes): %w", key, used, o.quota, slot.ErrQuotaExceeded)
		}
	}

	if value.IsAbsent() {
		delete(slots, key)
	} else {
		if slots == nil {
			slots = make(map[string]slot.Value)
			o.areas[s.area] = slots
		}
		slots[key] = value.Clone()
	}

	event := slot.Event{
		Source:   s.contextID,
		Area:     s.area,
		Key:      key,
		OldValue: old,
		NewValue: value.Clone(),
	}
	for sub := range o.subscribers {
		if sub.contextID != s.contextID {
			sub.enqueue(event)
		}
	}
	return nil
}

// usage returns the bytes an area would hold after writing value under key.
func usage(slots map[string]slot.Value, key string, value slot.Value) int {
	total := len(key) + len(value)
	for k, v := range slots {
		if k != key {
			total += len(k) + len(v)
		}
	}
	return total
}

// Subscribe delivers events from every other context of the origin.
func (s *Storage) Subscribe(ctx context.Context) (*slot.Subscription, error) {
	o := s.origin
	o.mu.Lock()
	if o.broadcastBlocked {
		o.mu.Unlock()
		return nil, slot.ErrBroadcastUnavailable
	}
	sub := &subscriber{
		contextID: s.contextID,
		signal:    make(chan struct{}, 1),
	}
	o.subscribers[sub] = struct{}{}
	o.mu.Unlock()

	eventsChan := make(chan slot.Event, 10)
	errorsChan := make(chan error)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer func() {
			o.mu.Lock()
			delete(o.subscribers, sub)
			o.mu.Unlock()
		}()

		for {
			select {
			case <-subCtx.Done():
				return
			case <-sub.signal:
				for _, event := range sub.drain() {
					select {
					case eventsChan <- event:
					case <-subCtx.Done():
						return
					}
				}
			}
		}
	}()

	return slot.NewSubscription(eventsChan, errorsChan, cancelFunc), nil
}

// subscriber buffers events without bound so that writers never block on a
// slow reader.
type subscriber struct {
	contextID string
	signal    chan struct{}

	mu    sync.Mutex
	queue []slot.Event
}

func (s *subscriber) enqueue(event slot.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain() []slot.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}
