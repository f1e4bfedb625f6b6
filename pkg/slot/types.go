package slot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// Storage areas. An origin may host several independent areas; events from
// one area never concern a slot in another.
const (
	AreaLocal   = "local"
	AreaSession = "session"
)

// DefaultKey is the store key used when none is configured.
const DefaultKey = "store"

var (
	// ErrBroadcastUnavailable is returned by Subscribe when the storage
	// cannot deliver cross-context events.
	ErrBroadcastUnavailable = errors.New("slot: storage broadcast unavailable")

	// ErrQuotaExceeded is returned by Set when the value does not fit.
	ErrQuotaExceeded = errors.New("slot: quota exceeded")

	// ErrStorageDisabled is returned by writes to a storage that refuses them.
	ErrStorageDisabled = errors.New("slot: storage disabled")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// Value is an opaque serialized state blob. A nil Value means absence.
type Value []byte

// IsAbsent reports whether v represents an absent slot.
func (v Value) IsAbsent() bool {
	return v == nil
}

// Clone returns a copy of v that preserves absence.
func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	copy(out, v)
	return out
}

// String renders v for display. Absence renders as "<absent>".
func (v Value) String() string {
	if v == nil {
		return "<absent>"
	}
	return string(v)
}

// Equal reports whether a and b hold the same value, treating absence as
// distinct from empty.
func Equal(a, b Value) bool {
	if a.IsAbsent() || b.IsAbsent() {
		return a.IsAbsent() && b.IsAbsent()
	}
	return string(a) == string(b)
}

// Event is a storage broadcast describing one committed change.
type Event struct {
	Source   string // context id of the writer
	Area     string
	Key      string
	OldValue Value
	NewValue Value
}

// Storage is the capability surface a context has onto its origin's store.
// Implementations must never deliver an Event to the context that caused it.
type Storage interface {
	Area() string
	Get(ctx context.Context, key string) (Value, error)
	Set(ctx context.Context, key string, value Value) error
	Remove(ctx context.Context, key string) error
	Subscribe(ctx context.Context) (*Subscription, error)
}

// ValidateKey checks that key is usable as a store key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("store key cannot be empty")
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid store key '%s': must be 1-128 characters of letters, digits, '.', '_' or '-'", key)
	}
	return nil
}

// Subscription represents an active storage broadcast subscription.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// NewSubscription assembles a Subscription from its channels. cancel is
// invoked once by Close and must cause both channels to be closed.
func NewSubscription(events <-chan Event, errs <-chan error, cancel func()) *Subscription {
	return &Subscription{
		events: events,
		errors: errs,
		cancel: cancel,
	}
}

// Events returns the channel of storage events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Errors returns the channel of subscription errors, such as undecodable
// broadcast payloads. Errors are not fatal to the subscription.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}
