package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dyluth/larder/pkg/slot"
)

// ErrAlreadyStarted is returned by a second call to Listener.Start.
var ErrAlreadyStarted = errors.New("listener already started")

// Emitter receives qualifying external changes. *Bridge satisfies it.
type Emitter interface {
	EmitExternalChange(value slot.Value)
}

// Listener forwards storage broadcasts from other contexts to an Emitter.
type Listener struct {
	storage slot.Storage
	key     string
	emitter Emitter
	sched   Scheduler

	mu       sync.Mutex
	started  bool
	degraded bool
	sub      *slot.Subscription
	done     chan struct{}
}

// NewListener creates a listener for key on storage. Events are handed to
// sched so that emitter runs on the event loop.
func NewListener(storage slot.Storage, key string, emitter Emitter, sched Scheduler) (*Listener, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("emitter is required")
	}
	if sched == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if err := slot.ValidateKey(key); err != nil {
		return nil, err
	}

	return &Listener{
		storage: storage,
		key:     key,
		emitter: emitter,
		sched:   sched,
		done:    make(chan struct{}),
	}, nil
}

// Start subscribes to the storage broadcast. It may be called once.
//
// When the storage cannot broadcast, Start logs the fact, marks the listener
// degraded and returns nil: the context keeps working on its own.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return ErrAlreadyStarted
	}
	l.started = true

	sub, err := l.storage.Subscribe(ctx)
	if err != nil {
		l.degraded = true
		close(l.done)
		log.Printf("[Listener] Cross-context sync unavailable for '%s', continuing single-context: %v", l.key, err)
		return nil
	}
	l.sub = sub

	go l.pump(sub)
	return nil
}

func (l *Listener) pump(sub *slot.Subscription) {
	defer close(l.done)

	events := sub.Events()
	errs := sub.Errors()
	for events != nil || errs != nil {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			l.sched.Post(func() {
				l.Handle(event)
			})
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[Listener] Subscription error: %v", err)
		}
	}
}

// Handle applies the area and key filter and, for a qualifying event, emits
// its new value synchronously. Reports whether the event was forwarded.
// Must be called from the event loop.
func (l *Listener) Handle(event slot.Event) bool {
	if event.Area != l.storage.Area() {
		return false
	}
	if event.Key != l.key {
		return false
	}
	l.emitter.EmitExternalChange(slot.Decode(event.NewValue))
	return true
}

// Degraded reports whether the listener runs without a broadcast.
func (l *Listener) Degraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

// Close ends the subscription and waits for the forwarding goroutine.
func (l *Listener) Close() error {
	l.mu.Lock()
	started, sub := l.started, l.sub
	l.mu.Unlock()

	if !started {
		return nil
	}
	if sub != nil {
		sub.Close()
	}
	<-l.done
	return nil
}
