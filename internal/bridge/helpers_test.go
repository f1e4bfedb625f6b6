package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/dyluth/larder/pkg/slot"
)

// recorder collects outbound notifications.
type recorder struct {
	mu     sync.Mutex
	values []slot.Value
	ch     chan slot.Value
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan slot.Value, 64)}
}

func (r *recorder) Outbound(value slot.Value) {
	r.mu.Lock()
	r.values = append(r.values, value)
	r.mu.Unlock()
	r.ch <- value
}

func (r *recorder) Values() []slot.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]slot.Value, len(r.values))
	copy(out, r.values)
	return out
}

func (r *recorder) Strings() []string {
	var out []string
	for _, v := range r.Values() {
		out = append(out, v.String())
	}
	return out
}

func (r *recorder) next(t *testing.T) slot.Value {
	t.Helper()
	select {
	case v := <-r.ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
		return nil
	}
}

func (r *recorder) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case v := <-r.ch:
		t.Fatalf("unexpected notification: %s", v)
	case <-time.After(100 * time.Millisecond):
	}
}
