package slot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic transaction retries when another context
// modifies the slot between WATCH and EXEC.
const maxTxRetries = 16

// Client provides origin-scoped Redis storage for one context.
// Keys and channels are namespaced with the origin name; the area selects
// the logical store inside that origin.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb       *redis.Client
	origin    string
	area      string
	contextID string
}

// Compile-time check that Client satisfies Storage.
var _ Storage = (*Client)(nil)

// NewClient creates a new storage client for the specified origin and area.
// Each client is its own context with a fresh id; events it causes are
// never delivered back to it.
//
// Returns an error if origin or area is empty.
func NewClient(redisOpts *redis.Options, origin, area string) (*Client, error) {
	if origin == "" {
		return nil, fmt.Errorf("origin cannot be empty")
	}
	if area == "" {
		return nil, fmt.Errorf("area cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		origin:    origin,
		area:      area,
		contextID: uuid.New().String(),
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Area returns the storage area this client reads and writes.
func (c *Client) Area() string {
	return c.area
}

// ContextID returns the id stamped on events this client publishes.
func (c *Client) ContextID() string {
	return c.contextID
}

// Get reads the slot under key. Returns (nil, nil) when the slot is absent.
func (c *Client) Get(ctx context.Context, key string) (Value, error) {
	data, err := c.rdb.Get(ctx, SlotKey(c.origin, c.area, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read slot from Redis: %w", err)
	}
	return Value(data), nil
}

// Set writes value under key and broadcasts the change to other contexts.
// The write and the publish run in one MULTI transaction. Writing the value
// the slot already holds publishes nothing.
// A nil value is rejected; use Remove to make a slot absent.
func (c *Client) Set(ctx context.Context, key string, value Value) error {
	if value.IsAbsent() {
		return fmt.Errorf("cannot set absent value for key '%s': use Remove", key)
	}
	return c.update(ctx, key, value)
}

// Remove deletes the slot under key and broadcasts the change.
// Removing an absent slot is a no-op and publishes nothing.
func (c *Client) Remove(ctx context.Context, key string) error {
	return c.update(ctx, key, nil)
}

// update performs a WATCH/MULTI/EXEC round so that the broadcast carries the
// value the write actually replaced.
func (c *Client) update(ctx context.Context, key string, value Value) error {
	redisKey := SlotKey(c.origin, c.area, key)
	channel := StorageEventsChannel(c.origin)

	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, redisKey).Bytes()
		var oldValue Value
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			oldValue = Value(old)
		}

		if Equal(oldValue, value) {
			return nil
		}

		payload, err := EventToJSON(Event{
			Source:   c.contextID,
			Area:     c.area,
			Key:      key,
			OldValue: oldValue,
			NewValue: value,
		})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if value.IsAbsent() {
				pipe.Del(ctx, redisKey)
			} else {
				pipe.Set(ctx, redisKey, []byte(value), 0)
			}
			pipe.Publish(ctx, channel, payload)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := c.rdb.Watch(ctx, txf, redisKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("failed to write slot to Redis: %w", err)
	}
	return fmt.Errorf("failed to write slot to Redis: too much contention on '%s'", key)
}

// Subscribe subscribes to storage events for this origin.
// Events caused by this client are dropped; all other areas and keys are
// delivered so callers can apply their own filter.
// Caller must call subscription.Close() when done.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	channel := StorageEventsChannel(c.origin)
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to storage events: %w", err)
	}

	eventsChan := make(chan Event, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				event, err := JSONToEvent([]byte(msg.Payload))
				if err != nil {
					select {
					case errorsChan <- err:
					case <-subCtx.Done():
						return
					}
					continue
				}

				if event.Source == c.contextID {
					continue
				}

				select {
				case eventsChan <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return NewSubscription(eventsChan, errorsChan, cancelFunc), nil
}
