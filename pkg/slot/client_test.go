package slot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-origin", AreaLocal)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// openContext opens another context on the same miniredis origin.
func openContext(t *testing.T, mr *miniredis.Miniredis, area string) *Client {
	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-origin", area)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func receiveEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event := <-sub.Events():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for storage event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected storage event: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-origin", client.origin)
		assert.Equal(t, AreaLocal, client.Area())
		assert.NotEmpty(t, client.ContextID())
	})

	t.Run("rejects empty origin", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "", AreaLocal)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "origin cannot be empty")
	})

	t.Run("rejects empty area", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "o", "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "area cannot be empty")
	})

	t.Run("each client is its own context", func(t *testing.T) {
		a, mr := setupTestClient(t)
		b := openContext(t, mr, AreaLocal)
		assert.NotEqual(t, a.ContextID(), b.ContextID())
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestGetSetRemove(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("absent slot reads as nil", func(t *testing.T) {
		v, err := client.Get(ctx, "store")
		require.NoError(t, err)
		assert.True(t, v.IsAbsent())
	})

	t.Run("set stores exact bytes", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "store", Value(`{"count":1}`)))

		raw, err := mr.Get(SlotKey("test-origin", AreaLocal, "store"))
		require.NoError(t, err)
		assert.Equal(t, `{"count":1}`, raw)

		v, err := client.Get(ctx, "store")
		require.NoError(t, err)
		assert.Equal(t, `{"count":1}`, string(v))
	})

	t.Run("empty value is present", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "empty", Value{}))

		v, err := client.Get(ctx, "empty")
		require.NoError(t, err)
		assert.False(t, v.IsAbsent())
		assert.Len(t, v, 0)
	})

	t.Run("remove deletes the key", func(t *testing.T) {
		require.NoError(t, client.Remove(ctx, "store"))
		assert.False(t, mr.Exists(SlotKey("test-origin", AreaLocal, "store")))

		v, err := client.Get(ctx, "store")
		require.NoError(t, err)
		assert.True(t, v.IsAbsent())
	})

	t.Run("remove of absent slot succeeds", func(t *testing.T) {
		assert.NoError(t, client.Remove(ctx, "never-set"))
	})

	t.Run("set rejects absent value", func(t *testing.T) {
		err := client.Set(ctx, "store", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "use Remove")
	})

	t.Run("areas are isolated", func(t *testing.T) {
		session := openContext(t, mr, AreaSession)
		require.NoError(t, session.Set(ctx, "store", Value(`"session"`)))

		v, err := client.Get(ctx, "store")
		require.NoError(t, err)
		assert.True(t, v.IsAbsent())
	})
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("other contexts receive writes", func(t *testing.T) {
		writer, mr := setupTestClient(t)
		reader := openContext(t, mr, AreaLocal)

		sub, err := reader.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, writer.Set(ctx, "store", Value(`{"count":2}`)))

		event := receiveEvent(t, sub)
		assert.Equal(t, writer.ContextID(), event.Source)
		assert.Equal(t, AreaLocal, event.Area)
		assert.Equal(t, "store", event.Key)
		assert.True(t, event.OldValue.IsAbsent())
		assert.Equal(t, `{"count":2}`, string(event.NewValue))
	})

	t.Run("writer does not receive its own events", func(t *testing.T) {
		writer, _ := setupTestClient(t)

		sub, err := writer.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, writer.Set(ctx, "store", Value(`1`)))
		assertNoEvent(t, sub)
	})

	t.Run("remove broadcasts absence with old value", func(t *testing.T) {
		writer, mr := setupTestClient(t)
		reader := openContext(t, mr, AreaLocal)
		require.NoError(t, writer.Set(ctx, "store", Value(`1`)))

		sub, err := reader.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, writer.Remove(ctx, "store"))

		event := receiveEvent(t, sub)
		assert.Equal(t, `1`, string(event.OldValue))
		assert.True(t, event.NewValue.IsAbsent())
	})

	t.Run("unchanged writes publish nothing", func(t *testing.T) {
		writer, mr := setupTestClient(t)
		reader := openContext(t, mr, AreaLocal)
		require.NoError(t, writer.Set(ctx, "store", Value(`1`)))

		sub, err := reader.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, writer.Set(ctx, "store", Value(`1`)))
		require.NoError(t, writer.Remove(ctx, "absent"))
		assertNoEvent(t, sub)
	})

	t.Run("events arrive in commit order", func(t *testing.T) {
		writer, mr := setupTestClient(t)
		reader := openContext(t, mr, AreaLocal)

		sub, err := reader.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, writer.Set(ctx, "store", Value(`1`)))
		require.NoError(t, writer.Set(ctx, "store", Value(`2`)))
		require.NoError(t, writer.Remove(ctx, "store"))

		assert.Equal(t, `1`, string(receiveEvent(t, sub).NewValue))
		assert.Equal(t, `2`, string(receiveEvent(t, sub).NewValue))
		assert.True(t, receiveEvent(t, sub).NewValue.IsAbsent())
	})

	t.Run("malformed payloads surface on errors channel", func(t *testing.T) {
		writer, mr := setupTestClient(t)
		reader := openContext(t, mr, AreaLocal)

		sub, err := reader.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, publishRaw(ctx, writer, []byte("garbage")))

		select {
		case err := <-sub.Errors():
			assert.Contains(t, err.Error(), "failed to unmarshal storage event")
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for subscription error")
		}
	})

	t.Run("close ends the event stream", func(t *testing.T) {
		reader, _ := setupTestClient(t)

		sub, err := reader.Subscribe(ctx)
		require.NoError(t, err)
		require.NoError(t, sub.Close())

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("events channel not closed")
		}
	})
}

func TestSetPropagatesRedisFailure(t *testing.T) {
	client, mr := setupTestClient(t)
	mr.SetError("OOM command not allowed when used memory > 'maxmemory'")

	err := client.Set(context.Background(), "store", Value(`1`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write slot to Redis")
}

// publishRaw injects a payload on the origin's events channel, bypassing Set
// and Remove.
func publishRaw(ctx context.Context, c *Client, payload []byte) error {
	return c.rdb.Publish(ctx, StorageEventsChannel(c.origin), payload).Err()
}
