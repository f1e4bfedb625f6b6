package bridge

import (
	"context"
	"testing"

	"github.com/dyluth/larder/internal/loop"
	"github.com/dyluth/larder/internal/memslot"
	"github.com/dyluth/larder/pkg/slot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupListener(t *testing.T, storage slot.Storage) (*Listener, *loop.Loop, *recorder) {
	t.Helper()
	l := loop.New()
	rec := newRecorder()
	b, err := New(storage, slot.DefaultKey, l, rec.Outbound)
	require.NoError(t, err)

	listener, err := NewListener(storage, slot.DefaultKey, b, l)
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })
	return listener, l, rec
}

func TestNewListener(t *testing.T) {
	storage := memslot.NewOrigin("test").Open(slot.AreaLocal)
	l := loop.New()
	b, err := New(storage, slot.DefaultKey, l, func(slot.Value) {})
	require.NoError(t, err)

	_, err = NewListener(nil, slot.DefaultKey, b, l)
	assert.Error(t, err)
	_, err = NewListener(storage, slot.DefaultKey, nil, l)
	assert.Error(t, err)
	_, err = NewListener(storage, slot.DefaultKey, b, nil)
	assert.Error(t, err)
	_, err = NewListener(storage, "bad key", b, l)
	assert.Error(t, err)
}

func TestHandle_Filter(t *testing.T) {
	storage := memslot.NewOrigin("test").Open(slot.AreaLocal)
	listener, l, rec := setupListener(t, storage)

	t.Run("forwards matching event synchronously", func(t *testing.T) {
		forwarded := listener.Handle(slot.Event{
			Area:     slot.AreaLocal,
			Key:      slot.DefaultKey,
			NewValue: slot.Value(`{"count":2}`),
		})

		assert.True(t, forwarded)
		assert.Equal(t, []string{`{"count":2}`}, rec.Strings())
		assert.Equal(t, 0, l.Pending())

		v, err := storage.Get(context.Background(), slot.DefaultKey)
		require.NoError(t, err)
		assert.True(t, v.IsAbsent(), "remote echo performs no local write")
	})

	t.Run("ignores other keys", func(t *testing.T) {
		before := len(rec.Values())
		forwarded := listener.Handle(slot.Event{
			Area:     slot.AreaLocal,
			Key:      "other",
			NewValue: slot.Value(`{"count":3}`),
		})
		assert.False(t, forwarded)
		assert.Len(t, rec.Values(), before)
	})

	t.Run("ignores other areas", func(t *testing.T) {
		before := len(rec.Values())
		forwarded := listener.Handle(slot.Event{
			Area:     slot.AreaSession,
			Key:      slot.DefaultKey,
			NewValue: slot.Value(`{"count":4}`),
		})
		assert.False(t, forwarded)
		assert.Len(t, rec.Values(), before)
	})

	t.Run("forwards clears as absence", func(t *testing.T) {
		forwarded := listener.Handle(slot.Event{
			Area:     slot.AreaLocal,
			Key:      slot.DefaultKey,
			OldValue: slot.Value(`{"count":2}`),
		})
		assert.True(t, forwarded)
		values := rec.Values()
		assert.True(t, values[len(values)-1].IsAbsent())
	})
}

func TestStart(t *testing.T) {
	t.Run("only once", func(t *testing.T) {
		storage := memslot.NewOrigin("test").Open(slot.AreaLocal)
		listener, _, _ := setupListener(t, storage)

		require.NoError(t, listener.Start(context.Background()))
		assert.ErrorIs(t, listener.Start(context.Background()), ErrAlreadyStarted)
		assert.False(t, listener.Degraded())
	})

	t.Run("degrades silently without broadcast", func(t *testing.T) {
		storage := memslot.NewOrigin("test", memslot.WithoutBroadcast()).Open(slot.AreaLocal)
		listener, _, _ := setupListener(t, storage)

		require.NoError(t, listener.Start(context.Background()))
		assert.True(t, listener.Degraded())
		assert.NoError(t, listener.Close())
	})

	t.Run("close before start", func(t *testing.T) {
		storage := memslot.NewOrigin("test").Open(slot.AreaLocal)
		listener, _, _ := setupListener(t, storage)
		assert.NoError(t, listener.Close())
	})
}

func TestListener_ForwardsThroughLoop(t *testing.T) {
	origin := memslot.NewOrigin("test")
	local := origin.Open(slot.AreaLocal)
	other := origin.Open(slot.AreaLocal)
	otherArea := origin.Open(slot.AreaSession)

	listener, l, rec := setupListener(t, local)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)
	require.NoError(t, listener.Start(ctx))

	require.NoError(t, otherArea.Set(ctx, slot.DefaultKey, slot.Value(`"session"`)))
	require.NoError(t, other.Set(ctx, "unrelated", slot.Value(`"x"`)))
	require.NoError(t, other.Set(ctx, slot.DefaultKey, slot.Value(`{"count":2}`)))
	require.NoError(t, other.Remove(ctx, slot.DefaultKey))

	assert.Equal(t, `{"count":2}`, string(rec.next(t)))
	assert.True(t, rec.next(t).IsAbsent())
	rec.assertQuiet(t)
}
