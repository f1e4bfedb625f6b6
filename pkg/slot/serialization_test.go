package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	t.Run("keeps absence and empty apart", func(t *testing.T) {
		data, err := EventToJSON(Event{
			Source:   "ctx-1",
			Area:     AreaLocal,
			Key:      "store",
			OldValue: nil,
			NewValue: Value{},
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"source":"ctx-1","area":"local","key":"store","old_value":null,"new_value":""}`, string(data))

		event, err := JSONToEvent(data)
		require.NoError(t, err)
		assert.True(t, event.OldValue.IsAbsent())
		assert.False(t, event.NewValue.IsAbsent())
	})

	t.Run("carries JSON values as strings", func(t *testing.T) {
		data, err := EventToJSON(Event{Key: "store", NewValue: Value(`{"count":1}`)})
		require.NoError(t, err)

		event, err := JSONToEvent(data)
		require.NoError(t, err)
		assert.Equal(t, `{"count":1}`, string(event.NewValue))
	})
}

func TestJSONToEventRejectsMalformed(t *testing.T) {
	_, err := JSONToEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = JSONToEvent([]byte(`{"area":"local"}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no key")
}
