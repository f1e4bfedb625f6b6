package slot

import "fmt"

// Redis key pattern helpers
//
// Keys and channels are namespaced by origin so that several origins can
// share one Redis server without seeing each other's slots or events.
//
// Key pattern: larder:{origin}:{area}:slot:{key}
// Channel pattern: larder:{origin}:storage_events

// SlotKey returns the Redis key holding a slot value.
// Pattern: larder:{origin}:{area}:slot:{key}
func SlotKey(origin, area, key string) string {
	return fmt.Sprintf("larder:%s:%s:slot:%s", origin, area, key)
}

// StorageEventsChannel returns the Pub/Sub channel carrying storage events
// for every area of an origin.
// Pattern: larder:{origin}:storage_events
func StorageEventsChannel(origin string) string {
	return fmt.Sprintf("larder:%s:storage_events", origin)
}
