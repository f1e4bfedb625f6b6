// Package slot provides the persistent slot abstraction and its Redis
// implementation for larder.
//
// # Overview
//
// A slot is a single named key in a shared, origin-scoped key/value store.
// It holds the last written serialized application state so that the state
// survives process restarts and is visible to every context sharing the
// origin. A context is one handle onto the store; several contexts may
// share an origin, in one process or across many.
//
// # Core Concepts
//
// Values are opaque serialized blobs. A nil Value means the slot is absent.
// An empty, non-nil Value is a present value and is stored as such; the only
// way to make a slot absent is Remove.
//
// Events are storage broadcasts. Every Storage implementation delivers an
// Event to each subscribed context except the one that made the change, in
// the order the changes committed.
//
// # Usage Example
//
//	client, err := slot.NewClient(&redis.Options{Addr: "localhost:6379"}, "default", slot.AreaLocal)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	value, err := slot.Encode(map[string]int{"count": 1})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Set(ctx, "store", value); err != nil {
//		log.Fatal(err)
//	}
//
// # Redis Schema
//
// Slot values: larder:{origin}:{area}:slot:{key}
//
// Storage events: larder:{origin}:storage_events
//
// All areas of one origin share the events channel; subscribers filter by
// area and key.
package slot
