// Package bridge keeps an application's in-memory state synchronized with a
// persistent slot.
//
// The Bridge carries two one-directional channels. Store requests flow from
// the application to the bridge, which writes them to the slot and then, on a
// later turn of the event loop, echoes the same value back through the
// outbound channel. The echo is the application's acknowledgement that the
// write committed.
//
// The Listener subscribes to the storage broadcast and forwards changes made
// by other contexts straight to the outbound channel, synchronously within
// the event handler.
//
// Both run on a single loop.Loop per context. Local echoes are always
// deferred; remote echoes never are.
package bridge
