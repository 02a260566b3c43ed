// Package session implements one live embedding of the builder: the init
// handshake, the load lifecycle, the save bridge and the transport that
// carries every message to and from the builder.
//
// Lifecycle:
//
//	Mount ──► frame load ──► handshake (init sent, listener attached, API handed out)
//	                                  │
//	          loading ◄── Mount       └── onLoad from builder ──► ready
//
// A session only reacts to inbound messages that are tagged for the host,
// come from its own content window, and carry the origin pinned at
// handshake. Several sessions can therefore share one host window without
// seeing each other's traffic.
//
// Registry keeps sessions by generated id. Destroy removes the listener,
// unmounts the frame and loader, and cancels the context handed to
// capability handlers.
package session
