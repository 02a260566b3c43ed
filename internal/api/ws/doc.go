// Package ws connects builder frames to the host over WebSockets.
//
// The builder running inside a frame dials GET /frames/:id/socket. The
// connection becomes the frame's content window: host messages are written
// as text frames holding one envelope each, and every inbound text frame is
// posted to the host window tagged with the connection's origin and
// identity. Sessions decide for themselves which of those messages are
// theirs.
//
// Inbound frames are rate limited per connection. Messages over the limit
// are dropped before they reach any session.
package ws
