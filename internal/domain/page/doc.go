// Package page models the host side of an embedding: the host window whose
// inbound channel every session shares, the containers the host hands out,
// and the frames and loaders mounted into them.
//
// A Frame points at the builder's public address. Its load event fires when
// the builder application running inside it connects back to the host; the
// connection becomes the frame's content window (a PeerWindow). Inbound
// traffic from every content window is posted to the owning Window, so
// listeners must filter what they receive.
//
// Example Usage:
//
//	win := page.NewWindow("main", logger)
//	container := page.NewContainer("editor", win)
//	fr := page.NewFrame("sess_01H...", "https://builder.example.com/index.html")
//	container.AppendChild(fr)
package page
