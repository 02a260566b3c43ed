// Package http exposes builder sessions over a JSON API.
//
// A client creates a session, points the builder frame at the returned
// socket path, then asks for saves. Saved documents are persisted by the
// storage provider and can be fetched afterwards.
package http
