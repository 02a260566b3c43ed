// Package main runs the builder bridge server.
//
// The server mounts page-builder sessions, accepts the builder's socket
// connection for each session frame, answers capability requests from the
// configured providers and persists saved documents.
//
// Endpoints:
//
//	POST   /sessions               mount a builder, returns the socket path
//	GET    /sessions               list live sessions
//	GET    /sessions/:id           one session
//	POST   /sessions/:id/save      request the document and wait for it
//	GET    /sessions/:id/output    latest saved document
//	GET    /sessions/:id/outputs   saved record ids
//	DELETE /sessions/:id           destroy a session
//	GET    /frames/:id/socket      builder WebSocket
//	GET    /health, /metrics
//
// Configuration:
//   - Environment variables (PORT, PUBLIC_HOST, BUILDER_TOKEN, ...)
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000 -public-host https://builder.example.com -providers providers.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
