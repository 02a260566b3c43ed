// Package server assembles the bridge: configuration, logging, metrics,
// capability providers, the session host, the HTTP API and the builder
// socket endpoint.
package server
