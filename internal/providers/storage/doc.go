// Package storage persists saved builder documents on disk.
//
// Layout:
//
//	<dir>/<session id>/<record ulid>.json.gz
//
// Record ids are ULIDs, so lexical order is save order.
package storage
