// Package trigger answers the builder's element trigger requests by running
// a host-supplied JavaScript function in a sandboxed goja VM.
package trigger
