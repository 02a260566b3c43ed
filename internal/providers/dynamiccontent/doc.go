// Package dynamiccontent answers the builder's dcRichText requests, either
// with a fixed option or by fetching one from a remote service with
// retries.
package dynamiccontent
