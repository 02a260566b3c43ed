// Package protocol defines the wire format exchanged between the host and the
// embedded page builder.
//
// Every message travels inside an Envelope:
//
//	{"target": "builder", "data": "{\"type\":\"formFields\"}"}
//
// The target tag says which side the envelope is meant for. The builder tags
// its envelopes with TargetBuilder; the host always answers with TargetCore.
// The data field is a serialized Action identified by its Kind.
//
// Message Kinds (Builder → Host):
//   - onLoad: builder finished booting
//   - save: builder output for the pending save request
//   - addMedia, formFields, formAction, dcRichText, trigger: capability requests
//
// Message Kinds (Host → Builder):
//   - init: configuration and credential
//   - save: ask the builder for its current document
//   - <capability>Res / <capability>Rej: capability responses
//
// Decoding distinguishes traffic that is simply not for us (ErrNotAddressed)
// from traffic that is addressed to us but unreadable (ErrMalformed). Only the
// latter is worth a diagnostic.
package protocol
