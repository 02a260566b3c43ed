// Package bridge is the entry point for embedding the builder.
//
// A Host owns one host window and the sessions embedded in it. Core mounts
// the builder frame into a container and returns the new session; the
// completion callback receives the session API once the builder has been
// initialized. Core fails closed: without a credential or an attachable
// container owned by the host window nothing is mounted and no listener is
// attached.
//
// Configuration mirrors the builder's option groups:
//
//	Config
//	├── HTMLOutputType          monolith | htmlCss
//	├── OnLoad / OnSave
//	├── API.Media.AddMedia.Handler
//	├── Integration.Form.Fields.Handler
//	├── Integration.Form.Action.Handler
//	├── DynamicContent.RichText.Handler
//	└── Elements.Options.Trigger.Handler
package bridge
