// Package dispatch routes capability requests from the builder to the
// host-supplied handlers and carries their answers back.
//
// Each request kind has exactly one arm in a static switch, so adding a kind
// to the protocol without handling it here is caught in review rather than
// at runtime. Handlers receive a resolve and a reject function bound to the
// session transport; whichever is called first sends the matching
// <kind>Res or <kind>Rej action, later calls are ignored.
//
// Requests for kinds the host did not configure are dropped without an
// answer unless the dispatcher runs in strict mode, where they are rejected
// with ReasonUnimplemented.
//
// Example Usage:
//
//	d := dispatch.New(dispatch.Handlers{
//	    FormAction: func(ctx context.Context, resolve func(string), reject func(string)) {
//	        resolve("https://forms.example.com/submit")
//	    },
//	}, transport, dispatch.WithLogger(logger))
//	err := d.Dispatch(ctx, action)
package dispatch
