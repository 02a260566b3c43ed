// Package output shapes the raw document the builder delivers on save into
// the format the host asked for.
//
// Output Types:
//   - monolith: one self-contained HTML document, styles and fonts in <head>
//   - htmlCss: body markup and a stylesheet, delivered separately
//
// Markup can optionally be passed through a bluemonday policy before it is
// shaped.
package output
