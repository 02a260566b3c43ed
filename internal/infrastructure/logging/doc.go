// Package logging builds the zap logger shared by the server.
//
// Production mode writes JSON, development mode writes colored console
// lines. Components never build their own logger; they receive a named
// child:
//
//	logger := logging.NewDefault()
//	host := bridge.NewHost(window, bridge.Options{Logger: logger.Component("host")})
//
// Credentials are never logged. Use bridge.Fingerprint when a log line needs
// to tell tokens apart.
package logging
