// Package config provides 12-factor configuration for the bridge server.
//
// Configuration is loaded from environment variables with defaults; the
// server binary lets flags override a few of them.
//
// Environment Variables:
//   - PORT, HOST
//   - PUBLIC_HOST, BUILDER_TOKEN, ALLOWED_ORIGINS, STRICT_CAPABILITIES, SAVE_TIMEOUT
//   - OUTPUT_DIR, OUTPUT_SANITIZE, PROVIDERS_FILE
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - PEER_MSG_RPS, PEER_MSG_BURST
package config
