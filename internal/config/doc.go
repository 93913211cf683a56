// Package config handles configuration loading for trowel.
//
// # Configuration File
//
// DefaultPath resolves the file location, in order:
//
//  1. Path from TROWEL_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/trowel/server.yaml
//  3. ~/.config/trowel/server.yaml
//
// `trowel init` writes Example to that path.
//
// # Environment Variables
//
// Values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${TROWEL_JWT_SECRET}"
//
// Unset variables expand to the empty string. After expansion, a few
// variables override the file outright: TROWEL_JWT_SECRET, TROWEL_DB_PATH
// and TROWEL_MONGO_URI.
//
// # Durations
//
// Duration values use Go's time.ParseDuration syntax ("30s", "400m"). An
// explicit "0s" for chat.ping_interval disables keepalive pings.
//
// # Validation
//
// Load fails fast when the JWT secret is missing or shorter than 32 bytes,
// when the selected database driver lacks its path or URI, and when image
// offload is enabled without a bucket and region. There are no baked-in
// secrets or connection strings.
package config
