// Package config loads, normalizes, and validates tailor's TOML configuration.
//
// Load resolves the file from an explicit path, ~/.config/tailor/config.toml,
// or ./tailor.toml, applies environment fallbacks for API keys, expands "~"
// in paths and rejects unusable values before any component starts. The
// embedded sample_config.toml documents every key and backs `tailor config
// init`.
package config
