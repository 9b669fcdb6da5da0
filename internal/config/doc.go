// Package config loads, normalizes, and validates Rostrum configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ROSTRUM_NTFY_TOPIC. The Config type centralizes every knob the daemon and
// CLI need, from archive endpoints to worker counts and retry budgets.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
