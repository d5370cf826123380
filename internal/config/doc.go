// Package config loads, normalizes, and validates reelsmith configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and rejects invalid parameter combinations
// before any video is processed. The Config type centralizes every knob the
// daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical option values, and clear validation errors.
package config
