// Package config loads, normalizes, and validates docgate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours DOCGATE_* environment fallbacks
// for the office engine and upload settings. The Config type centralizes every
// knob the server and CLI need so the scratch directory, office installation,
// and upload cap are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
