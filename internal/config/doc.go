// Package config loads, normalizes, and validates reelsmith configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for
// provider credentials such as OPENROUTER_API_KEY, FAL_KEY and
// INSTAGRAM_ACCESS_TOKEN. The Config type centralizes every knob the pipeline
// and CLI need: variant frequencies, reel geometry, timing, retry policy and
// publishing targets.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
