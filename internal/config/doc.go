// Package config loads, normalizes, and validates kaizen configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// KAIZEN_SPEECH_API_KEY. The Config type centralizes every knob the player
// server and CLI need: data/cache/log directories, the speech synthesis
// endpoint, narration pacing, playback tolerances, and subtitle styling.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
