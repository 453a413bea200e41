// Package config loads, normalizes, and validates hdvapourize configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// batch orchestrator and CLI need: external tool locations, scheduling limits,
// per-stage timeouts, progress weights, and the parameters handed to the
// processing script.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
