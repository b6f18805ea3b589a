// Package config loads, normalizes, and validates narrate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: staging/output directories, synthesis backend settings,
// mixing parameters, caption style constants, and workflow timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
