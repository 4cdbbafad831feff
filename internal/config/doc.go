// Package config loads, normalizes, and validates quill's configuration.
//
// Configuration is sourced from a TOML file, an optional .env file, and a
// small set of environment variables that deployment platforms conventionally
// inject (PORT, WORKER_MODE, UPLOADS_PATH). Values flow through three phases:
// decode, normalize (path expansion, env overrides, defaults for blanks), and
// validate. Callers should treat a *Config as immutable after Load.
package config
