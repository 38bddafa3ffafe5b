// Package config handles configuration loading and management for hitbox.
//
// It provides functionality for:
//   - Loading configuration from .hitbox.config.json or .hitboxrc files
//   - Default configuration values
//   - Merging file and command line settings
package config
