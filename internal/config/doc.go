// Package config provides configuration loading and validation for the sales call assistant.
// It handles YAML-based configuration with per-section struct validation and
// duration helpers for the time-valued parameters.
package config
