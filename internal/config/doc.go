// Package config loads and validates the orchestrator's configuration
// (spec.md §6) via viper, with go-playground/validator struct-tag
// validation and an fsnotify-backed hot-reload path for routing
// thresholds only: pool sizes, timeouts, and the pattern index/startup
// script paths require a restart to change.
package config
