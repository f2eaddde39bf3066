// Package config loads server, task engine, upload, presenter and metrics
// settings from defaults, an optional YAML file and ANALYSIS_* environment
// variables, and validates them before any component is created.
package config
