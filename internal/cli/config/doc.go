// Package config defines the unitrack-cli configuration (~/.unitrack/cli.yaml)
// and how it is merged: built-in defaults, then the YAML file, then
// UNITRACK_* environment variables, then command-line flags.
//
// Nested keys use "__" in environment variable names, so
// UNITRACK_SESSION__STORE sets session.store.
package config
