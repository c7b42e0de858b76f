// Package config loads inspectd configuration from YAML files and
// INSPECTD_* environment variables.
//
// Precedence, lowest first: built-in defaults, the config file, the
// environment, then command-line flags applied by the caller.
package config
