// Package config loads flightwatch settings from a YAML file and
// FLIGHTWATCH_* environment variables. Command-line flags are applied on top
// by the flightwatch command.
package config
