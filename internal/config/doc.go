// Package config holds gowget's run configuration: defaults, validation,
// the optional YAML configuration file and the XDG paths.
package config
