// Package config provides configuration loading and validation for the
// companion link service. It handles YAML-based configuration with struct
// validation and ships built-in defaults for every section.
package config
