// Package server provides the local HTTP status API: health, component
// statistics, sanitized configuration and Prometheus metrics.
package server
