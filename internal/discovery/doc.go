// Package discovery locates the desktop companion on the local network.
// It implements the UDP broadcast probe/response protocol and a resolver
// that falls back to an HTTP health probe against the last-known address.
package discovery
