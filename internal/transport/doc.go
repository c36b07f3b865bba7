// Package transport forwards JSON envelope messages to the companion over
// an ordered reliable channel. Messages sent before the channel opens are
// held in a bounded FIFO buffer and flushed on open in order; incoming
// envelopes are dispatched to handlers by type. The package ships two
// channel adapters, one over a WebRTC data channel and one over WebSocket.
package transport
