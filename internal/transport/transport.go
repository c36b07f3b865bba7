package transport

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/learitecnico/learion-glass-sub002/internal/config"
)

// ConnState represents the channel connection state
type ConnState int

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

// String returns the state name
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrBufferFull is returned by Send when the pre-open buffer is at capacity.
	ErrBufferFull = errors.New("transport: send buffer full")
	// ErrClosed is returned by Send after the channel closed.
	ErrClosed = errors.New("transport: closed")
	// ErrNoChannel is returned by Send before a channel is attached.
	ErrNoChannel = errors.New("transport: no channel attached")
)

// Channel is an ordered reliable byte channel to the companion. Readiness
// and incoming data are delivered through the Transport the channel is
// attached to.
type Channel interface {
	Send(data []byte) error
	Close() error
}

// Handlers receives dispatched incoming messages. Nil fields are skipped.
type Handlers struct {
	OnModelText       func(text string)
	OnCaptureSnapshot func(quality int)
}

// TransportStats represents transport statistics
type TransportStats struct {
	State           string `json:"state"`
	Buffered        int    `json:"buffered"`
	MessagesSent    uint64 `json:"messages_sent"`
	MessagesQueued  uint64 `json:"messages_queued"`
	BufferRejected  uint64 `json:"buffer_rejected"`
	SendFailures    uint64 `json:"send_failures"`
	Dispatched      uint64 `json:"dispatched"`
	UnknownMessages uint64 `json:"unknown_messages"`
	ParseErrors     uint64 `json:"parse_errors"`
}

// Transport manages one channel lifecycle: Connecting, then Open, then
// Closed, with no reconnection. Sends before open are buffered in FIFO
// order up to a fixed capacity and flushed synchronously when the channel
// opens, so buffered messages always precede any message sent after the
// transition.
type Transport struct {
	handlers Handlers
	logger   *slog.Logger

	mu       sync.Mutex
	state    ConnState
	channel  Channel
	buffer   [][]byte
	capacity int

	// Statistics
	messagesSent    uint64
	messagesQueued  uint64
	bufferRejected  uint64
	sendFailures    uint64
	dispatched      uint64
	unknownMessages uint64
	parseErrors     uint64
	statsMu         sync.RWMutex
}

// NewTransport creates a transport in the connecting state. A channel must
// be attached before anything reaches the wire.
func NewTransport(cfg *config.TransportConfig, handlers Handlers, logger *slog.Logger) *Transport {
	return &Transport{
		handlers: handlers,
		logger:   logger,
		state:    StateConnecting,
		capacity: cfg.SendBufferCapacity,
	}
}

// Attach binds the channel whose lifecycle callbacks drive this transport.
func (t *Transport) Attach(ch Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channel = ch
}

// Send delivers one envelope. Before the channel opens the message joins
// the pre-open buffer; once open it is marshaled and written immediately.
func (t *Transport) Send(msg *Message) error {
	raw, err := msg.Marshal()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateClosed:
		return ErrClosed

	case StateConnecting:
		if len(t.buffer) >= t.capacity {
			t.statsMu.Lock()
			t.bufferRejected++
			t.statsMu.Unlock()
			t.logger.Warn("Send buffer full, message rejected",
				"type", msg.Type, "capacity", t.capacity)
			return ErrBufferFull
		}
		t.buffer = append(t.buffer, raw)
		t.statsMu.Lock()
		t.messagesQueued++
		t.statsMu.Unlock()
		return nil

	default: // StateOpen
		return t.write(raw)
	}
}

// write puts one marshaled message on the wire; caller must hold t.mu.
func (t *Transport) write(raw []byte) error {
	if t.channel == nil {
		return ErrNoChannel
	}
	if err := t.channel.Send(raw); err != nil {
		t.statsMu.Lock()
		t.sendFailures++
		t.statsMu.Unlock()
		return err
	}
	t.statsMu.Lock()
	t.messagesSent++
	t.statsMu.Unlock()
	return nil
}

// HandleOpen transitions to open and drains the pre-open buffer. The drain
// happens under the send lock, so a Send racing the transition lands after
// every buffered message.
func (t *Transport) HandleOpen() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateConnecting {
		return
	}
	t.state = StateOpen

	buffered := t.buffer
	t.buffer = nil
	for _, raw := range buffered {
		if err := t.write(raw); err != nil {
			t.logger.Warn("Failed to flush buffered message", "error", err)
		}
	}

	t.logger.Info("Channel open", "flushed", len(buffered))
}

// HandleRaw dispatches one incoming envelope. Malformed payloads and
// unknown types are logged and dropped.
func (t *Transport) HandleRaw(raw []byte) {
	msg, err := ParseMessage(raw)
	if err != nil {
		t.statsMu.Lock()
		t.parseErrors++
		t.statsMu.Unlock()
		t.logger.Warn("Discarding malformed message", "error", err)
		return
	}

	switch msg.Type {
	case TypeModelText:
		if t.handlers.OnModelText != nil {
			t.handlers.OnModelText(msg.Text)
		}
	case TypeCaptureSnapshot:
		if t.handlers.OnCaptureSnapshot != nil {
			quality := msg.Quality
			if quality <= 0 {
				quality = DefaultSnapshotQuality
			}
			t.handlers.OnCaptureSnapshot(quality)
		}
	default:
		t.statsMu.Lock()
		t.unknownMessages++
		t.statsMu.Unlock()
		t.logger.Debug("Ignoring unknown message type", "type", msg.Type)
		return
	}

	t.statsMu.Lock()
	t.dispatched++
	t.statsMu.Unlock()
}

// HandleClose transitions to the terminal closed state and drops any
// still-buffered messages.
func (t *Transport) HandleClose() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateClosed {
		return
	}
	dropped := len(t.buffer)
	t.state = StateClosed
	t.buffer = nil

	t.logger.Info("Channel closed", "dropped_buffered", dropped)
}

// Dispose closes the underlying channel and finalizes the transport. Safe
// to call more than once.
func (t *Transport) Dispose() {
	t.mu.Lock()
	ch := t.channel
	t.channel = nil
	alreadyClosed := t.state == StateClosed
	t.state = StateClosed
	t.buffer = nil
	t.mu.Unlock()

	if ch != nil {
		if err := ch.Close(); err != nil && !alreadyClosed {
			t.logger.Debug("Channel close failed", "error", err)
		}
	}
}

// State returns the current connection state.
func (t *Transport) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Buffered returns the number of messages waiting for the channel to open.
func (t *Transport) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffer)
}

// GetStats returns current transport statistics
func (t *Transport) GetStats() TransportStats {
	t.mu.Lock()
	state := t.state
	buffered := len(t.buffer)
	t.mu.Unlock()

	t.statsMu.RLock()
	defer t.statsMu.RUnlock()
	return TransportStats{
		State:           state.String(),
		Buffered:        buffered,
		MessagesSent:    t.messagesSent,
		MessagesQueued:  t.messagesQueued,
		BufferRejected:  t.bufferRejected,
		SendFailures:    t.sendFailures,
		Dispatched:      t.dispatched,
		UnknownMessages: t.unknownMessages,
		ParseErrors:     t.parseErrors,
	}
}
