package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message type discriminators
const (
	TypeSnapshot        = "snapshot"
	TypeCommand         = "command"
	TypeModelText       = "model_text"
	TypeCaptureSnapshot = "capture_snapshot"
)

// DefaultSnapshotQuality is applied when a capture request omits quality.
const DefaultSnapshotQuality = 80

// SnapshotChunkSize is the nominal split size for snapshot payloads.
// Snapshots currently travel as single base64 blobs; the data channel
// handles payloads of this order without transport-level chunking.
const SnapshotChunkSize = 16 * 1024

// Message is the JSON envelope carried on the channel. The type
// discriminator selects which payload fields are meaningful.
type Message struct {
	Type string `json:"type"`

	// snapshot
	ID         string `json:"id,omitempty"`
	MIME       string `json:"mime,omitempty"`
	DataBase64 string `json:"data_base64,omitempty"`
	Size       int    `json:"size,omitempty"`

	// command
	Command string         `json:"command,omitempty"`
	Params  map[string]any `json:"params,omitempty"`

	// model_text
	Text string `json:"text,omitempty"`

	// capture_snapshot
	Quality int `json:"quality,omitempty"`

	Timestamp int64 `json:"ts,omitempty"` // Unix milliseconds
}

// NewSnapshotMessage wraps an image payload in a snapshot envelope.
func NewSnapshotMessage(mime string, data []byte) *Message {
	return &Message{
		Type:       TypeSnapshot,
		ID:         uuid.New().String(),
		MIME:       mime,
		DataBase64: base64.StdEncoding.EncodeToString(data),
		Size:       len(data),
		Timestamp:  time.Now().UnixMilli(),
	}
}

// NewCommandMessage builds a command envelope.
func NewCommandMessage(command string, params map[string]any) *Message {
	return &Message{
		Type:      TypeCommand,
		Command:   command,
		Params:    params,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewModelTextMessage builds a model_text envelope.
func NewModelTextMessage(text string) *Message {
	return &Message{
		Type: TypeModelText,
		Text: text,
	}
}

// NewCaptureSnapshotMessage builds a capture_snapshot request.
func NewCaptureSnapshotMessage(quality int) *Message {
	if quality <= 0 {
		quality = DefaultSnapshotQuality
	}
	return &Message{
		Type:    TypeCaptureSnapshot,
		Quality: quality,
	}
}

// ParseMessage decodes an incoming envelope. The type discriminator must be
// present; payload fields are not validated here.
func ParseMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message missing type field")
	}
	return &msg, nil
}

// SnapshotData decodes the base64 payload of a snapshot envelope.
func (m *Message) SnapshotData() ([]byte, error) {
	if m.Type != TypeSnapshot {
		return nil, fmt.Errorf("not a snapshot message: %s", m.Type)
	}
	return base64.StdEncoding.DecodeString(m.DataBase64)
}

// Marshal encodes the envelope for the wire.
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
