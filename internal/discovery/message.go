package discovery

import (
	"encoding/json"
	"fmt"
	"time"
)

// Discovery message discriminators
const (
	TypeDiscover = "discover"
	TypeResponse = "response"
	TypeAnnounce = "announce"
)

// CompanionInfo identifies a discovered companion endpoint. It is produced
// once per successful handshake, used to configure the transport, and not
// persisted across sessions.
type CompanionInfo struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// Addr returns the companion's channel address in host:port form.
func (c *CompanionInfo) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Message is the JSON datagram exchanged on the discovery port. Response
// and announce messages carry the companion fields inline.
type Message struct {
	Type      string `json:"type"`
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
	Name      string `json:"name,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ParseMessage decodes and validates a discovery datagram
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse discovery message: %w", err)
	}

	switch msg.Type {
	case TypeDiscover:
		return &msg, nil
	case TypeResponse, TypeAnnounce:
		if msg.Host == "" {
			return nil, fmt.Errorf("%s message missing host", msg.Type)
		}
		if msg.Port < 1 || msg.Port > 65535 {
			return nil, fmt.Errorf("%s message has invalid port %d", msg.Type, msg.Port)
		}
		return &msg, nil
	default:
		return nil, fmt.Errorf("unknown discovery message type %q", msg.Type)
	}
}

// Info extracts the companion endpoint from a response or announce message
func (m *Message) Info() *CompanionInfo {
	return &CompanionInfo{
		Host:      m.Host,
		Port:      m.Port,
		Name:      m.Name,
		Timestamp: m.Timestamp,
	}
}

// NewResponse builds a response datagram for the given companion endpoint
func NewResponse(info *CompanionInfo) ([]byte, error) {
	msg := Message{
		Type:      TypeResponse,
		Host:      info.Host,
		Port:      info.Port,
		Name:      info.Name,
		Timestamp: info.Timestamp,
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	return json.Marshal(&msg)
}
