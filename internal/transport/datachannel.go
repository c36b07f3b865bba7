package transport

import (
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// RTCDataChannel is the subset of *webrtc.DataChannel the adapter drives.
type RTCDataChannel interface {
	Label() string
	OnOpen(func())
	OnMessage(func(webrtc.DataChannelMessage))
	OnClose(func())
	SendText(string) error
	Close() error
}

// DataChannel adapts a WebRTC data channel to the Channel interface. ICE
// and SDP negotiation stay with the caller; this adapter only maps the data
// channel lifecycle onto the transport.
type DataChannel struct {
	dc RTCDataChannel
}

// AttachDataChannel wires a negotiated data channel to the transport. The
// transport opens when the channel's OnOpen fires.
func AttachDataChannel(dc RTCDataChannel, t *Transport, logger *slog.Logger) *DataChannel {
	ch := &DataChannel{dc: dc}
	t.Attach(ch)

	dc.OnOpen(func() {
		logger.Info("Data channel open", "label", dc.Label())
		t.HandleOpen()
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.HandleRaw(msg.Data)
	})

	dc.OnClose(func() {
		logger.Info("Data channel closed", "label", dc.Label())
		t.HandleClose()
	})

	return ch
}

// Send writes one message as text on the data channel.
func (ch *DataChannel) Send(data []byte) error {
	return ch.dc.SendText(string(data))
}

// Close tears down the data channel.
func (ch *DataChannel) Close() error {
	return ch.dc.Close()
}
