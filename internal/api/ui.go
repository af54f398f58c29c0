package api

import (
	"time"

	"github.com/yegors/webchat/internal/websocket"
)

// UIBridge adapts the WebSocket fan-out server to the chat engine's UI
// sink. Everything the customer should see becomes a broadcast event the
// widget renders.
type UIBridge struct {
	stream *websocket.Server
}

// NewUIBridge creates the adapter
func NewUIBridge(stream *websocket.Server) *UIBridge {
	return &UIBridge{stream: stream}
}

// Render appends one transcript line
func (b *UIBridge) Render(text, category string, timestamp time.Time, displayName string) {
	b.stream.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeTranscript,
		Data: map[string]any{
			"text":         text,
			"category":     category,
			"timestamp":    timestamp.UTC().Format(time.RFC3339),
			"display_name": displayName,
		},
	})
}

// SetControlsEnabled toggles the widget's input controls
func (b *UIBridge) SetControlsEnabled(enabled bool) {
	b.stream.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeControls,
		Data: map[string]any{
			"enabled": enabled,
		},
	})
}

// SetHeaderMode changes the widget header
func (b *UIBridge) SetHeaderMode(mode string) {
	b.stream.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeHeader,
		Data: map[string]any{
			"mode": mode,
		},
	})
}

// SetTypingIndicator toggles an agent typing indicator
func (b *UIBridge) SetTypingIndicator(displayName string, typing bool) {
	b.stream.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeTypingIndicator,
		Data: map[string]any{
			"display_name": displayName,
			"typing":       typing,
		},
	})
}
