package models

import "encoding/json"

// WebSocket message types
const (
	WSTypeSend    = "send"
	WSTypeMessage = "message"
	WSTypeTyping  = "typing"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSInbound is a frame received from the browser. Payload is decoded
// according to Type.
type WSInbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type SendPayload struct {
	Text string `json:"text"`
}

type TypingPayload struct {
	Active bool `json:"active"`
}
