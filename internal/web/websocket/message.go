package websocket

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Event types pushed on a feedback stream
const (
	EventFeedbackCreated = "feedback.created"
	EventFeedbackUpdated = "feedback.updated"
)

// Message is the envelope written to clients
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewMessage marshals payload into a message of the given type
func NewMessage(messageType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", messageType, err)
	}
	return &Message{Type: messageType, Data: data}, nil
}

// Encode returns the wire form of m
func (m *Message) Encode() ([]byte, error) {
	if m.Data == nil {
		m.Data = json.RawMessage("null")
	}
	return json.Marshal(m)
}

// AppRoom names the room carrying events for one app
func AppRoom(appID int64) string {
	return "app:" + strconv.FormatInt(appID, 10)
}
