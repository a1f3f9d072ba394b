package model

import (
	"encoding/json"
	"strings"
)

// MessageKey identifies a provider message and its chat.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// MessageContent mirrors the subset of the Baileys message union the gateway
// cares about. Only plain conversations feed the auto-reply path; media kinds
// are recognized so they can be skipped deliberately rather than by accident.
type MessageContent struct {
	Conversation    string          `json:"conversation,omitempty"`
	ImageMessage    json.RawMessage `json:"imageMessage,omitempty"`
	AudioMessage    json.RawMessage `json:"audioMessage,omitempty"`
	VideoMessage    json.RawMessage `json:"videoMessage,omitempty"`
	DocumentMessage json.RawMessage `json:"documentMessage,omitempty"`
	StickerMessage  json.RawMessage `json:"stickerMessage,omitempty"`
}

// Message is the parsed view of one entry in a messages.upsert payload.
type Message struct {
	Key              MessageKey     `json:"key"`
	PushName         string         `json:"pushName,omitempty"`
	MessageTimestamp int64          `json:"messageTimestamp,omitempty"`
	Content          MessageContent `json:"message"`
}

// Text returns the plain conversation body, empty for media-only messages.
func (m *Message) Text() string {
	return m.Content.Conversation
}

// PhoneNumber derives the bare number the provider send API expects from the
// chat JID (user and group suffixes stripped).
func (m *Message) PhoneNumber() string {
	n := strings.TrimSuffix(m.Key.RemoteJID, "@s.whatsapp.net")
	return strings.TrimSuffix(n, "@g.us")
}

// ParseMessages decodes a messages.upsert data payload. The provider sends
// either a single message object or an array of them.
func ParseMessages(raw json.RawMessage) ([]*Message, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var batch []*Message
	if err := json.Unmarshal(raw, &batch); err == nil {
		return batch, nil
	}

	var single Message
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []*Message{&single}, nil
}
