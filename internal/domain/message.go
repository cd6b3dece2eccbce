// Package domain defines the core chat types.
package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Sender values used by the chat backend.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// History roles sent to the inference service.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message. Messages are immutable once created and
// are only ever appended to a conversation in the order the client observes
// them.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalJSON accepts both numeric and string ids. The backend serializes
// database primary keys as JSON numbers; the id is treated as opaque text
// everywhere else.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		Sender    string          `json:"sender"`
		Text      string          `json:"text"`
		CreatedAt time.Time       `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.ID = rawID(raw.ID)
	m.Sender = raw.Sender
	m.Text = raw.Text
	m.CreatedAt = raw.CreatedAt
	return nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		if s, err := strconv.Unquote(string(raw)); err == nil {
			return s
		}
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// HistoryTurn is one prior turn of the conversation, reduced to the role and
// content the inference service accepts.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
