package chat

import (
	"encoding/json"
	"time"

	"github.com/Hemant07J07/mhchat/internal/domain"
)

// EventKind classifies session events.
type EventKind string

// Session lifecycle and dispatcher events.
const (
	// EventOpened is emitted when the connection reaches the open state.
	EventOpened EventKind = "opened"
	// EventClosed is emitted when the connection drops; the session schedules
	// its own reconnect unless it was closed explicitly.
	EventClosed EventKind = "closed"
	// EventListReplaced carries a full message list that replaces the visible
	// list wholesale (sent by the backend on (re)connect).
	EventListReplaced EventKind = "list_replaced"
	// EventMessageAppended carries exactly one message to append.
	EventMessageAppended EventKind = "message_appended"
	// EventPong marks connection liveness; it has no content effect.
	EventPong EventKind = "pong"
	// EventErrorFrame carries a backend-reported error such as
	// "message_too_long" or "rate_limited". Diagnostic only.
	EventErrorFrame EventKind = "error_frame"
)

// Event is one observable occurrence on a Session.
type Event struct {
	Kind           EventKind
	ConversationID string
	// Messages is set for EventListReplaced.
	Messages []domain.Message
	// Message is set for EventMessageAppended.
	Message *domain.Message
	// Detail is set for EventErrorFrame and EventClosed.
	Detail string
}

// Inbound frame types sent by the backend.
const (
	frameInitialMessages = "initial_messages"
	frameMessage         = "message"
	frameMessageSent     = "message_sent"
	framePong            = "pong"
	frameError           = "error"
)

// Outbound frame actions.
const (
	actionPing        = "ping"
	actionSendMessage = "send_message"
)

// envelope is one parsed inbound frame. Untyped frames that look like a bare
// message object keep their id/text/sender fields at the top level.
type envelope struct {
	Type     string           `json:"type"`
	Messages []domain.Message `json:"messages"`
	Message  *domain.Message  `json:"message"`
	Error    string           `json:"error"`

	ID        json.RawMessage `json:"id"`
	Text      string          `json:"text"`
	Sender    string          `json:"sender"`
	CreatedAt time.Time       `json:"created_at"`
}

// outboundFrame is the JSON shape of client-to-backend frames.
type outboundFrame struct {
	Action string `json:"action"`
	Text   string `json:"text,omitempty"`
}
