package chat

import (
	"encoding/json"
	"log/slog"

	"github.com/Hemant07J07/mhchat/internal/domain"
)

// Dispatcher classifies inbound frames and routes each one exactly once.
//
// Classification is checked in priority order: the initial_messages resync,
// the two explicit single-message types, pong, backend error frames, and
// finally a best-effort fallback for untyped frames that still carry an id
// and text. Everything else is dropped with a diagnostic log line. A frame
// without an explicit type is only ever accepted via the fallback.
type Dispatcher struct {
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil logger falls back to slog.Default.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// Dispatch parses and classifies one raw frame. It returns false when the
// frame produced no event: malformed JSON, pong-free unknown types, or
// structurally incomplete payloads. Malformed payloads are never treated as
// content.
func (d *Dispatcher) Dispatch(conversationID string, raw []byte) (Event, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.logger.Warn("dropping malformed frame", "conversation_id", conversationID, "error", err)
		return Event{}, false
	}

	switch env.Type {
	case frameInitialMessages:
		if env.Messages == nil {
			break
		}
		return Event{
			Kind:           EventListReplaced,
			ConversationID: conversationID,
			Messages:       env.Messages,
		}, true
	case frameMessage, frameMessageSent:
		if env.Message == nil {
			break
		}
		return Event{
			Kind:           EventMessageAppended,
			ConversationID: conversationID,
			Message:        env.Message,
		}, true
	case framePong:
		return Event{Kind: EventPong, ConversationID: conversationID}, true
	case frameError:
		d.logger.Warn("backend error frame", "conversation_id", conversationID, "error", env.Error)
		return Event{
			Kind:           EventErrorFrame,
			ConversationID: conversationID,
			Detail:         env.Error,
		}, true
	}

	// Best-effort fallback: an unrecognized frame that looks like a bare
	// message object is appended as one.
	if len(env.ID) > 0 && env.Text != "" {
		var msg domain.Message
		if err := json.Unmarshal(raw, &msg); err == nil {
			return Event{
				Kind:           EventMessageAppended,
				ConversationID: conversationID,
				Message:        &msg,
			}, true
		}
	}

	d.logger.Debug("dropping unrecognized frame", "conversation_id", conversationID, "type", env.Type)
	return Event{}, false
}
