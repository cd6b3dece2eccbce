// Package store provides the local conversation transcript archive.
package store

import (
	"context"

	"github.com/Hemant07J07/mhchat/internal/domain"
)

// Archive records messages as the client observes them and serves the bounded
// recent history handed to the inference gateway. Ordering is insertion order,
// never timestamp order.
type Archive interface {
	// AppendMessage records one observed message at the end of the
	// conversation's transcript.
	AppendMessage(ctx context.Context, conversationID string, msg domain.Message) error

	// ReplaceConversation replaces the conversation's transcript wholesale,
	// used when the backend resynchronizes the full list on (re)connect.
	ReplaceConversation(ctx context.Context, conversationID string, msgs []domain.Message) error

	// Messages returns the conversation's transcript in insertion order.
	Messages(ctx context.Context, conversationID string) ([]domain.Message, error)

	// RecentHistory returns up to limit most recent turns, oldest first,
	// reduced to role and content.
	RecentHistory(ctx context.Context, conversationID string, limit int) ([]domain.HistoryTurn, error)

	// Ping verifies the archive is reachable.
	Ping(ctx context.Context) error

	// Close closes the archive.
	Close() error
}
