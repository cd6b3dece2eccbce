package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Hemant07J07/mhchat/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteArchive implements Archive using SQLite.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-backed archive at dbPath.
func NewSQLite(dbPath string) (Archive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode keeps reads cheap while the session goroutine appends.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	archive := &SQLiteArchive{db: db}
	if err := archive.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return archive, nil
}

func (s *SQLiteArchive) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteArchive) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteArchive) Close() error {
	return s.db.Close()
}

// AppendMessage records one message at the end of the transcript.
func (s *SQLiteArchive) AppendMessage(ctx context.Context, conversationID string, msg domain.Message) error {
	query := `
		INSERT INTO messages (conversation_id, message_id, sender, text, created_at)
		VALUES (?, ?, ?, ?, ?)`
	err := withBusyRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query,
			conversationID, msg.ID, msg.Sender, msg.Text, msg.CreatedAt.Unix())
		return err
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ReplaceConversation replaces the transcript wholesale inside one
// transaction, so a replayed resync yields the same final transcript.
func (s *SQLiteArchive) ReplaceConversation(ctx context.Context, conversationID string, msgs []domain.Message) error {
	return withBusyRetry(ctx, func() error {
		return s.replaceConversation(ctx, conversationID, msgs)
	})
}

func (s *SQLiteArchive) replaceConversation(ctx context.Context, conversationID string, msgs []domain.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (conversation_id, message_id, sender, text, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, msg := range msgs {
		if _, err := stmt.ExecContext(ctx,
			conversationID, msg.ID, msg.Sender, msg.Text, msg.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// Messages returns the transcript in insertion order.
func (s *SQLiteArchive) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	query := `
		SELECT message_id, sender, text, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.CreatedAt = time.Unix(createdAt, 0)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// RecentHistory returns up to limit most recent turns, oldest first. The
// backend's "user" sender maps to the user role; everything else speaks for
// the assistant.
func (s *SQLiteArchive) RecentHistory(ctx context.Context, conversationID string, limit int) ([]domain.HistoryTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `
		SELECT sender, text
		FROM messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []domain.HistoryTurn
	for rows.Next() {
		var sender, text string
		if err := rows.Scan(&sender, &text); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		role := domain.RoleAssistant
		if sender == domain.SenderUser {
			role = domain.RoleUser
		}
		turns = append(turns, domain.HistoryTurn{Role: role, Content: text})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query walks newest-first; callers want oldest-first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
