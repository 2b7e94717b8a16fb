// Package chat persists conversations and generates assistant replies in
// the background. A submitted question immediately yields a stored user
// message and an assistant placeholder; a worker later overwrites the
// placeholder with the generated answer or a fallback failure message.
package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caduceus-ai/caduceus/internal/log"
	"github.com/caduceus-ai/caduceus/internal/rag"
)

// ErrNotFound indicates the requested chat or message does not exist.
var ErrNotFound = errors.New("chat not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTitle is the title given to a chat before its first message.
const DefaultTitle = "New medical chat"

// Chat is one conversation.
type Chat struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one entry in a conversation. Sources and Confidence are only
// set on assistant messages, and only once generation completed.
type Message struct {
	ID         string
	ChatID     string
	Role       string
	Content    string
	Sources    []rag.SourceRef
	Confidence *float64
	CreatedAt  time.Time
}

// Store persists chats and messages in SQLite. It is safe for concurrent
// use; SQLite serializes writers underneath database/sql.
type Store struct {
	db     *sql.DB
	logger log.Logger
}

// NewStore returns a Store backed by an already migrated database.
func NewStore(db *sql.DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// CreateChat creates a conversation. An empty title gets the default.
func (s *Store) CreateChat(ctx context.Context, title string) (*Chat, error) {
	if title == "" {
		title = DefaultTitle
	}

	chat := &Chat{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	chat.UpdatedAt = chat.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		chat.ID, chat.Title, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	s.logger.Debug("created chat", "chat_id", chat.ID, "title", chat.Title)
	return chat, nil
}

// GetChat retrieves one conversation by id.
func (s *Store) GetChat(ctx context.Context, id string) (*Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM chats WHERE id = ?`, id)

	var chat Chat
	if err := row.Scan(&chat.ID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get chat %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get chat %s: %w", id, err)
	}
	return &chat, nil
}

// ListChats returns all conversations, most recently active first.
func (s *Store) ListChats(ctx context.Context) ([]*Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM chats ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list chats: %w", err)
		}
		chats = append(chats, &chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// RenameChat updates a conversation's title.
func (s *Store) RenameChat(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("rename chat %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("rename chat %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteChat removes a conversation and all its messages.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete chat %s: %w", id, ErrNotFound)
	}
	s.logger.Debug("deleted chat", "chat_id", id)
	return nil
}

// AppendMessage stores one message and bumps the chat's activity
// timestamp.
func (s *Store) AppendMessage(ctx context.Context, chatID, role, content string) (*Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}

	msg := &Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append message to chat %s: %w", chatID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE chats SET updated_at = ? WHERE id = ?`, msg.CreatedAt, chatID)
	if err != nil {
		return nil, fmt.Errorf("append message to chat %s: %w", chatID, err)
	}

	return msg, nil
}

// CompleteMessage overwrites a message's content with the generated
// answer, including its cited sources and optional confidence.
func (s *Store) CompleteMessage(ctx context.Context, messageID, content string, sources []rag.SourceRef, confidence *float64) error {
	var sourcesJSON any
	if sources != nil {
		encoded, err := json.Marshal(sources)
		if err != nil {
			return fmt.Errorf("complete message %s: %w", messageID, err)
		}
		sourcesJSON = string(encoded)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, sources = ?, confidence = ? WHERE id = ?`,
		content, sourcesJSON, confidence, messageID)
	if err != nil {
		return fmt.Errorf("complete message %s: %w", messageID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("complete message %s: %w", messageID, ErrNotFound)
	}
	return nil
}

// Messages returns a conversation's messages in insertion order.
func (s *Store) Messages(ctx context.Context, chatID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, sources, confidence, created_at
		 FROM messages WHERE chat_id = ? ORDER BY created_at, id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("messages for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var (
			msg        Message
			sourcesRaw sql.NullString
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content,
			&sourcesRaw, &confidence, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("messages for chat %s: %w", chatID, err)
		}

		if sourcesRaw.Valid && sourcesRaw.String != "" {
			if err := json.Unmarshal([]byte(sourcesRaw.String), &msg.Sources); err != nil {
				s.logger.Warn("malformed sources on message, dropping",
					"message_id", msg.ID, "error", err)
				msg.Sources = nil
			}
		}
		if confidence.Valid {
			msg.Confidence = &confidence.Float64
		}

		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages for chat %s: %w", chatID, err)
	}
	return messages, nil
}
