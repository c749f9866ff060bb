package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shivansh-2508/AI-DB/internal/conversation"
)

// Store persists transcripts in the chat_message table created by the migrations package.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const appendQuery = `
INSERT INTO chat_message (partition_key, message_id, role, content, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5)
ON CONFLICT (partition_key, message_id) WHERE message_id IS NOT NULL
DO UPDATE SET role = EXCLUDED.role, content = EXCLUDED.content`

const listQuery = `
SELECT role, content, message_id, created_at
FROM chat_message
WHERE partition_key = $1
ORDER BY id`

const clearQuery = `DELETE FROM chat_message WHERE partition_key = $1`

func (s *Store) Append(ctx context.Context, key string, turn conversation.Turn) error {
	if key == "" {
		return conversation.ErrInvalidKey
	}
	content, err := json.Marshal(conversation.EncodeContent(turn.Content))
	if err != nil {
		return fmt.Errorf("encode turn content: %w", err)
	}
	createdAt := turn.Timestamp
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	messageID := sql.NullString{String: turn.MessageID, Valid: turn.MessageID != ""}

	if _, err := s.db.ExecContext(ctx, appendQuery, key, messageID, string(turn.Role), string(content), createdAt); err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, key string) ([]conversation.Turn, error) {
	if key == "" {
		return nil, conversation.ErrInvalidKey
	}
	rows, err := s.db.QueryContext(ctx, listQuery, key)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns := make([]conversation.Turn, 0)
	for rows.Next() {
		var (
			role      string
			content   []byte
			messageID sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&role, &content, &messageID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		var decoded any
		if err := json.Unmarshal(content, &decoded); err != nil {
			decoded = string(content)
		}
		record := map[string]any{
			"role":      role,
			"content":   decoded,
			"timestamp": createdAt,
		}
		if messageID.Valid {
			record["message_id"] = messageID.String
		}
		turns = append(turns, conversation.Decode(record))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return turns, nil
}

func (s *Store) Clear(ctx context.Context, key string) error {
	if key == "" {
		return conversation.ErrInvalidKey
	}
	if _, err := s.db.ExecContext(ctx, clearQuery, key); err != nil {
		return fmt.Errorf("clear chat messages: %w", err)
	}
	return nil
}
