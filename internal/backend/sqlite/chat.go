package sqlite

import (
	"context"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/id"
)

// ListChatHistory returns the newest limit messages in chronological order.
func (s *Store) ListChatHistory(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, role, message, created_at FROM (
			SELECT id, user_id, role, message, created_at, rowid AS seq
			FROM chat_history WHERE user_id = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		) ORDER BY created_at, seq`, userID, limit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list chat history")
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var (
			m       domain.ChatMessage
			created string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Message, &created); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan chat message")
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse chat time")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertChatMessage appends one message to the conversation.
func (s *Store) InsertChatMessage(ctx context.Context, msg domain.ChatMessage) (*domain.ChatMessage, error) {
	if msg.ID == "" {
		msgID, err := id.Generate(id.PrefixChat)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate message id")
		}
		msg.ID = msgID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_history (id, user_id, role, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.UserID, msg.Role, msg.Message, formatTime(msg.CreatedAt),
	); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "insert chat message")
	}
	return &msg, nil
}
