package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	InsertMessage(ctx context.Context, msg models.Message) error
	InsertMessages(ctx context.Context, msgs []models.Message) error
	// FindMessagesBefore returns up to limit messages of the chat created
	// strictly before the given time (all when nil), newest first.
	FindMessagesBefore(ctx context.Context, chatID string, before *time.Time, limit int) ([]models.Message, error)
	LastMessage(ctx context.Context, chatID string) (models.Message, error)
	DeleteMessagesByChat(ctx context.Context, chatID string) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const insertMessageQuery = `INSERT INTO messages (id, chat_id, sender_id, content, created_at) VALUES (:id, :chat_id, :sender_id, :content, :created_at)`

// InsertMessage stores a message in a private chat.
func (r *MessageRepo) InsertMessage(ctx context.Context, msg models.Message) error {
	_, err := r.db.NamedExecContext(ctx, insertMessageQuery, msg)
	return err
}

// InsertMessages stores several messages in one statement.
func (r *MessageRepo) InsertMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	_, err := r.db.NamedExecContext(ctx, insertMessageQuery, msgs)
	return err
}

// FindMessagesBefore returns a newest-first window of chat messages.
func (r *MessageRepo) FindMessagesBefore(ctx context.Context, chatID string, before *time.Time, limit int) ([]models.Message, error) {
	msgs := []models.Message{}
	var err error
	if before == nil {
		err = r.db.SelectContext(ctx, &msgs, `SELECT id, chat_id, sender_id, content, created_at FROM messages
            WHERE chat_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, chatID, limit)
	} else {
		err = r.db.SelectContext(ctx, &msgs, `SELECT id, chat_id, sender_id, content, created_at FROM messages
            WHERE chat_id=$1 AND created_at < $2 ORDER BY created_at DESC, id DESC LIMIT $3`, chatID, *before, limit)
	}
	return msgs, err
}

// LastMessage returns the most recent message of a chat.
func (r *MessageRepo) LastMessage(ctx context.Context, chatID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, chat_id, sender_id, content, created_at FROM messages
        WHERE chat_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// DeleteMessagesByChat removes every message of a chat and reports how many were deleted.
func (r *MessageRepo) DeleteMessagesByChat(ctx context.Context, chatID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id=$1`, chatID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
