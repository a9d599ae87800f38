package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	FindChatsByIDs(ctx context.Context, chatIDs []string) ([]models.Chat, error)
	FindChatsByParticipants(ctx context.Context, userIDs []string) ([]models.Chat, error)
	FindChatByPair(ctx context.Context, userID string, otherID string) (models.Chat, error)
	InsertChat(ctx context.Context, chat models.Chat) error
	DeleteChat(ctx context.Context, chatID string) error
	IsParticipant(ctx context.Context, chatID string, userID string) (bool, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

type chatRow struct {
	ID             string         `db:"id"`
	ParticipantIDs pq.StringArray `db:"participant_ids"`
	CreatedAt      sql.NullTime   `db:"created_at"`
}

func (r chatRow) toModel() models.Chat {
	chat := models.Chat{ID: r.ID, ParticipantIDs: []string(r.ParticipantIDs)}
	if r.CreatedAt.Valid {
		chat.CreatedAt = r.CreatedAt.Time
	}
	return chat
}

func toChats(rows []chatRow) []models.Chat {
	chats := make([]models.Chat, 0, len(rows))
	for _, row := range rows {
		chats = append(chats, row.toModel())
	}
	return chats
}

// FindChatsByIDs returns the chats whose id is in chatIDs. Missing ids are skipped.
func (r *ChatRepo) FindChatsByIDs(ctx context.Context, chatIDs []string) ([]models.Chat, error) {
	if len(chatIDs) == 0 {
		return []models.Chat{}, nil
	}
	var rows []chatRow
	err := r.db.SelectContext(ctx, &rows, `SELECT id, participant_ids, created_at FROM chats WHERE id = ANY($1) ORDER BY created_at ASC, id ASC`, pq.Array(chatIDs))
	if err != nil {
		return nil, err
	}
	return toChats(rows), nil
}

// FindChatsByParticipants returns every chat that has at least one of userIDs as a participant.
func (r *ChatRepo) FindChatsByParticipants(ctx context.Context, userIDs []string) ([]models.Chat, error) {
	if len(userIDs) == 0 {
		return []models.Chat{}, nil
	}
	var rows []chatRow
	err := r.db.SelectContext(ctx, &rows, `SELECT id, participant_ids, created_at FROM chats WHERE participant_ids && $1 ORDER BY created_at ASC, id ASC`, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	return toChats(rows), nil
}

// FindChatByPair finds the chat between two users regardless of participant order.
func (r *ChatRepo) FindChatByPair(ctx context.Context, userID string, otherID string) (models.Chat, error) {
	var row chatRow
	query := `SELECT id, participant_ids, created_at FROM chats
        WHERE participant_ids @> $1 AND participant_ids <@ $1 AND cardinality(participant_ids) = 2
        ORDER BY created_at ASC, id ASC LIMIT 1`
	err := r.db.GetContext(ctx, &row, query, pq.Array([]string{userID, otherID}))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	return row.toModel(), nil
}

// InsertChat stores a new chat keeping participant order.
func (r *ChatRepo) InsertChat(ctx context.Context, chat models.Chat) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chats (id, participant_ids, created_at) VALUES ($1, $2, $3)`,
		chat.ID, pq.Array(chat.ParticipantIDs), chat.CreatedAt)
	return err
}

// DeleteChat removes a chat. Deleting a missing chat is not an error.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
	return err
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID string, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND $2 = ANY(participant_ids))`, chatID, userID)
	return exists, err
}
