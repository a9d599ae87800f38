package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// ChatRepo is a GORM implementation of repositories.ChatRepository.
type ChatRepo struct {
	db *gorm.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *gorm.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

var _ repositories.ChatRepository = (*ChatRepo)(nil)

func (r *ChatRepo) findWhere(ctx context.Context, query any, args ...any) ([]models.Chat, error) {
	var records []chatRecord
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where(query, args...).
		Order("created_ms ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	chats := make([]models.Chat, 0, len(records))
	for _, rec := range records {
		chats = append(chats, rec.toModel())
	}
	return chats, nil
}

func (r *ChatRepo) FindChatsByIDs(ctx context.Context, chatIDs []string) ([]models.Chat, error) {
	if len(chatIDs) == 0 {
		return []models.Chat{}, nil
	}
	return r.findWhere(ctx, "id IN ?", chatIDs)
}

func (r *ChatRepo) FindChatsByParticipants(ctx context.Context, userIDs []string) ([]models.Chat, error) {
	if len(userIDs) == 0 {
		return []models.Chat{}, nil
	}
	sub := r.db.Model(&participantRecord{}).Select("chat_id").Where("user_id IN ?", userIDs)
	return r.findWhere(ctx, "id IN (?)", sub)
}

func (r *ChatRepo) FindChatByPair(ctx context.Context, userID string, otherID string) (models.Chat, error) {
	// Chats holding both users; the exact pair is checked below so that a
	// self-chat never matches a pair of distinct users and vice versa.
	withUser := r.db.Model(&participantRecord{}).Select("chat_id").Where("user_id = ?", userID)
	withOther := r.db.Model(&participantRecord{}).Select("chat_id").Where("user_id = ?", otherID)
	candidates, err := r.findWhere(ctx, "id IN (?) AND id IN (?)", withUser, withOther)
	if err != nil {
		return models.Chat{}, err
	}
	for _, chat := range candidates {
		if samePair(chat.ParticipantIDs, userID, otherID) {
			return chat, nil
		}
	}
	return models.Chat{}, repositories.ErrChatNotFound
}

func samePair(ids []string, a, b string) bool {
	if len(ids) != 2 {
		return false
	}
	return (ids[0] == a && ids[1] == b) || (ids[0] == b && ids[1] == a)
}

func (r *ChatRepo) InsertChat(ctx context.Context, chat models.Chat) error {
	rec := chatRecord{ID: chat.ID, CreatedMs: chat.CreatedAt.UnixMilli()}
	for i, id := range chat.ParticipantIDs {
		rec.Participants = append(rec.Participants, participantRecord{ChatID: chat.ID, Position: i, UserID: id})
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *ChatRepo) DeleteChat(ctx context.Context, chatID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&participantRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", chatID).Delete(&chatRecord{}).Error
	})
}

func (r *ChatRepo) IsParticipant(ctx context.Context, chatID string, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&participantRecord{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// errNotFound maps GORM's not-found error to the repository sentinel.
func errNotFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
