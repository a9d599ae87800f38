package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// MessageRepo is a GORM implementation of repositories.MessageRepository.
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ repositories.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) InsertMessage(ctx context.Context, msg models.Message) error {
	rec := newMessageRecord(msg)
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *MessageRepo) InsertMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	recs := make([]messageRecord, 0, len(msgs))
	for _, msg := range msgs {
		recs = append(recs, newMessageRecord(msg))
	}
	return r.db.WithContext(ctx).CreateInBatches(recs, 200).Error
}

func (r *MessageRepo) FindMessagesBefore(ctx context.Context, chatID string, before *time.Time, limit int) ([]models.Message, error) {
	q := r.db.WithContext(ctx).Where("chat_id = ?", chatID)
	if before != nil {
		q = q.Where("created_ms < ?", before.UnixMilli())
	}
	var recs []messageRecord
	if err := q.Order("created_ms DESC, id DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, rec.toModel())
	}
	return msgs, nil
}

func (r *MessageRepo) LastMessage(ctx context.Context, chatID string) (models.Message, error) {
	var rec messageRecord
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_ms DESC, id DESC").
		Take(&rec).Error
	if err != nil {
		return models.Message{}, errNotFound(err, repositories.ErrMessageNotFound)
	}
	return rec.toModel(), nil
}

func (r *MessageRepo) DeleteMessagesByChat(ctx context.Context, chatID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&messageRecord{})
	return res.RowsAffected, res.Error
}
