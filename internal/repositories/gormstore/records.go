package gormstore

import (
	"time"

	"messaging-service/internal/models"
)

type userRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"not null"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password;not null"`
	Picture      string
}

func (userRecord) TableName() string { return "users" }

func (r userRecord) toModel() models.User {
	return models.User{ID: r.ID, Name: r.Name, Username: r.Username, PasswordHash: r.PasswordHash, Picture: r.Picture}
}

type chatRecord struct {
	ID           string              `gorm:"primaryKey;size:36"`
	CreatedMs    int64               `gorm:"column:created_ms;index"`
	Participants []participantRecord `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
}

func (chatRecord) TableName() string { return "chats" }

// participantRecord keeps the participant list in insertion order.
type participantRecord struct {
	ChatID   string `gorm:"primaryKey;size:36"`
	Position int    `gorm:"primaryKey"`
	UserID   string `gorm:"index;size:36;not null"`
}

func (participantRecord) TableName() string { return "chat_participants" }

func (r chatRecord) toModel() models.Chat {
	ids := make([]string, len(r.Participants))
	for _, p := range r.Participants {
		if p.Position >= 0 && p.Position < len(ids) {
			ids[p.Position] = p.UserID
		}
	}
	return models.Chat{ID: r.ID, ParticipantIDs: ids, CreatedAt: time.UnixMilli(r.CreatedMs).UTC()}
}

// messageRecord stores the creation time as Unix milliseconds so range
// filters compare integers rather than driver-formatted timestamps.
type messageRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	ChatID    string `gorm:"index:idx_messages_chat_created,priority:1;size:36;not null"`
	SenderID  string `gorm:"size:36;not null"`
	Content   string `gorm:"not null"`
	CreatedMs int64  `gorm:"column:created_ms;index:idx_messages_chat_created,priority:2"`
}

func (messageRecord) TableName() string { return "messages" }

func newMessageRecord(msg models.Message) messageRecord {
	return messageRecord{ID: msg.ID, ChatID: msg.ChatID, SenderID: msg.SenderID, Content: msg.Content, CreatedMs: msg.CreatedAt.UnixMilli()}
}

func (r messageRecord) toModel() models.Message {
	return models.Message{ID: r.ID, ChatID: r.ChatID, SenderID: r.SenderID, Content: r.Content, CreatedAt: time.UnixMilli(r.CreatedMs).UTC()}
}
