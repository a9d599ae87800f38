package models

import "time"

// Message represents a chat message.
type Message struct {
	ID        string    `db:"id" json:"id"`
	ChatID    string    `db:"chat_id" json:"chat_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CursorMillis encodes the creation time as a pagination cursor.
func (m Message) CursorMillis() int64 {
	return m.CreatedAt.UnixMilli()
}
