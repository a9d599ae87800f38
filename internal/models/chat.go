package models

import "time"

// Chat represents a private chat between exactly two users.
type Chat struct {
	ID             string    `db:"id" json:"id"`
	ParticipantIDs []string  `db:"-" json:"participant_ids"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID is one of the chat's participants.
func (c Chat) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the first participant whose id differs from userID.
func (c Chat) OtherParticipant(userID string) (string, bool) {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id, true
		}
	}
	return "", false
}

// ChatRemoved is published after a chat and its messages are deleted. It
// carries the prior record so subscribers can still check participation.
type ChatRemoved struct {
	ChatID string `json:"chat_id"`
	Chat   Chat   `json:"chat"`
}
