package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChatHasParticipant(t *testing.T) {
	chat := Chat{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}

	assert.True(t, chat.HasParticipant("u1"))
	assert.True(t, chat.HasParticipant("u2"))
	assert.False(t, chat.HasParticipant("u3"))
}

func TestChatOtherParticipant(t *testing.T) {
	chat := Chat{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}

	other, ok := chat.OtherParticipant("u1")
	assert.True(t, ok)
	assert.Equal(t, "u2", other)

	other, ok = chat.OtherParticipant("u2")
	assert.True(t, ok)
	assert.Equal(t, "u1", other)

	_, ok = Chat{ParticipantIDs: []string{"u1", "u1"}}.OtherParticipant("u1")
	assert.False(t, ok)
}

func TestMessageCursorMillis(t *testing.T) {
	at := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := Message{CreatedAt: at.Add(1500 * time.Microsecond)}

	assert.Equal(t, at.UnixMilli()+1, msg.CursorMillis())
}
