package chats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"messaging-service/internal/models"
)

func TestCache(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("c1")
	assert.False(t, ok)

	c.Put(models.Chat{ID: "c1", ParticipantIDs: []string{"u1"}})
	c.Put(models.Chat{ID: "c1", ParticipantIDs: []string{"u1", "u2"}})
	chat, ok := c.Get("c1")
	assert.True(t, ok)
	assert.Equal(t, []string{"u1", "u2"}, chat.ParticipantIDs)
	assert.Equal(t, 1, c.Len())

	c.Delete("c1")
	assert.Equal(t, 0, c.Len())
}
