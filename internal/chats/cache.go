package chats

import (
	"sync"

	"messaging-service/internal/models"
)

// Cache maps chat ids to the most recently fetched chat record for one
// request. A cached record is trusted for every later lookup of that id in
// the same request, including lookups restricted to a participant: whoever
// populated the entry already passed the store's filter, and the request
// belongs to a single caller. The cache must never outlive or be shared
// across requests.
type Cache struct {
	mu    sync.RWMutex
	chats map[string]models.Chat
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{chats: make(map[string]models.Chat)}
}

func (c *Cache) Get(chatID string) (models.Chat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chat, ok := c.chats[chatID]
	return chat, ok
}

func (c *Cache) Put(chat models.Chat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats[chat.ID] = chat
}

func (c *Cache) Delete(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.chats, chatID)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chats)
}
