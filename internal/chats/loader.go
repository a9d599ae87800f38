package chats

import (
	"context"
	"fmt"

	"github.com/graph-gophers/dataloader/v7"
	"go.opentelemetry.io/otel/attribute"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

type keyShape uint8

const (
	// every chat the user participates in
	shapeByUser keyShape = iota
	// one chat, only if the user participates in it
	shapeByIDForUser
	// one chat regardless of participation
	shapeByID
)

// chatKey identifies one chat lookup. Keys are comparable so identical
// lookups within a request are coalesced by the loader.
type chatKey struct {
	shape  keyShape
	chatID string
	userID string
}

func (k chatKey) String() string {
	switch k.shape {
	case shapeByUser:
		return "user:" + k.userID
	case shapeByIDForUser:
		return "chat:" + k.chatID + "/user:" + k.userID
	default:
		return "chat:" + k.chatID
	}
}

// batchChats answers one window of lookups. Keys are grouped by shape and
// each group costs at most one store query. By-id lookups answered by the
// request cache skip the store entirely. A failing query fails only the keys
// of its own group.
func (p *Provider) batchChats(ctx context.Context, keys []chatKey) []*dataloader.Result[[]models.Chat] {
	ctx, span := tracer.Start(ctx, "chats.batch")
	defer span.End()
	span.SetAttributes(attribute.Int("chats.batch.keys", len(keys)))
	observability.ObserveLoaderBatch("chats", len(keys))

	results := make([]*dataloader.Result[[]models.Chat], len(keys))

	var (
		userKeys []int
		idKeys   []int
		userIDs  []string
		chatIDs  []string
		seenUser = make(map[string]bool)
		seenChat = make(map[string]bool)
	)
	for i, k := range keys {
		if k.shape == shapeByUser {
			userKeys = append(userKeys, i)
			if !seenUser[k.userID] {
				seenUser[k.userID] = true
				userIDs = append(userIDs, k.userID)
			}
			continue
		}
		if chat, ok := p.cache.Get(k.chatID); ok {
			results[i] = &dataloader.Result[[]models.Chat]{Data: []models.Chat{chat}}
			continue
		}
		idKeys = append(idKeys, i)
		if !seenChat[k.chatID] {
			seenChat[k.chatID] = true
			chatIDs = append(chatIDs, k.chatID)
		}
	}

	if len(userKeys) > 0 {
		rows, err := p.svc.chats.FindChatsByParticipants(ctx, userIDs)
		if err != nil {
			span.RecordError(err)
			fail(results, userKeys, fmt.Errorf("find chats by participants: %w", err))
		} else {
			for _, chat := range rows {
				p.cache.Put(chat)
			}
			for _, i := range userKeys {
				matched := []models.Chat{}
				for _, chat := range rows {
					if chat.HasParticipant(keys[i].userID) {
						matched = append(matched, chat)
					}
				}
				results[i] = &dataloader.Result[[]models.Chat]{Data: matched}
			}
		}
	}

	if len(idKeys) > 0 {
		rows, err := p.svc.chats.FindChatsByIDs(ctx, chatIDs)
		if err != nil {
			span.RecordError(err)
			fail(results, idKeys, fmt.Errorf("find chats by ids: %w", err))
		} else {
			byID := make(map[string]models.Chat, len(rows))
			for _, chat := range rows {
				byID[chat.ID] = chat
			}
			for _, i := range idKeys {
				k := keys[i]
				chat, ok := byID[k.chatID]
				if !ok || (k.shape == shapeByIDForUser && !chat.HasParticipant(k.userID)) {
					results[i] = &dataloader.Result[[]models.Chat]{Data: []models.Chat{}}
					continue
				}
				p.cache.Put(chat)
				results[i] = &dataloader.Result[[]models.Chat]{Data: []models.Chat{chat}}
			}
		}
	}
	return results
}

func fail(results []*dataloader.Result[[]models.Chat], idx []int, err error) {
	for _, i := range idx {
		results[i] = &dataloader.Result[[]models.Chat]{Error: err}
	}
}

func (p *Provider) load(ctx context.Context, key chatKey) ([]models.Chat, error) {
	return p.loader.Load(ctx, key)()
}

func (p *Provider) loadOne(ctx context.Context, key chatKey) (*models.Chat, error) {
	chats, err := p.load(ctx, key)
	if err != nil || len(chats) == 0 {
		return nil, err
	}
	chat := chats[0]
	return &chat, nil
}
