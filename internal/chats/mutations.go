package chats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// Routing keys used when mirroring events to the external broker.
const (
	RoutingMessageAdded = "chats.message_added"
	RoutingChatAdded    = "chats.chat_added"
	RoutingChatRemoved  = "chats.chat_removed"
)

// AddMessage stores a message from userID in the chat and announces it.
func (p *Provider) AddMessage(ctx context.Context, chatID, userID, content string) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "chats.AddMessage")
	defer span.End()
	content = norm.NFC.String(content)
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyContent
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  userID,
		Content:   content,
		CreatedAt: p.svc.timestamp(),
	}
	if err := p.svc.messages.InsertMessage(ctx, msg); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}

	p.svc.announce(ctx, TopicMessageAdded, RoutingMessageAdded, msg)
	return msg, nil
}

// AddChat returns the chat between userID and recipientID, creating and
// announcing it when none exists yet.
func (p *Provider) AddChat(ctx context.Context, userID, recipientID string) (models.Chat, error) {
	ctx, span := tracer.Start(ctx, "chats.AddChat")
	defer span.End()
	existing, err := p.svc.chats.FindChatByPair(ctx, userID, recipientID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrChatNotFound) {
		return models.Chat{}, fmt.Errorf("find chat by pair: %w", err)
	}

	chat := models.Chat{
		ID:             uuid.NewString(),
		ParticipantIDs: []string{userID, recipientID},
		CreatedAt:      p.svc.timestamp(),
	}
	if err := p.svc.chats.InsertChat(ctx, chat); err != nil {
		return models.Chat{}, fmt.Errorf("insert chat: %w", err)
	}
	p.cache.Put(chat)
	p.loader.ClearAll()

	p.svc.announce(ctx, TopicChatAdded, RoutingChatAdded, chat)
	return chat, nil
}

// RemoveChat deletes a chat the user participates in together with its
// messages. It returns nil when the chat does not exist or the user is not
// one of its participants.
func (p *Provider) RemoveChat(ctx context.Context, chatID, userID string) (*string, error) {
	ctx, span := tracer.Start(ctx, "chats.RemoveChat")
	defer span.End()
	found, err := p.svc.chats.FindChatsByIDs(ctx, []string{chatID})
	if err != nil {
		return nil, fmt.Errorf("find chat: %w", err)
	}
	if len(found) == 0 || !found[0].HasParticipant(userID) {
		return nil, nil
	}
	chat := found[0]

	deleted, err := p.svc.messages.DeleteMessagesByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}
	if err := p.svc.chats.DeleteChat(ctx, chatID); err != nil && !errors.Is(err, repositories.ErrChatNotFound) {
		return nil, fmt.Errorf("delete chat: %w", err)
	}
	p.cache.Delete(chatID)
	p.loader.ClearAll()

	zerolog.Ctx(ctx).Debug().Str("chat_id", chatID).Int64("messages", deleted).Msg("chat removed")
	p.svc.announce(ctx, TopicChatRemoved, RoutingChatRemoved, models.ChatRemoved{ChatID: chatID, Chat: chat})
	return &chatID, nil
}

// announce publishes to in-process subscribers, then mirrors the event.
// Mirror failures are logged and never fail the mutation.
func (s *Service) announce(ctx context.Context, topic, routingKey string, payload any) {
	delivered := s.broker.Publish(topic, payload)
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("topic", topic).Int("delivered", delivered).Msg("event published")

	if s.mirror == nil {
		return
	}
	if err := s.mirror.Publish(ctx, routingKey, payload); err != nil {
		logger.Warn().Err(err).Str("routing_key", routingKey).Msg("event mirror publish failed")
	}
}
