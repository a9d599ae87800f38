package chats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// MessagesPage is one page of a chat's history, oldest first. Cursor is the
// millisecond timestamp of the oldest message in the page and is nil when the
// page is empty.
type MessagesPage struct {
	Messages []models.Message
	Cursor   *int64
	HasMore  bool
}

// FindChatsByUser returns every chat the user participates in.
func (p *Provider) FindChatsByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	ctx, span := tracer.Start(ctx, "chats.FindChatsByUser")
	defer span.End()
	return p.load(ctx, chatKey{shape: shapeByUser, userID: userID})
}

// FindChatByUser returns the chat if the user participates in it, nil otherwise.
func (p *Provider) FindChatByUser(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	ctx, span := tracer.Start(ctx, "chats.FindChatByUser")
	defer span.End()
	return p.loadOne(ctx, chatKey{shape: shapeByIDForUser, chatID: chatID, userID: userID})
}

// FindChatByID returns the chat or nil when it does not exist.
func (p *Provider) FindChatByID(ctx context.Context, chatID string) (*models.Chat, error) {
	ctx, span := tracer.Start(ctx, "chats.FindChatByID")
	defer span.End()
	return p.loadOne(ctx, chatKey{shape: shapeByID, chatID: chatID})
}

// FindMessagesByChat pages backwards through a chat's history. A nil cursor
// starts at the newest message; otherwise only messages strictly older than
// the cursor are considered.
func (p *Provider) FindMessagesByChat(ctx context.Context, chatID string, limit int, cursor *int64) (MessagesPage, error) {
	ctx, span := tracer.Start(ctx, "chats.FindMessagesByChat")
	defer span.End()
	if limit <= 0 {
		return MessagesPage{}, ErrInvalidLimit
	}

	var before *time.Time
	if cursor != nil {
		t := time.UnixMilli(*cursor).UTC()
		before = &t
	}

	msgs, err := p.svc.messages.FindMessagesBefore(ctx, chatID, before, limit)
	if err != nil {
		return MessagesPage{}, fmt.Errorf("find messages: %w", err)
	}
	if len(msgs) == 0 {
		return MessagesPage{Messages: []models.Message{}}, nil
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	oldest := msgs[0].CreatedAt.UTC()
	older, err := p.svc.messages.FindMessagesBefore(ctx, chatID, &oldest, 1)
	if err != nil {
		return MessagesPage{}, fmt.Errorf("probe older messages: %w", err)
	}

	next := msgs[0].CursorMillis()
	return MessagesPage{Messages: msgs, Cursor: &next, HasMore: len(older) > 0}, nil
}

// LastMessage returns the newest message of a chat or nil when it has none.
func (p *Provider) LastMessage(ctx context.Context, chatID string) (*models.Message, error) {
	ctx, span := tracer.Start(ctx, "chats.LastMessage")
	defer span.End()
	msg, err := p.svc.messages.LastMessage(ctx, chatID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last message: %w", err)
	}
	return &msg, nil
}

// FirstRecipient returns the first participant of the chat other than the
// user. It returns nil when the chat does not exist, the user does not
// participate in it, or nobody else does.
func (p *Provider) FirstRecipient(ctx context.Context, chatID, userID string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "chats.FirstRecipient")
	defer span.End()
	chat, err := p.FindChatByID(ctx, chatID)
	if err != nil || chat == nil || !chat.HasParticipant(userID) {
		return nil, err
	}
	otherID, ok := chat.OtherParticipant(userID)
	if !ok {
		return nil, nil
	}
	return p.users.FindByID(ctx, otherID)
}

// Participants resolves the chat's participants in stored order. Ids with
// no user record are skipped; an unknown chat yields an empty list.
func (p *Provider) Participants(ctx context.Context, chatID string) ([]models.User, error) {
	ctx, span := tracer.Start(ctx, "chats.Participants")
	defer span.End()
	chat, err := p.FindChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return []models.User{}, nil
	}
	return p.users.FindManyByIDs(ctx, chat.ParticipantIDs)
}

// IsParticipant asks the store directly, bypassing the request cache.
func (p *Provider) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "chats.IsParticipant")
	defer span.End()
	return p.svc.isParticipant(ctx, chatID, userID)
}

func (s *Service) isParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	ok, err := s.chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("is participant: %w", err)
	}
	return ok, nil
}
