package chats

import (
	"context"

	"github.com/rs/zerolog"

	"messaging-service/internal/models"
)

// OnMessageAdded streams new messages of chats the user participates in.
// Membership is checked against the store at delivery time.
func (s *Service) OnMessageAdded(ctx context.Context, userID string) <-chan models.Message {
	filter := func(ctx context.Context, payload any) bool {
		msg, ok := payload.(models.Message)
		if !ok {
			return false
		}
		member, err := s.isParticipant(ctx, msg.ChatID, userID)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("chat_id", msg.ChatID).Msg("message filter failed")
			return false
		}
		return member
	}
	return relay[models.Message](ctx, s.broker.Subscribe(ctx, TopicMessageAdded, filter))
}

// OnChatAdded streams chats created with the user as a participant.
func (s *Service) OnChatAdded(ctx context.Context, userID string) <-chan models.Chat {
	filter := func(_ context.Context, payload any) bool {
		chat, ok := payload.(models.Chat)
		return ok && chat.HasParticipant(userID)
	}
	return relay[models.Chat](ctx, s.broker.Subscribe(ctx, TopicChatAdded, filter))
}

// OnChatRemoved streams removals of chats the user participated in. The
// event carries the removed record since the store no longer has it.
func (s *Service) OnChatRemoved(ctx context.Context, userID string) <-chan models.ChatRemoved {
	filter := func(_ context.Context, payload any) bool {
		ev, ok := payload.(models.ChatRemoved)
		return ok && ev.Chat.HasParticipant(userID)
	}
	return relay[models.ChatRemoved](ctx, s.broker.Subscribe(ctx, TopicChatRemoved, filter))
}

// relay converts a broker channel into a typed one. The output closes when
// the input does.
func relay[T any](ctx context.Context, in <-chan any) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for payload := range in {
			v, ok := payload.(T)
			if !ok {
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
