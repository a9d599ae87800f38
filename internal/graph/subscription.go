package graph

import (
	"context"

	"github.com/graph-gophers/graphql-go"
)

// Subscriptions only deliver to an authenticated caller. Each event gets a
// fresh scope so resolvers never read stale cache entries from earlier
// events.

func (r *Resolver) MessageAdded(ctx context.Context) (<-chan *MessageResolver, error) {
	userID := r.scope(ctx).UserID
	out := make(chan *MessageResolver)
	if userID == "" {
		return idle(ctx, out), nil
	}
	in := r.chats.OnMessageAdded(ctx, userID)
	go func() {
		defer close(out)
		for msg := range in {
			select {
			case out <- &MessageResolver{s: r.NewScope(userID), m: msg}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *Resolver) ChatAdded(ctx context.Context) (<-chan *ChatResolver, error) {
	userID := r.scope(ctx).UserID
	out := make(chan *ChatResolver)
	if userID == "" {
		return idle(ctx, out), nil
	}
	in := r.chats.OnChatAdded(ctx, userID)
	go func() {
		defer close(out)
		for chat := range in {
			select {
			case out <- &ChatResolver{s: r.NewScope(userID), chat: chat}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *Resolver) ChatRemoved(ctx context.Context) (<-chan graphql.ID, error) {
	userID := r.scope(ctx).UserID
	out := make(chan graphql.ID)
	if userID == "" {
		return idle(ctx, out), nil
	}
	in := r.chats.OnChatRemoved(ctx, userID)
	go func() {
		defer close(out)
		for ev := range in {
			select {
			case out <- graphql.ID(ev.ChatID):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// idle closes ch once ctx is done without ever sending.
func idle[T any](ctx context.Context, ch chan T) <-chan T {
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
