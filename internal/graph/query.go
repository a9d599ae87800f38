package graph

import (
	"context"

	"github.com/graph-gophers/graphql-go"
)

func (r *Resolver) Me(ctx context.Context) (*UserResolver, error) {
	s := r.scope(ctx)
	u, err := r.accounts.CurrentUser(ctx, s.Users)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return userResolver(u), nil
}

// Users lists everybody except the caller.
func (r *Resolver) Users(ctx context.Context) ([]*UserResolver, error) {
	s := r.scope(ctx)
	if !s.Authenticated() {
		return []*UserResolver{}, nil
	}
	found, err := s.Users.FindAllExcept(ctx, s.UserID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	out := make([]*UserResolver, len(found))
	for i := range found {
		out[i] = &UserResolver{u: found[i]}
	}
	return out, nil
}

func (r *Resolver) Chats(ctx context.Context) ([]*ChatResolver, error) {
	s := r.scope(ctx)
	if !s.Authenticated() {
		return []*ChatResolver{}, nil
	}
	found, err := s.Chats.FindChatsByUser(ctx, s.UserID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	out := make([]*ChatResolver, len(found))
	for i := range found {
		out[i] = &ChatResolver{s: s, chat: found[i]}
	}
	return out, nil
}

func (r *Resolver) Chat(ctx context.Context, args struct{ ChatID graphql.ID }) (*ChatResolver, error) {
	s := r.scope(ctx)
	if !s.Authenticated() {
		return nil, nil
	}
	chat, err := s.Chats.FindChatByUser(ctx, string(args.ChatID), s.UserID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	if chat == nil {
		return nil, nil
	}
	return &ChatResolver{s: s, chat: *chat}, nil
}
