package graph

import (
	"context"

	"github.com/graph-gophers/graphql-go"

	"messaging-service/internal/users"
)

// SignIn authenticates the caller. The session token is stored in a cookie
// when the transport supports it.
func (r *Resolver) SignIn(ctx context.Context, args struct {
	Username string
	Password string
}) (*UserResolver, error) {
	s := r.scope(ctx)
	u, _, err := r.accounts.SignIn(ctx, s.Users, args.Username, args.Password)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return userResolver(u), nil
}

func (r *Resolver) SignUp(ctx context.Context, args struct {
	Name            string
	Username        string
	Password        string
	PasswordConfirm string
}) (*UserResolver, error) {
	s := r.scope(ctx)
	u, err := r.accounts.SignUp(ctx, s.Users, users.SignUpInput{
		Name:            args.Name,
		Username:        args.Username,
		Password:        args.Password,
		PasswordConfirm: args.PasswordConfirm,
	})
	if err != nil {
		return nil, fail(ctx, err)
	}
	return userResolver(u), nil
}

func (r *Resolver) AddMessage(ctx context.Context, args struct {
	ChatID  graphql.ID
	Content string
}) (*MessageResolver, error) {
	s := r.scope(ctx)
	if !s.Authenticated() {
		return nil, nil
	}
	// Only participants may post; anyone else sees the chat as absent.
	chat, err := s.Chats.FindChatByUser(ctx, string(args.ChatID), s.UserID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	if chat == nil {
		return nil, nil
	}
	msg, err := s.Chats.AddMessage(ctx, chat.ID, s.UserID, args.Content)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return &MessageResolver{s: s, m: msg}, nil
}

func (r *Resolver) AddChat(ctx context.Context, args struct{ RecipientID graphql.ID }) (*ChatResolver, error) {
	s := r.scope(ctx)
	if !s.Authenticated() {
		return nil, nil
	}
	chat, err := s.Chats.AddChat(ctx, s.UserID, string(args.RecipientID))
	if err != nil {
		return nil, fail(ctx, err)
	}
	return &ChatResolver{s: s, chat: chat}, nil
}

// RemoveChat returns the removed chat's id, or null when the caller could
// not remove it.
func (r *Resolver) RemoveChat(ctx context.Context, args struct{ ChatID graphql.ID }) (*graphql.ID, error) {
	s := r.scope(ctx)
	if !s.Authenticated() {
		return nil, nil
	}
	removed, err := s.Chats.RemoveChat(ctx, string(args.ChatID), s.UserID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	if removed == nil {
		return nil, nil
	}
	id := graphql.ID(*removed)
	return &id, nil
}

