package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/graph-gophers/graphql-go"

	"messaging-service/internal/chats"
	"messaging-service/internal/models"
	"messaging-service/internal/users"
)

// DateTime is an RFC 3339 timestamp with millisecond precision.
type DateTime struct {
	time.Time
}

const dateTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func (DateTime) ImplementsGraphQLType(name string) bool { return name == "DateTime" }

func (t *DateTime) UnmarshalGraphQL(input interface{}) error {
	switch v := input.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	case time.Time:
		t.Time = v
		return nil
	default:
		return fmt.Errorf("wrong type for DateTime: %T", input)
	}
}

func (t DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(dateTimeLayout))
}

type UserResolver struct {
	u models.User
}

func (r *UserResolver) ID() graphql.ID   { return graphql.ID(r.u.ID) }
func (r *UserResolver) Name() string     { return r.u.Name }
func (r *UserResolver) Username() string { return r.u.Username }
func (r *UserResolver) Picture() *string {
	if r.u.Picture == "" {
		return nil
	}
	return &r.u.Picture
}

func userResolver(u *models.User) *UserResolver {
	if u == nil {
		return nil
	}
	return &UserResolver{u: *u}
}

type ChatResolver struct {
	s    *Scope
	chat models.Chat
}

func (r *ChatResolver) ID() graphql.ID { return graphql.ID(r.chat.ID) }

func (r *ChatResolver) recipient(ctx context.Context) (*models.User, error) {
	if !r.s.Authenticated() {
		return nil, nil
	}
	return r.s.Chats.FirstRecipient(ctx, r.chat.ID, r.s.UserID)
}

// Name is the first other participant's name as seen by the caller.
func (r *ChatResolver) Name(ctx context.Context) (*string, error) {
	u, err := r.recipient(ctx)
	if err != nil {
		return nil, fail(ctx, err)
	}
	if u == nil {
		return nil, nil
	}
	return &u.Name, nil
}

func (r *ChatResolver) Picture(ctx context.Context) (*string, error) {
	if !r.s.Authenticated() {
		return nil, nil
	}
	u, err := r.recipient(ctx)
	if err != nil {
		return nil, fail(ctx, err)
	}
	picture := users.DefaultPicture
	if u != nil && u.Picture != "" {
		picture = u.Picture
	}
	return &picture, nil
}

func (r *ChatResolver) LastMessage(ctx context.Context) (*MessageResolver, error) {
	msg, err := r.s.Chats.LastMessage(ctx, r.chat.ID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	if msg == nil {
		return nil, nil
	}
	return &MessageResolver{s: r.s, m: *msg}, nil
}

func (r *ChatResolver) Messages(ctx context.Context, args struct {
	Limit int32
	After *float64
}) (*MessagesResultResolver, error) {
	var cursor *int64
	if args.After != nil {
		ms := int64(*args.After)
		cursor = &ms
	}
	page, err := r.s.Chats.FindMessagesByChat(ctx, r.chat.ID, int(args.Limit), cursor)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return &MessagesResultResolver{s: r.s, page: page}, nil
}

func (r *ChatResolver) Participants(ctx context.Context) ([]*UserResolver, error) {
	found, err := r.s.Chats.Participants(ctx, r.chat.ID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	out := make([]*UserResolver, len(found))
	for i := range found {
		out[i] = &UserResolver{u: found[i]}
	}
	return out, nil
}

type MessageResolver struct {
	s *Scope
	m models.Message
}

func (r *MessageResolver) ID() graphql.ID      { return graphql.ID(r.m.ID) }
func (r *MessageResolver) Content() string     { return r.m.Content }
func (r *MessageResolver) CreatedAt() DateTime { return DateTime{r.m.CreatedAt} }
func (r *MessageResolver) IsMine() bool        { return r.s.Authenticated() && r.m.SenderID == r.s.UserID }

func (r *MessageResolver) Chat(ctx context.Context) (*ChatResolver, error) {
	chat, err := r.s.Chats.FindChatByID(ctx, r.m.ChatID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	if chat == nil {
		return nil, nil
	}
	return &ChatResolver{s: r.s, chat: *chat}, nil
}

func (r *MessageResolver) Sender(ctx context.Context) (*UserResolver, error) {
	u, err := r.s.Users.FindByID(ctx, r.m.SenderID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return userResolver(u), nil
}

// Recipient is the first participant other than the sender.
func (r *MessageResolver) Recipient(ctx context.Context) (*UserResolver, error) {
	u, err := r.s.Chats.FirstRecipient(ctx, r.m.ChatID, r.m.SenderID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return userResolver(u), nil
}

type MessagesResultResolver struct {
	s    *Scope
	page chats.MessagesPage
}

func (r *MessagesResultResolver) Cursor() *float64 {
	if r.page.Cursor == nil {
		return nil
	}
	v := float64(*r.page.Cursor)
	return &v
}

func (r *MessagesResultResolver) HasMore() bool { return r.page.HasMore }

func (r *MessagesResultResolver) Messages() []*MessageResolver {
	out := make([]*MessageResolver, len(r.page.Messages))
	for i, m := range r.page.Messages {
		out[i] = &MessageResolver{s: r.s, m: m}
	}
	return out
}
