package db

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// Fixture ids.
const (
	UserRay   = "11111111-1111-1111-1111-111111111111"
	UserEthan = "22222222-2222-2222-2222-222222222222"
	UserBryan = "33333333-3333-3333-3333-333333333333"
	UserAvery = "44444444-4444-4444-4444-444444444444"
	UserKatie = "55555555-5555-5555-5555-555555555555"

	Chat1 = "11111111-1111-1111-1111-111111111111"
	Chat2 = "22222222-2222-2222-2222-222222222222"
	Chat3 = "33333333-3333-3333-3333-333333333333"
	Chat4 = "44444444-4444-4444-4444-444444444444"
)

// BaseTime anchors fixture message timestamps.
var BaseTime = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

// Store groups the repositories the seeder writes to.
type Store struct {
	Users    repositories.UserRepository
	Chats    repositories.ChatRepository
	Messages repositories.MessageRepository
}

// FixtureUsers returns the demo accounts. Passwords are 111, 222 ... 555.
func FixtureUsers() []models.User {
	return []models.User{
		{ID: UserRay, Name: "Ray Edwards", Username: "ray", PasswordHash: "$2a$08$NO9tkFLCoSqX1c5wk3s7z.JfxaVMKA.m7zUDdDwEquo4rvzimQeJm", Picture: "https://randomuser.me/api/portraits/thumb/lego/1.jpg"},
		{ID: UserEthan, Name: "Ethan Gonzalez", Username: "ethan", PasswordHash: "$2a$08$xE4FuCi/ifxjL2S8CzKAmuKLwv18ktksSN.F3XYEnpmcKtpbpeZgO", Picture: "https://randomuser.me/api/portraits/thumb/men/1.jpg"},
		{ID: UserBryan, Name: "Bryan Wallace", Username: "bryan", PasswordHash: "$2a$08$UHgH7J8G6z1mGQn2qx2kdeWv0jvgHItyAsL9hpEUI3KJmhVW5Q1d.", Picture: "https://randomuser.me/api/portraits/thumb/men/2.jpg"},
		{ID: UserAvery, Name: "Avery Stewart", Username: "avery", PasswordHash: "$2a$08$wR1k5Q3T9FC7fUgB7Gdb9Os/GV7dGBBf4PLlWT7HERMFhmFDt47xi", Picture: "https://randomuser.me/api/portraits/thumb/women/1.jpg"},
		{ID: UserKatie, Name: "Katie Peterson", Username: "katie", PasswordHash: "$2a$08$6.mbXqsDX82ZZ7q5d8Osb..JrGSsNp4R3IKj7mxgF6YGT0OmMw242", Picture: "https://randomuser.me/api/portraits/thumb/women/2.jpg"},
	}
}

// FixtureChats pairs Ray with every other fixture user.
func FixtureChats() []models.Chat {
	return []models.Chat{
		{ID: Chat1, ParticipantIDs: []string{UserRay, UserEthan}, CreatedAt: BaseTime},
		{ID: Chat2, ParticipantIDs: []string{UserRay, UserBryan}, CreatedAt: BaseTime},
		{ID: Chat3, ParticipantIDs: []string{UserRay, UserAvery}, CreatedAt: BaseTime},
		{ID: Chat4, ParticipantIDs: []string{UserRay, UserKatie}, CreatedAt: BaseTime},
	}
}

// FixtureMessages returns one message per fixture chat followed by faked
// additional messages in the first chat, one minute apart.
func FixtureMessages(faked int) []models.Message {
	msgs := []models.Message{
		{ID: Chat1, ChatID: Chat1, SenderID: UserRay, Content: "You on your way?", CreatedAt: BaseTime.Add(-1000 * time.Minute)},
		{ID: Chat2, ChatID: Chat2, SenderID: UserRay, Content: "Hey, it's me", CreatedAt: BaseTime.Add(-2000 * time.Minute)},
		{ID: Chat3, ChatID: Chat3, SenderID: UserRay, Content: "I should buy a boat", CreatedAt: BaseTime.Add(-24000 * time.Minute)},
		{ID: Chat4, ChatID: Chat4, SenderID: UserRay, Content: "This is wicked good ice cream.", CreatedAt: BaseTime.Add(-14 * 24000 * time.Minute)},
	}

	first := msgs[0]
	faker := gofakeit.New(0)
	for i := 0; i < faked; i++ {
		msg := first
		msg.ID = uuid.NewString()
		msg.Content = faker.Sentence(4)
		msg.CreatedAt = first.CreatedAt.Add(time.Duration(i+1) * time.Minute)
		msgs = append(msgs, msg)
	}
	return msgs
}

// Seed inserts the fixtures. The store is expected to be empty.
func Seed(ctx context.Context, store Store, faked int) error {
	for _, u := range FixtureUsers() {
		if err := store.Users.InsertUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}
	for _, c := range FixtureChats() {
		if err := store.Chats.InsertChat(ctx, c); err != nil {
			return fmt.Errorf("seed chat %s: %w", c.ID, err)
		}
	}
	msgs := FixtureMessages(faked)
	if err := store.Messages.InsertMessages(ctx, msgs); err != nil {
		return fmt.Errorf("seed messages: %w", err)
	}
	log.Info().Int("users", 5).Int("chats", 4).Int("messages", len(msgs)).Msg("database seeded")
	return nil
}
