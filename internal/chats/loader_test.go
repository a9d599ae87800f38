package chats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/pubsub"
	"messaging-service/internal/users"
)

func newMockProvider(chatsRepo *mocks.ChatRepositoryMock, msgRepo *mocks.MessageRepositoryMock, opts ...Option) *Provider {
	opts = append([]Option{WithLoaderWait(20 * time.Millisecond)}, opts...)
	svc := NewService(chatsRepo, msgRepo, pubsub.NewBroker(), opts...)
	return svc.NewProvider(users.NewDirectory(new(mocks.UserRepositoryMock), time.Millisecond, 10))
}

func sameSet(want ...string) any {
	return mock.MatchedBy(func(got []string) bool {
		if len(got) != len(want) {
			return false
		}
		seen := make(map[string]bool, len(got))
		for _, id := range got {
			seen[id] = true
		}
		for _, id := range want {
			if !seen[id] {
				return false
			}
		}
		return true
	})
}

func TestLookupsInOneWindowShareOneQuery(t *testing.T) {
	chatsRepo := new(mocks.ChatRepositoryMock)
	p := newMockProvider(chatsRepo, new(mocks.MessageRepositoryMock))
	ctx := context.Background()

	c1 := models.Chat{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}
	c2 := models.Chat{ID: "c2", ParticipantIDs: []string{"u2", "u3"}}
	chatsRepo.On("FindChatsByParticipants", mock.Anything, sameSet("u1", "u3")).
		Return([]models.Chat{c1, c2}, nil).Once()

	first := p.loader.Load(ctx, chatKey{shape: shapeByUser, userID: "u1"})
	second := p.loader.Load(ctx, chatKey{shape: shapeByUser, userID: "u3"})
	dup := p.loader.Load(ctx, chatKey{shape: shapeByUser, userID: "u1"})

	got, err := first()
	require.NoError(t, err)
	assert.Equal(t, []models.Chat{c1}, got)
	got, err = second()
	require.NoError(t, err)
	assert.Equal(t, []models.Chat{c2}, got)
	got, err = dup()
	require.NoError(t, err)
	assert.Equal(t, []models.Chat{c1}, got)

	chatsRepo.AssertExpectations(t)
	assert.Equal(t, 2, p.Cache().Len())
}

func TestByIDLookupServedFromCache(t *testing.T) {
	chatsRepo := new(mocks.ChatRepositoryMock)
	p := newMockProvider(chatsRepo, new(mocks.MessageRepositoryMock))
	ctx := context.Background()

	c1 := models.Chat{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}
	chatsRepo.On("FindChatsByParticipants", mock.Anything, []string{"u1"}).Return([]models.Chat{c1}, nil).Once()

	_, err := p.FindChatsByUser(ctx, "u1")
	require.NoError(t, err)

	chat, err := p.FindChatByID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, "c1", chat.ID)

	chat, err = p.FindChatByUser(ctx, "c1", "u2")
	require.NoError(t, err)
	require.NotNil(t, chat)

	chatsRepo.AssertNotCalled(t, "FindChatsByIDs", mock.Anything, mock.Anything)
	chatsRepo.AssertExpectations(t)
}

func TestByIDShapesShareOneQuery(t *testing.T) {
	chatsRepo := new(mocks.ChatRepositoryMock)
	p := newMockProvider(chatsRepo, new(mocks.MessageRepositoryMock))
	ctx := context.Background()

	c1 := models.Chat{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}
	c2 := models.Chat{ID: "c2", ParticipantIDs: []string{"u2", "u3"}}
	chatsRepo.On("FindChatsByIDs", mock.Anything, sameSet("c1", "c2", "c9")).
		Return([]models.Chat{c1, c2}, nil).Once()

	restricted := p.loader.Load(ctx, chatKey{shape: shapeByIDForUser, chatID: "c2", userID: "u1"})
	plain := p.loader.Load(ctx, chatKey{shape: shapeByID, chatID: "c1"})
	missing := p.loader.Load(ctx, chatKey{shape: shapeByID, chatID: "c9"})

	got, err := restricted()
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = plain()
	require.NoError(t, err)
	assert.Equal(t, []models.Chat{c1}, got)
	got, err = missing()
	require.NoError(t, err)
	assert.Empty(t, got)

	_, cached := p.Cache().Get("c2")
	assert.False(t, cached)
	chatsRepo.AssertExpectations(t)
}

func TestRepeatedByIDLookupsInOneWindowQueryOnce(t *testing.T) {
	chatsRepo := new(mocks.ChatRepositoryMock)
	p := newMockProvider(chatsRepo, new(mocks.MessageRepositoryMock))
	ctx := context.Background()

	c1 := models.Chat{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}
	chatsRepo.On("FindChatsByIDs", mock.Anything, []string{"c1"}).Return([]models.Chat{c1}, nil).Once()

	first := p.loader.Load(ctx, chatKey{shape: shapeByID, chatID: "c1"})
	again := p.loader.Load(ctx, chatKey{shape: shapeByID, chatID: "c1"})
	forUser := p.loader.Load(ctx, chatKey{shape: shapeByIDForUser, chatID: "c1", userID: "u2"})

	for _, thunk := range []func() ([]models.Chat, error){first, again, forUser} {
		got, err := thunk()
		require.NoError(t, err)
		assert.Equal(t, []models.Chat{c1}, got)
	}

	chatsRepo.AssertNumberOfCalls(t, "FindChatsByIDs", 1)
	chatsRepo.AssertExpectations(t)
}

func TestFailedQueryFailsOnlyItsGroup(t *testing.T) {
	chatsRepo := new(mocks.ChatRepositoryMock)
	p := newMockProvider(chatsRepo, new(mocks.MessageRepositoryMock))
	ctx := context.Background()

	c1 := models.Chat{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}
	chatsRepo.On("FindChatsByParticipants", mock.Anything, []string{"u1"}).Return([]models.Chat{c1}, nil).Once()
	chatsRepo.On("FindChatsByIDs", mock.Anything, []string{"c7"}).Return(nil, errors.New("connection reset")).Once()

	byUser := p.loader.Load(ctx, chatKey{shape: shapeByUser, userID: "u1"})
	byID := p.loader.Load(ctx, chatKey{shape: shapeByID, chatID: "c7"})

	got, err := byUser()
	require.NoError(t, err)
	assert.Equal(t, []models.Chat{c1}, got)
	_, err = byID()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	chatsRepo.AssertExpectations(t)
}

type failingMirror struct{ calls int }

func (m *failingMirror) Publish(context.Context, string, any) error {
	m.calls++
	return errors.New("broker unavailable")
}

func TestMirrorFailureDoesNotFailMutation(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	mirror := &failingMirror{}
	p := newMockProvider(new(mocks.ChatRepositoryMock), msgRepo, WithEventMirror(mirror))

	msgRepo.On("InsertMessage", mock.Anything, mock.AnythingOfType("models.Message")).Return(nil).Once()

	msg, err := p.AddMessage(context.Background(), "c1", "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, 1, mirror.calls)
	msgRepo.AssertExpectations(t)
}

func TestRemoveChatRequiresParticipation(t *testing.T) {
	chatsRepo := new(mocks.ChatRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	p := newMockProvider(chatsRepo, msgRepo)

	chatsRepo.On("FindChatsByIDs", mock.Anything, []string{"c1"}).
		Return([]models.Chat{{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}}, nil).Once()

	id, err := p.RemoveChat(context.Background(), "c1", "u3")
	require.NoError(t, err)
	assert.Nil(t, id)
	msgRepo.AssertNotCalled(t, "DeleteMessagesByChat", mock.Anything, mock.Anything)
	chatsRepo.AssertNotCalled(t, "DeleteChat", mock.Anything, mock.Anything)
}
