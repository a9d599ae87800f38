package ws

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/mocks"
	"messaging-service/internal/observability"
)

func testSession(id, userID string) *session {
	info := ConnInfo{ConnID: id, UserID: userID, Protocol: ProtocolTransportWS, ConnectedAt: time.Now()}
	return newSession(context.Background(), nil, dialects[ProtocolTransportWS], info, zerolog.Nop())
}

func TestHubTracksConnectionsPerUser(t *testing.T) {
	hub := NewHub(nil)
	a := testSession("a", "u1")
	b := testSession("b", "")

	hub.add(a)
	hub.add(b)
	assert.Equal(t, 2, hub.Len())
	assert.Equal(t, 1, hub.ConnectionsForUser("u1"))

	hub.identify(b, "u1")
	assert.Equal(t, 2, hub.ConnectionsForUser("u1"))

	hub.remove(a, "bye")
	hub.remove(a, "bye")
	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, 1, hub.ConnectionsForUser("u1"))

	hub.remove(b, "bye")
	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, 0, hub.ConnectionsForUser("u1"))
}

func TestHubPublishesLifecycleEvents(t *testing.T) {
	pub := new(mocks.PublisherMock)
	hub := NewHub(pub)
	s := testSession("a", "u1")

	pub.On("Publish", mock.Anything, wsRoutingKey, mock.MatchedBy(func(ev observability.EventEnvelope) bool {
		return ev.EventName == "ws_connect"
	})).Return(nil).Once()
	pub.On("Publish", mock.Anything, wsRoutingKey, mock.MatchedBy(func(ev observability.EventEnvelope) bool {
		return ev.EventName == "ws_disconnect"
	})).Return(assert.AnError).Once()

	hub.add(s)
	hub.remove(s, "client closed")
	pub.AssertExpectations(t)
}
