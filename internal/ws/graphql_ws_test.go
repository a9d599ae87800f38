package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/auth"
	"messaging-service/internal/chats"
	"messaging-service/internal/db"
	"messaging-service/internal/graph"
	"messaging-service/internal/middleware"
	"messaging-service/internal/pubsub"
	"messaging-service/internal/repositories/gormstore"
	"messaging-service/internal/users"
)

type wsFixture struct {
	server *httptest.Server
	hub    *Hub
	broker *pubsub.Broker
	svc    *chats.Service
	users  *gormstore.UserRepo
	tokens *auth.TokenManager
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gdb, err := gormstore.Open(filepath.Join(t.TempDir(), "ws.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	store := db.Store{
		Users:    gormstore.NewUserRepo(gdb),
		Chats:    gormstore.NewChatRepo(gdb),
		Messages: gormstore.NewMessageRepo(gdb),
	}
	require.NoError(t, db.Seed(context.Background(), store, 0))

	f := &wsFixture{
		broker: pubsub.NewBroker(),
		tokens: auth.NewTokenManager("test-secret", time.Hour),
		users:  store.Users.(*gormstore.UserRepo),
	}
	f.svc = chats.NewService(store.Chats, store.Messages, f.broker)
	resolver := graph.NewResolver(f.svc, users.NewAccounts(f.tokens, nil), store.Users)
	schema, err := graph.NewSchema(resolver)
	require.NoError(t, err)

	f.hub = NewHub(nil)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Identity(f.tokens))
	r.GET("/graphql/ws", NewHandler(f.hub, schema, resolver, f.tokens, time.Minute, nil).Handle)
	f.server = httptest.NewServer(r)
	t.Cleanup(func() {
		f.hub.Shutdown()
		f.server.Close()
		f.broker.Close()
	})
	return f
}

func (f *wsFixture) dial(t *testing.T, proto string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{Subprotocols: []string{proto}}
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/graphql/ws"
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, proto, resp.Header.Get("Sec-WebSocket-Protocol"))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, id, typ string, payload interface{}) {
	t.Helper()
	msg := map[string]interface{}{"type": typ}
	if id != "" {
		msg["id"] = id
	}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func read(t *testing.T, conn *websocket.Conn, skip ...string) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg message
		require.NoError(t, conn.ReadJSON(&msg))
		skipped := false
		for _, s := range skip {
			if msg.Type == s {
				skipped = true
			}
		}
		if !skipped {
			return msg
		}
	}
}

func TestTransportWSSubscription(t *testing.T) {
	f := newWSFixture(t)
	token, err := f.tokens.Issue(db.UserEthan)
	require.NoError(t, err)
	conn := f.dial(t, ProtocolTransportWS)

	send(t, conn, "", msgConnectionInit, map[string]string{"authToken": token})
	assert.Equal(t, msgConnectionAck, read(t, conn).Type)
	assert.Equal(t, 1, f.hub.ConnectionsForUser(db.UserEthan))

	send(t, conn, "1", msgSubscribe, map[string]interface{}{"query": "subscription { messageAdded { content sender { username } } }"})
	require.Eventually(t, func() bool {
		return f.broker.Subscribers(chats.TopicMessageAdded) == 1
	}, 2*time.Second, 5*time.Millisecond)

	p := f.svc.NewProvider(users.NewDirectory(f.users, time.Millisecond, 10))
	_, err = p.AddMessage(context.Background(), db.Chat1, db.UserRay, "knock knock")
	require.NoError(t, err)

	msg := read(t, conn, msgPing)
	require.Equal(t, msgNext, msg.Type)
	assert.Equal(t, "1", msg.ID)
	var payload struct {
		Data struct {
			MessageAdded struct {
				Content string
				Sender  struct{ Username string }
			}
		}
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "knock knock", payload.Data.MessageAdded.Content)
	assert.Equal(t, "ray", payload.Data.MessageAdded.Sender.Username)

	send(t, conn, "1", msgComplete, nil)
	require.Eventually(t, func() bool {
		return f.broker.Subscribers(chats.TopicMessageAdded) == 0
	}, 2*time.Second, 5*time.Millisecond)

	send(t, conn, "", msgPing, nil)
	assert.Equal(t, msgPong, read(t, conn).Type)
}

func TestTransportWSQueryCompletes(t *testing.T) {
	f := newWSFixture(t)
	token, err := f.tokens.Issue(db.UserRay)
	require.NoError(t, err)
	conn := f.dial(t, ProtocolTransportWS)

	send(t, conn, "", msgConnectionInit, map[string]string{"authToken": token})
	require.Equal(t, msgConnectionAck, read(t, conn).Type)

	send(t, conn, "q", msgSubscribe, map[string]interface{}{"query": "{ me { username } }"})
	msg := read(t, conn, msgPing)
	require.Equal(t, msgNext, msg.Type)
	assert.JSONEq(t, `{"data":{"me":{"username":"ray"}}}`, string(msg.Payload))
	assert.Equal(t, msgComplete, read(t, conn, msgPing).Type)
}

func TestTransportWSRejectsSubscribeBeforeInit(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, ProtocolTransportWS)

	send(t, conn, "1", msgSubscribe, map[string]interface{}{"query": "{ me { id } }"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, closeUnauthorized, closeErr.Code)
}

func TestTransportWSRejectsBadToken(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, ProtocolTransportWS)

	send(t, conn, "", msgConnectionInit, map[string]string{"authToken": "nope"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, closeForbidden, closeErr.Code)
}

func TestLegacyProtocol(t *testing.T) {
	f := newWSFixture(t)
	token, err := f.tokens.Issue(db.UserRay)
	require.NoError(t, err)
	conn := f.dial(t, ProtocolLegacy)

	send(t, conn, "", msgConnectionInit, map[string]string{"authToken": token})
	assert.Equal(t, msgConnectionAck, read(t, conn).Type)
	assert.Equal(t, msgKeepAlive, read(t, conn).Type)

	send(t, conn, "1", msgStart, map[string]interface{}{"query": "{ chats { id } }"})
	msg := read(t, conn, msgKeepAlive)
	require.Equal(t, msgData, msg.Type)
	var payload struct {
		Data struct{ Chats []struct{ ID string } }
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Len(t, payload.Data.Chats, 4)
	assert.Equal(t, msgComplete, read(t, conn, msgKeepAlive).Type)

	send(t, conn, "2", "bogus", nil)
	assert.Equal(t, msgError, read(t, conn, msgKeepAlive).Type)

	send(t, conn, "", msgConnectionTerminate, nil)
	require.Eventually(t, func() bool { return f.hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}
