package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// session is one WebSocket connection. All writes go through the writer
// goroutine; operations run in their own goroutines.
type session struct {
	conn    *websocket.Conn
	dialect dialect
	info    ConnInfo
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	out    chan message

	mu        sync.Mutex
	initiated bool
	userID    string
	ops       map[string]context.CancelFunc
	closeOnce sync.Once
}

func newSession(ctx context.Context, conn *websocket.Conn, d dialect, info ConnInfo, logger zerolog.Logger) *session {
	ctx, cancel := context.WithCancel(ctx)
	return &session{
		conn:    conn,
		dialect: d,
		info:    info,
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
		out:     make(chan message, sendBuffer),
		userID:  info.UserID,
		ops:     make(map[string]context.CancelFunc),
	}
}

// send queues a message for the writer. It gives up once the session ends.
func (s *session) send(id, typ string, payload interface{}) {
	msg := message{ID: id, Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			s.log.Error().Err(err).Str("type", typ).Msg("ws payload marshal failed")
			return
		}
		msg.Payload = raw
	}
	select {
	case s.out <- msg:
	case <-s.ctx.Done():
	}
}

// writeLoop owns all data frames of the connection.
func (s *session) writeLoop(keepAlive time.Duration) {
	var tick <-chan time.Time
	if keepAlive > 0 {
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.out:
			if err := s.write(msg); err != nil {
				s.log.Debug().Err(err).Msg("ws write failed")
				s.cancel()
				return
			}
		case <-tick:
			if !s.isInitiated() {
				continue
			}
			if err := s.write(message{Type: s.dialect.keepAlive}); err != nil {
				s.cancel()
				return
			}
		}
	}
}

func (s *session) write(msg message) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

// close sends a close frame once and ends the session.
func (s *session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		s.cancel()
		_ = s.conn.Close()
	})
}

func (s *session) isInitiated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initiated
}

func (s *session) identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// startOp registers an operation id. It reports false if the id is taken.
func (s *session) startOp(id string) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ops[id]; exists {
		return nil, false
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.ops[id] = cancel
	return ctx, true
}

// stopOp cancels and forgets an operation; it reports whether it was live.
func (s *session) stopOp(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.ops[id]
	if ok {
		cancel()
		delete(s.ops, id)
	}
	return ok
}
