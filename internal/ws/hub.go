package ws

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"messaging-service/internal/observability"
)

const wsRoutingKey = "ws_events.graphql"

// Publisher receives connection lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Hub tracks live subscription connections.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[string]*session
	byUser    map[string]int
	publisher Publisher
}

// NewHub creates an empty hub. publisher may be nil.
func NewHub(publisher Publisher) *Hub {
	return &Hub{
		sessions:  make(map[string]*session),
		byUser:    make(map[string]int),
		publisher: publisher,
	}
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	h.sessions[s.info.ConnID] = s
	if s.info.UserID != "" {
		h.byUser[s.info.UserID]++
	}
	h.mu.Unlock()

	observability.IncWSActive(s.info.Protocol)
	h.publishLifecycle(s.ctx, s.info, "ws_connect", "")
}

// identify moves a connection to userID after connection_init.
func (h *Hub) identify(s *session, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.info.ConnID]; !ok {
		return
	}
	if s.info.UserID != "" {
		h.release(s.info.UserID)
	}
	s.info.UserID = userID
	if userID != "" {
		h.byUser[userID]++
	}
}

func (h *Hub) remove(s *session, reason string) {
	h.mu.Lock()
	if _, ok := h.sessions[s.info.ConnID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.info.ConnID)
	if s.info.UserID != "" {
		h.release(s.info.UserID)
	}
	h.mu.Unlock()

	observability.DecWSActive(s.info.Protocol)
	h.publishLifecycle(context.Background(), s.info, "ws_disconnect", reason)
}

func (h *Hub) release(userID string) {
	h.byUser[userID]--
	if h.byUser[userID] <= 0 {
		delete(h.byUser, userID)
	}
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// ConnectionsForUser reports how many live connections belong to userID.
func (h *Hub) ConnectionsForUser(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byUser[userID]
}

// Shutdown closes every connection with a going-away status.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.close(closeGoingAway, "server shutting down")
	}
}

func (h *Hub) publishLifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(info.Protocol, event)
	if h.publisher == nil {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"protocol":    info.Protocol,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	err := h.publisher.Publish(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType:  "ws_events",
		EventName:  event,
		OccurredAt: time.Now().UTC(),
		RequestID:  info.RequestID,
		Payload:    payload,
	})
	if err != nil {
		log.Warn().Err(err).Str("conn_id", info.ConnID).Str("event", event).Msg("ws lifecycle publish failed")
	}
}
