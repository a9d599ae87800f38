package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/graph-gophers/graphql-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/auth"
	"messaging-service/internal/graph"
	"messaging-service/internal/observability"
)

const initTimeout = 10 * time.Second

// Handler serves GraphQL operations, subscriptions in particular, over
// WebSocket.
type Handler struct {
	hub       *Hub
	schema    *graphql.Schema
	resolver  *graph.Resolver
	tokens    *auth.TokenManager
	keepAlive time.Duration
	upgrader  websocket.Upgrader
}

// NewHandler builds a Handler. checkOrigin may be nil to accept any origin.
func NewHandler(hub *Hub, schema *graphql.Schema, resolver *graph.Resolver, tokens *auth.TokenManager, keepAlive time.Duration, checkOrigin func(*http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		hub:       hub,
		schema:    schema,
		resolver:  resolver,
		tokens:    tokens,
		keepAlive: keepAlive,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{ProtocolTransportWS, ProtocolLegacy},
			CheckOrigin:  checkOrigin,
		},
	}
}

// Handle upgrades the connection and serves it until either side closes.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	traceID := span.SpanContext().TraceID().String()
	span.End()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	proto := conn.Subprotocol()
	if proto == "" {
		proto = ProtocolLegacy
	}
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      c.GetString("userID"),
		Protocol:    proto,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromContext(ctx),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	logger := zerolog.Ctx(ctx).With().Str("conn_id", info.ConnID).Str("protocol", proto).Logger()
	// The session outlives the upgrade request's context.
	base := logger.WithContext(observability.ContextWithRequestID(context.Background(), info.RequestID))
	s := newSession(base, conn, dialects[proto], info, logger)

	h.hub.add(s)
	go s.writeLoop(h.keepAlive)

	reason := h.readLoop(s)
	s.cancel()
	_ = conn.Close()
	h.hub.remove(s, reason)
}

func (h *Handler) readLoop(s *session) string {
	initTimer := time.AfterFunc(initTimeout, func() {
		if !s.isInitiated() {
			s.close(closeInitTimeout, "Connection initialisation timeout")
		}
	})
	defer initTimer.Stop()

	for {
		var msg message
		if err := s.conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return closeErr.Text
			}
			if s.ctx.Err() == nil {
				var syntaxErr *json.SyntaxError
				if errors.As(err, &syntaxErr) && !s.dialect.legacy() {
					s.close(closeBadRequest, "Invalid message received")
				}
				observability.IncWSEvent(s.info.Protocol, "ws_error")
			}
			return err.Error()
		}
		if done := h.dispatch(s, msg); done {
			return msg.Type
		}
	}
}

// dispatch handles one client message and reports whether the connection
// should end.
func (h *Handler) dispatch(s *session, msg message) bool {
	switch msg.Type {
	case msgConnectionInit:
		return h.handleInit(s, msg)
	case msgConnectionTerminate:
		s.close(websocket.CloseNormalClosure, "")
		return true
	case msgPing:
		if !s.dialect.legacy() {
			s.send("", msgPong, nil)
		}
	case msgPong:
	case s.dialect.start:
		return h.handleStart(s, msg)
	case s.dialect.stop:
		s.stopOp(msg.ID)
	default:
		if !s.dialect.legacy() {
			s.close(closeBadRequest, "Invalid message received")
			return true
		}
		s.send(msg.ID, msgError, map[string]string{"message": "unknown message type " + msg.Type})
	}
	return false
}

func (h *Handler) handleInit(s *session, msg message) bool {
	s.mu.Lock()
	already := s.initiated
	s.mu.Unlock()
	if already {
		if !s.dialect.legacy() {
			s.close(closeTooManyInitialise, "Too many initialisation requests")
			return true
		}
		return false
	}

	var payload initPayload
	if len(msg.Payload) > 0 {
		_ = json.Unmarshal(msg.Payload, &payload)
	}
	userID := s.identity()
	if payload.AuthToken != "" {
		id, err := h.tokens.Validate(payload.AuthToken)
		if err != nil {
			if s.dialect.legacy() {
				s.send("", msgConnectionError, map[string]string{"message": "invalid auth token"})
				time.AfterFunc(100*time.Millisecond, func() { s.close(closeForbidden, "Forbidden") })
				return false
			}
			s.close(closeForbidden, "Forbidden")
			return true
		}
		userID = id
	}

	s.mu.Lock()
	s.initiated = true
	s.userID = userID
	s.mu.Unlock()
	h.hub.identify(s, userID)

	s.send("", msgConnectionAck, nil)
	if s.dialect.legacy() {
		s.send("", msgKeepAlive, nil)
	}
	return false
}

func (h *Handler) handleStart(s *session, msg message) bool {
	if !s.isInitiated() {
		if !s.dialect.legacy() {
			s.close(closeUnauthorized, "Unauthorized")
			return true
		}
		s.send(msg.ID, msgError, map[string]string{"message": "connection not initialised"})
		return false
	}

	var payload operationPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || msg.ID == "" || payload.Query == "" {
		if !s.dialect.legacy() {
			s.close(closeBadRequest, "Invalid message received")
			return true
		}
		s.send(msg.ID, msgError, map[string]string{"message": "invalid operation"})
		return false
	}

	opCtx, ok := s.startOp(msg.ID)
	if !ok {
		if !s.dialect.legacy() {
			s.close(closeSubscriberExists, "Subscriber for "+msg.ID+" already exists")
			return true
		}
		s.send(msg.ID, msgError, map[string]string{"message": "operation id already in use"})
		return false
	}

	go h.run(s, opCtx, msg.ID, payload)
	return false
}

// run executes one operation and streams its results.
func (h *Handler) run(s *session, ctx context.Context, id string, op operationPayload) {
	userID := s.identity()
	if userID != "" {
		ctx = auth.WithUserID(ctx, userID)
	}
	ctx = graph.WithScope(ctx, h.resolver.NewScope(userID))

	results, err := h.schema.Subscribe(ctx, op.Query, op.OperationName, op.Variables)
	if err != nil {
		s.log.Error().Err(err).Str("op_id", id).Msg("graphql subscribe failed")
		s.send(id, msgError, []map[string]string{{"message": "internal error"}})
		s.stopOp(id)
		return
	}

	for raw := range results {
		resp, ok := raw.(*graphql.Response)
		if !ok {
			continue
		}
		failed := len(resp.Errors) > 0
		observability.IncGraphQLOperation("ws", failed)
		if failed && len(resp.Data) == 0 && !s.dialect.legacy() {
			s.send(id, msgError, resp.Errors)
			s.stopOp(id)
			return
		}
		s.send(id, s.dialect.result, resp)
	}

	// A client-initiated stop needs no completion message.
	if s.stopOp(id) {
		s.send(id, msgComplete, nil)
	}
}
