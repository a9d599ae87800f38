// Package chats is the chat and message access layer: request-scoped batched
// chat lookups with a per-request cache, cursor pagination over messages,
// chat and message mutations, and participant-filtered event streams.
package chats

import (
	"context"
	"errors"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/models"
	"messaging-service/internal/pubsub"
	"messaging-service/internal/repositories"
	"messaging-service/internal/users"
)

// Broker topics.
const (
	TopicMessageAdded = "message-added"
	TopicChatAdded    = "chat-added"
	TopicChatRemoved  = "chat-removed"
)

var (
	ErrInvalidLimit = errors.New("limit must be greater than zero")
	ErrEmptyContent = errors.New("message content must not be empty")
)

var tracer = otel.Tracer("chats")

// EventMirror receives a copy of every published domain event, e.g. to
// forward it to an external message broker.
type EventMirror interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Service holds the process-wide collaborators of the access layer.
type Service struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	broker   *pubsub.Broker
	mirror   EventMirror
	wait     time.Duration
	maxBatch int
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLoaderWait sets how long the chat loader collects keys before dispatching a batch.
func WithLoaderWait(d time.Duration) Option {
	return func(s *Service) { s.wait = d }
}

// WithMaxBatch caps the number of keys per batch.
func WithMaxBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// WithEventMirror forwards published events to m.
func WithEventMirror(m EventMirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithClock replaces the clock used for message and chat timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the access layer.
func NewService(chats repositories.ChatRepository, messages repositories.MessageRepository, broker *pubsub.Broker, opts ...Option) *Service {
	s := &Service{
		chats:    chats,
		messages: messages,
		broker:   broker,
		wait:     2 * time.Millisecond,
		maxBatch: 100,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider is the access layer bound to one inbound request. It owns the
// request's chat cache and batched loader and must not be reused across
// requests.
type Provider struct {
	svc    *Service
	users  *users.Directory
	cache  *Cache
	loader *dataloader.Loader[chatKey, []models.Chat]
}

// NewProvider creates a request-scoped provider resolving users through dir.
func (s *Service) NewProvider(dir *users.Directory) *Provider {
	p := &Provider{svc: s, users: dir, cache: NewCache()}
	p.loader = dataloader.NewBatchedLoader(p.batchChats,
		dataloader.WithWait[chatKey, []models.Chat](s.wait),
		dataloader.WithBatchCapacity[chatKey, []models.Chat](s.maxBatch),
	)
	return p
}

// Cache exposes the request's chat cache.
func (p *Provider) Cache() *Cache { return p.cache }

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
