package graph

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"messaging-service/internal/auth"
	"messaging-service/internal/chats"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/users"
)

// Scope is the per-request state shared by resolvers: the caller's identity,
// a user directory and a chat provider with their own caches.
type Scope struct {
	UserID string
	Users  *users.Directory
	Chats  *chats.Provider
}

// Authenticated reports whether the scope carries a caller identity.
func (s *Scope) Authenticated() bool { return s.UserID != "" }

type scopeKey struct{}

// WithScope stores s in ctx for the root resolvers.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// Resolver is the schema root. It is shared by every request.
type Resolver struct {
	chats    *chats.Service
	accounts *users.Accounts
	userRepo repositories.UserRepository
	wait     time.Duration
	maxBatch int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLoaderWait sets the batching window of per-request user loaders.
func WithLoaderWait(d time.Duration) Option {
	return func(r *Resolver) { r.wait = d }
}

// WithMaxBatch caps keys per user-loader batch.
func WithMaxBatch(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBatch = n
		}
	}
}

func NewResolver(chatsSvc *chats.Service, accounts *users.Accounts, userRepo repositories.UserRepository, opts ...Option) *Resolver {
	r := &Resolver{
		chats:    chatsSvc,
		accounts: accounts,
		userRepo: userRepo,
		wait:     2 * time.Millisecond,
		maxBatch: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewScope builds fresh request state for userID, which may be empty.
func (r *Resolver) NewScope(userID string) *Scope {
	dir := users.NewDirectory(r.userRepo, r.wait, r.maxBatch)
	return &Scope{UserID: userID, Users: dir, Chats: r.chats.NewProvider(dir)}
}

// scope returns the request scope from ctx, creating one from the identity
// in ctx when the transport did not install one.
func (r *Resolver) scope(ctx context.Context) *Scope {
	if s, ok := ctx.Value(scopeKey{}).(*Scope); ok && s != nil {
		return s
	}
	userID, _ := auth.UserIDFrom(ctx)
	return r.NewScope(userID)
}

// publicError is returned to clients verbatim.
type publicError struct {
	message string
	code    string
}

func (e publicError) Error() string { return e.message }

func (e publicError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

var errInternal = publicError{message: "internal error", code: "INTERNAL"}

// fail maps err to a client-facing error. Unexpected errors are logged and
// masked.
func fail(ctx context.Context, err error) error {
	var verr users.ValidationError
	switch {
	case errors.As(err, &verr):
		return publicError{message: verr.Error(), code: "BAD_USER_INPUT"}
	case errors.Is(err, users.ErrInvalidCredentials):
		return publicError{message: err.Error(), code: "UNAUTHENTICATED"}
	case errors.Is(err, users.ErrUsernameTaken),
		errors.Is(err, users.ErrPasswordMismatch),
		errors.Is(err, chats.ErrInvalidLimit),
		errors.Is(err, chats.ErrEmptyContent):
		return publicError{message: err.Error(), code: "BAD_USER_INPUT"}
	}
	zerolog.Ctx(ctx).Error().Err(err).
		Str("request_id", observability.RequestIDFromContext(ctx)).
		Msg("graphql resolver failed")
	return errInternal
}
