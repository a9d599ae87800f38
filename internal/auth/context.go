package auth

import (
	"context"
	"net/http"
	"time"
)

type userIDKey struct{}
type sessionWriterKey struct{}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom returns the authenticated user id, if any.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// SessionWriter persists a freshly issued token on the client.
type SessionWriter func(token string, ttl time.Duration)

// WithSessionWriter lets code deep in a request set the session cookie.
func WithSessionWriter(ctx context.Context, w SessionWriter) context.Context {
	return context.WithValue(ctx, sessionWriterKey{}, w)
}

// WriteSession hands token to the session writer in ctx; it reports false
// when the caller has no way to store a cookie (e.g. a websocket operation).
func WriteSession(ctx context.Context, token string, ttl time.Duration) bool {
	w, ok := ctx.Value(sessionWriterKey{}).(SessionWriter)
	if !ok || w == nil {
		return false
	}
	w(token, ttl)
	return true
}

// CookieSessionWriter writes the token as an HttpOnly cookie.
func CookieSessionWriter(rw http.ResponseWriter, secure bool) SessionWriter {
	return func(token string, ttl time.Duration) {
		http.SetCookie(rw, &http.Cookie{
			Name:     CookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// TokenFromRequest extracts a bearer token or the session cookie.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); len(header) > 7 && (header[:7] == "Bearer " || header[:7] == "bearer ") {
		return header[7:]
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}
