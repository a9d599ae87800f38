package middleware

import (
	"github.com/gin-gonic/gin"

	"messaging-service/internal/auth"
)

// Identity resolves the caller from a bearer token or the session cookie.
// Requests without a valid token continue anonymously.
func Identity(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.Next()
			return
		}

		userID, err := tokens.Validate(token)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("ignoring invalid session token")
			c.Next()
			return
		}

		c.Set("userID", userID)
		c.Request = c.Request.WithContext(auth.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}
