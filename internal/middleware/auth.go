package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/carepulse/backend/internal/auth"
	"github.com/carepulse/backend/pkg/errors"
	"github.com/carepulse/backend/pkg/response"
)

// Context keys populated by the auth middleware.
const (
	CtxUserIDKey = "auth.user_id"
	CtxRoleKey   = "auth.role"
)

// RequireAuth validates the bearer token and stores the caller's identity in
// the request context. Websocket clients may pass the token as a query
// parameter since browsers cannot set headers on upgrade requests.
func RequireAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxRoleKey, claims.Role)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}
