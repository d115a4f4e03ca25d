package middleware

import (
	"strings"

	"livewire/backend/pkg/errors"
	"livewire/backend/pkg/jwt"
	"livewire/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// JWTAuth checks that the request has a valid JWT and adds claims to the context.
// Websocket handshakes cannot set headers from the browser, so a `token` query
// parameter is accepted as a fallback.
func JWTAuth(jwtService *jwt.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.Warn("Invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("userId", claims.UserID)
		c.Set("userEmail", claims.Email)

		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") || strings.HasPrefix(header, "bearer ") {
		return header[7:]
	}
	if header != "" {
		return header
	}
	return c.Query("token")
}

// UserID returns the authenticated user's id from the request context
func UserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("userId")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
