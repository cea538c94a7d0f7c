package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/music-room-system/pkg/jwt"
)

const sessionCookie = "session_token"

// SessionMiddleware resolves the caller's opaque session identity from the
// signed session cookie, minting a fresh one on first contact. Every core
// operation receives the identity explicitly via the request context.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := ""

		if cookie, err := c.Cookie(sessionCookie); err == nil {
			if claims, err := jwt.ValidateToken(cookie); err == nil {
				sessionID = claims.SessionID
			}
		}

		if sessionID == "" {
			sessionID = uuid.New().String()
			signed, err := jwt.GenerateToken(sessionID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
				return
			}

			http.SetCookie(c.Writer, &http.Cookie{
				Name:     sessionCookie,
				Value:    signed,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		c.Set("session_id", sessionID)
		c.Next()
	}
}
