package auth

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/music-room-system/internal/token"
)

type Handler struct {
	tokens *token.Manager
}

func NewHandler(tokens *token.Manager) *Handler {
	return &Handler{tokens: tokens}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.GET("/url", h.authURL)
		auth.GET("/callback", h.callback)
		auth.GET("/status", h.status)
	}
}

func (h *Handler) authURL(c *gin.Context) {
	state := uuid.New().String()
	c.JSON(http.StatusOK, gin.H{"url": h.tokens.BeginAuthorization(state)})
}

func (h *Handler) callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errParam})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	sessionID := c.GetString("session_id")
	if _, err := h.tokens.CompleteAuthorization(c.Request.Context(), code, sessionID); err != nil {
		if errors.Is(err, token.ErrAuthorizationFailed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "/"
	}

	c.Redirect(http.StatusFound, frontendURL)
}

// status reports whether the session holds a usable provider credential,
// refreshing an expired one along the way. Only a missing credential or a
// refresh the provider rejected count as unauthenticated; store or transport
// failures are server errors, not an answer.
func (h *Handler) status(c *gin.Context) {
	sessionID := c.GetString("session_id")

	_, err := h.tokens.EnsureFresh(c.Request.Context(), sessionID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"authenticated": true})
	case errors.Is(err, token.ErrUnauthenticated), errors.Is(err, token.ErrRefreshFailed):
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
