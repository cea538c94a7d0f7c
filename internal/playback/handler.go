package playback

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/music-room-system/internal/room"
	"github.com/music-room-system/internal/token"
	"github.com/music-room-system/internal/vote"
	"github.com/music-room-system/pkg/models"
)

// Rooms resolves sessions to rooms and answers host/permission questions.
type Rooms interface {
	RoomForSession(ctx context.Context, sessionID string) (*models.Room, error)
	IsHost(sessionID string, r *models.Room) bool
}

// Votes is the vote coordinator surface used by the playback endpoints.
type Votes interface {
	CastSkipVote(ctx context.Context, sessionID string, r *models.Room) (*vote.Result, error)
	OnTrackObserved(ctx context.Context, r *models.Room, songID string) error
	CountVotes(r *models.Room, songID string) (int, error)
}

type Handler struct {
	proxy *Proxy
	rooms Rooms
	votes Votes
}

func NewHandler(proxy *Proxy, rooms Rooms, votes Votes) *Handler {
	return &Handler{
		proxy: proxy,
		rooms: rooms,
		votes: votes,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	player := r.Group("/player")
	{
		player.GET("/now-playing", h.nowPlaying)
		player.PUT("/play", h.play)
		player.PUT("/pause", h.pause)
		player.POST("/skip", h.skip)
	}
}

func (h *Handler) roomForCaller(c *gin.Context) (*models.Room, bool) {
	sessionID := c.GetString("session_id")
	r, err := h.rooms.RoomForSession(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not in a room"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return r, true
}

func (h *Handler) nowPlaying(c *gin.Context) {
	r, ok := h.roomForCaller(c)
	if !ok {
		return
	}

	snapshot, err := h.proxy.NowPlaying(c.Request.Context(), r.Host)
	if err != nil {
		if errors.Is(err, ErrNoTrack) {
			// Nothing playing also resets the room's tally.
			if err := h.votes.OnTrackObserved(c.Request.Context(), r, ""); err != nil {
				log.Printf("Warning: failed to record track change: %v", err)
			}
			c.Status(http.StatusNoContent)
			return
		}
		h.providerError(c, err)
		return
	}

	if err := h.votes.OnTrackObserved(c.Request.Context(), r, snapshot.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	votes, err := h.votes.CountVotes(r, snapshot.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sessionID := c.GetString("session_id")
	c.JSON(http.StatusOK, gin.H{
		"track":           snapshot,
		"votes":           votes,
		"votes_to_skip":   r.VotesToSkip,
		"is_host":         h.rooms.IsHost(sessionID, r),
		"guest_can_pause": r.GuestCanPause,
	})
}

func (h *Handler) play(c *gin.Context) {
	h.command(c, h.proxy.Play)
}

func (h *Handler) pause(c *gin.Context) {
	h.command(c, h.proxy.Pause)
}

func (h *Handler) command(c *gin.Context, action func(context.Context, string) error) {
	r, ok := h.roomForCaller(c)
	if !ok {
		return
	}

	sessionID := c.GetString("session_id")
	if !h.rooms.IsHost(sessionID, r) && !r.GuestCanPause {
		c.JSON(http.StatusForbidden, gin.H{"error": "guests may not control playback in this room"})
		return
	}

	if err := action(c.Request.Context(), r.Host); err != nil {
		h.providerError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) skip(c *gin.Context) {
	r, ok := h.roomForCaller(c)
	if !ok {
		return
	}

	sessionID := c.GetString("session_id")
	result, err := h.votes.CastSkipVote(c.Request.Context(), sessionID, r)
	if err != nil {
		switch {
		case errors.Is(err, vote.ErrNoCurrentSong):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, vote.ErrAlreadyVoted):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.providerError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) providerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, token.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "host is not authenticated with the provider"})
	case errors.Is(err, token.ErrRefreshFailed),
		errors.Is(err, ErrProvider),
		errors.Is(err, ErrProviderUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
