package room

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.GET("", h.listRooms)
		rooms.GET("/code/:code", h.getRoomByCode)
		rooms.POST("", h.createOrUpdateRoom)
		rooms.PUT("/:code", h.updateRoom)
		rooms.POST("/join", h.joinRoom)
		rooms.POST("/leave", h.leaveRoom)
		rooms.GET("/me", h.membership)
	}
}

type RoomRequest struct {
	GuestCanPause *bool `json:"guest_can_pause" binding:"required"`
	VotesToSkip   int   `json:"votes_to_skip" binding:"required"`
}

type JoinRoomRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handler) listRooms(c *gin.Context) {
	rooms, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *Handler) getRoomByCode(c *gin.Context) {
	room, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid room code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sessionID := c.GetString("session_id")
	c.JSON(http.StatusOK, gin.H{
		"room":    room,
		"is_host": h.service.IsHost(sessionID, room),
	})
}

func (h *Handler) createOrUpdateRoom(c *gin.Context) {
	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := c.GetString("session_id")
	room, created, err := h.service.CreateOrUpdate(c.Request.Context(), sessionID, *req.GuestCanPause, req.VotesToSkip)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, room)
}

func (h *Handler) updateRoom(c *gin.Context) {
	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := c.GetString("session_id")
	room, err := h.service.UpdateSettings(c.Request.Context(), sessionID, c.Param("code"), *req.GuestCanPause, req.VotesToSkip)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid room code"})
		case errors.Is(err, ErrNotHost):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *Handler) joinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := c.GetString("session_id")
	if err := h.service.Join(c.Request.Context(), sessionID, req.Code); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "room joined"})
}

func (h *Handler) leaveRoom(c *gin.Context) {
	sessionID := c.GetString("session_id")
	if err := h.service.Leave(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "room left"})
}

func (h *Handler) membership(c *gin.Context) {
	sessionID := c.GetString("session_id")
	code, err := h.service.Membership(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": code})
}
