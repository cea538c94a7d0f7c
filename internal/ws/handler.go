package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/music-room-system/internal/room"
	"github.com/music-room-system/pkg/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, implement proper origin checking
	},
}

// EventSource yields room events for broadcasting.
type EventSource interface {
	ConsumeEvents(ctx context.Context, handler func(events.Event) error) error
}

// Handler pushes room events to websocket subscribers. Events originate from
// the kafka topic the services publish to; the handler only fans out.
type Handler struct {
	// Map of room code -> map of session id -> conn.
	rooms      map[string]map[string]*websocket.Conn
	mu         sync.RWMutex
	events     EventSource
	lookup     *room.Service
	retryDelay time.Duration
}

func NewHandler(events EventSource, lookup *room.Service) *Handler {
	return &Handler{
		rooms:      make(map[string]map[string]*websocket.Conn),
		events:     events,
		lookup:     lookup,
		retryDelay: 5 * time.Second,
	}
}

// Run consumes room events and broadcasts each to its room's subscribers.
// Consume failures are logged and retried so a broker hiccup does not leave
// subscribers permanently silent. Blocks until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) {
	for {
		err := h.events.ConsumeEvents(ctx, func(event events.Event) error {
			h.broadcastToRoom(event.RoomCode, event)
			return nil
		})
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("Failed to consume events, retrying in %s: %v", h.retryDelay, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(h.retryDelay):
		}
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	if _, err := h.lookup.GetByCode(c.Request.Context(), code); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid room code"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	sessionID := c.GetString("session_id")
	h.addConnection(code, sessionID, conn)
	defer h.removeConnection(code, sessionID)

	// Drain inbound frames until the client goes away; subscribers only listen.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (h *Handler) addConnection(code, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[code]; !exists {
		h.rooms[code] = make(map[string]*websocket.Conn)
	}
	h.rooms[code][sessionID] = conn
}

func (h *Handler) removeConnection(code, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, exists := h.rooms[code]; exists {
		if conn, exists := subs[sessionID]; exists {
			conn.Close()
			delete(subs, sessionID)
		}
		if len(subs) == 0 {
			delete(h.rooms, code)
		}
	}
}

func (h *Handler) broadcastToRoom(code string, message interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, exists := h.rooms[code]
	if !exists {
		return
	}

	messageJSON, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	for _, conn := range subs {
		if err := conn.WriteMessage(websocket.TextMessage, messageJSON); err != nil {
			log.Printf("Failed to send message: %v", err)
		}
	}
}
