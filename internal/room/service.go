package room

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/music-room-system/pkg/events"
	"github.com/music-room-system/pkg/models"
)

var (
	// ErrNotFound is returned when no room exists for a code or session.
	ErrNotFound = errors.New("room not found")
	// ErrValidation is returned for invalid room settings.
	ErrValidation = errors.New("votes to skip must be a positive integer")
	// ErrNotHost is returned when a non-host attempts a host-only action.
	ErrNotHost = errors.New("only the host may perform this action")
)

// Store is the room persistence consumed by the registry.
type Store interface {
	UpsertRoomByHost(host string, guestCanPause bool, votesToSkip int) (*models.Room, bool, error)
	GetRoomByCode(code string) (*models.Room, error)
	GetRoomByHost(host string) (*models.Room, error)
	ListRooms() ([]*models.Room, error)
	DeleteRoom(roomID uuid.UUID) error
}

// Memberships binds sessions to room codes.
type Memberships interface {
	SetMembership(ctx context.Context, sessionID, code string) error
	GetMembership(ctx context.Context, sessionID string) (string, error)
	ClearMembership(ctx context.Context, sessionID string) error
}

// Publisher emits room events.
type Publisher interface {
	Publish(ctx context.Context, eventType events.EventType, roomCode string, payload interface{}) error
}

// Service is the room registry: it creates, looks up and destroys rooms and
// maintains session membership bindings.
type Service struct {
	store    Store
	sessions Memberships
	events   Publisher
}

func NewService(store Store, sessions Memberships, events Publisher) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		events:   events,
	}
}

// CreateOrUpdate creates a room hosted by the session, or updates the
// settings of the room it already hosts. The host is bound to its own room
// as a member. Reports whether a new room was created.
func (s *Service) CreateOrUpdate(ctx context.Context, hostID string, guestCanPause bool, votesToSkip int) (*models.Room, bool, error) {
	if votesToSkip < 1 {
		return nil, false, ErrValidation
	}

	room, created, err := s.store.UpsertRoomByHost(hostID, guestCanPause, votesToSkip)
	if err != nil {
		return nil, false, err
	}

	if err := s.sessions.SetMembership(ctx, hostID, room.Code); err != nil {
		return nil, false, err
	}

	eventType := events.EventTypeRoomUpdated
	if created {
		eventType = events.EventTypeRoomCreated
	}
	s.publish(ctx, eventType, room.Code)

	return room, created, nil
}

// UpdateSettings updates a room's settings on behalf of its host.
func (s *Service) UpdateSettings(ctx context.Context, sessionID, code string, guestCanPause bool, votesToSkip int) (*models.Room, error) {
	room, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !s.IsHost(sessionID, room) {
		return nil, ErrNotHost
	}

	room, _, err = s.CreateOrUpdate(ctx, sessionID, guestCanPause, votesToSkip)
	return room, err
}

// GetByCode looks up a room by its public code.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Room, error) {
	room, err := s.store.GetRoomByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// List returns all rooms in creation order.
func (s *Service) List(ctx context.Context) ([]*models.Room, error) {
	return s.store.ListRooms()
}

// Join binds the session to the room with the given code. Room state itself
// is untouched.
func (s *Service) Join(ctx context.Context, sessionID, code string) error {
	room, err := s.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	return s.sessions.SetMembership(ctx, sessionID, room.Code)
}

// Leave clears the session's membership. When the session hosts a room, that
// room and all its votes are destroyed.
func (s *Service) Leave(ctx context.Context, sessionID string) error {
	if err := s.sessions.ClearMembership(ctx, sessionID); err != nil {
		return err
	}

	room, err := s.store.GetRoomByHost(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get room: %w", err)
	}

	if err := s.store.DeleteRoom(room.ID); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	s.publish(ctx, events.EventTypeRoomClosed, room.Code)

	return nil
}

// Membership returns the room code the session is bound to, or "".
func (s *Service) Membership(ctx context.Context, sessionID string) (string, error) {
	return s.sessions.GetMembership(ctx, sessionID)
}

// RoomForSession resolves the session's membership to its room.
func (s *Service) RoomForSession(ctx context.Context, sessionID string) (*models.Room, error) {
	code, err := s.sessions.GetMembership(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, ErrNotFound
	}
	return s.GetByCode(ctx, code)
}

// IsHost reports whether the session hosts the room.
func (s *Service) IsHost(sessionID string, room *models.Room) bool {
	return sessionID == room.Host
}

func (s *Service) publish(ctx context.Context, eventType events.EventType, roomCode string) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, roomCode, nil); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", eventType, err)
	}
}
