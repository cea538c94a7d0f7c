package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SessionStore binds session identities to the room they are a member of.
// Membership is a plain session->code mapping; room state itself lives in
// the database.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// SetMembership binds a session to a room code, replacing any prior binding.
func (s *SessionStore) SetMembership(ctx context.Context, sessionID, code string) error {
	if err := s.client.Set(ctx, membershipKey(sessionID), code, 0).Err(); err != nil {
		return fmt.Errorf("failed to store membership: %w", err)
	}
	return nil
}

// GetMembership returns the room code a session is bound to, or "" when the
// session has no membership.
func (s *SessionStore) GetMembership(ctx context.Context, sessionID string) (string, error) {
	code, err := s.client.Get(ctx, membershipKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get membership: %w", err)
	}
	return code, nil
}

// ClearMembership removes a session's room binding. No-op if none exists.
func (s *SessionStore) ClearMembership(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, membershipKey(sessionID)).Err()
}

func membershipKey(sessionID string) string {
	return fmt.Sprintf("session:%s:room", sessionID)
}
