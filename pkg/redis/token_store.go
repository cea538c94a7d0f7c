package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when no credential is stored for an identity.
var ErrTokenNotFound = errors.New("token not found")

// TokenInfo is the Spotify credential stored for a host identity.
type TokenInfo struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token has passed its expiry.
func (t *TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

type TokenStore struct {
	client *redis.Client
}

// NewTokenStore creates a new token store with the given Redis client
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

// StoreTokens stores a host's Spotify credential, overwriting any previous one.
func (s *TokenStore) StoreTokens(ctx context.Context, hostID string, token *TokenInfo) error {
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	key := tokenKey(hostID)
	if err := s.client.Set(ctx, key, tokenJSON, 0).Err(); err != nil { // 0 means no expiration
		return fmt.Errorf("failed to store token: %w", err)
	}

	return nil
}

// GetTokens retrieves a host's Spotify credential.
func (s *TokenStore) GetTokens(ctx context.Context, hostID string) (*TokenInfo, error) {
	tokenJSON, err := s.client.Get(ctx, tokenKey(hostID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var token TokenInfo
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}

// DeleteToken removes a host's credential.
func (s *TokenStore) DeleteToken(ctx context.Context, hostID string) error {
	return s.client.Del(ctx, tokenKey(hostID)).Err()
}

func tokenKey(hostID string) string {
	return fmt.Sprintf("token:%s", hostID)
}
