package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/music-room-system/internal/spotify"
	"github.com/music-room-system/pkg/redis"
)

var (
	// ErrUnauthenticated is returned when a host has no stored credential.
	ErrUnauthenticated = errors.New("host is not authenticated")
	// ErrRefreshFailed is returned when the provider rejects a refresh exchange.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrAuthorizationFailed is returned when the provider rejects a code exchange.
	ErrAuthorizationFailed = errors.New("authorization failed")
)

// Exchanger is the subset of the provider client used for the token lifecycle.
type Exchanger interface {
	AuthURL(state string) string
	ExchangeToken(ctx context.Context, code string) (*spotify.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*spotify.TokenResponse, error)
}

// Store persists credentials keyed by host identity.
type Store interface {
	GetTokens(ctx context.Context, hostID string) (*redis.TokenInfo, error)
	StoreTokens(ctx context.Context, hostID string, token *redis.TokenInfo) error
}

// Manager owns the access/refresh token pair for each host identity and
// renews it lazily on use. Refreshes for the same host are serialized so a
// refresh token is never exchanged twice concurrently.
type Manager struct {
	store    Store
	provider Exchanger

	// One mutex per host identity ever seen; entries are never evicted. A
	// mutex is a few words, and the map is bounded by the number of hosts
	// that have authorized, so eviction is not worth the bookkeeping.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

func NewManager(store Store, provider Exchanger) *Manager {
	return &Manager{
		store:    store,
		provider: provider,
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

func (m *Manager) hostLock(hostID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[hostID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[hostID] = lock
	}
	return lock
}

// Credential returns the stored credential for a host without refreshing it.
func (m *Manager) Credential(ctx context.Context, hostID string) (*redis.TokenInfo, error) {
	token, err := m.store.GetTokens(ctx, hostID)
	if err != nil {
		if errors.Is(err, redis.ErrTokenNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return token, nil
}

// Upsert stores a provider token response for a host, computing the
// absolute expiry from expires_in. The previous refresh token is retained
// when the response omits one, as the provider does on most refreshes.
func (m *Manager) Upsert(ctx context.Context, hostID string, resp *spotify.TokenResponse) (*redis.TokenInfo, error) {
	token := &redis.TokenInfo{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC(),
	}

	if token.RefreshToken == "" {
		prev, err := m.store.GetTokens(ctx, hostID)
		if err == nil {
			token.RefreshToken = prev.RefreshToken
		} else if !errors.Is(err, redis.ErrTokenNotFound) {
			return nil, err
		}
	}

	if err := m.store.StoreTokens(ctx, hostID, token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// EnsureFresh returns a usable credential for a host, refreshing it first if
// it has expired. The store is re-read under the host lock so a request that
// waited on a concurrent refresh picks up its result instead of refreshing
// again.
func (m *Manager) EnsureFresh(ctx context.Context, hostID string) (*redis.TokenInfo, error) {
	lock := m.hostLock(hostID)
	lock.Lock()
	defer lock.Unlock()

	token, err := m.Credential(ctx, hostID)
	if err != nil {
		return nil, err
	}

	if !token.Expired(m.now()) {
		return token, nil
	}

	return m.refresh(ctx, hostID, token)
}

// ForceRefresh refreshes a host's credential regardless of its expiry. Used
// after the provider rejects an access token that has not nominally expired.
func (m *Manager) ForceRefresh(ctx context.Context, hostID string) (*redis.TokenInfo, error) {
	lock := m.hostLock(hostID)
	lock.Lock()
	defer lock.Unlock()

	token, err := m.Credential(ctx, hostID)
	if err != nil {
		return nil, err
	}

	return m.refresh(ctx, hostID, token)
}

func (m *Manager) refresh(ctx context.Context, hostID string, token *redis.TokenInfo) (*redis.TokenInfo, error) {
	resp, err := m.provider.RefreshToken(ctx, token.RefreshToken)
	if err != nil {
		var statusErr *spotify.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, statusErr)
		}
		return nil, err
	}

	return m.Upsert(ctx, hostID, resp)
}

// BeginAuthorization builds the provider consent URL. Pure, no side effects.
func (m *Manager) BeginAuthorization(state string) string {
	return m.provider.AuthURL(state)
}

// CompleteAuthorization exchanges an authorization code and stores the
// resulting credential for the host.
func (m *Manager) CompleteAuthorization(ctx context.Context, code, hostID string) (*redis.TokenInfo, error) {
	resp, err := m.provider.ExchangeToken(ctx, code)
	if err != nil {
		var statusErr *spotify.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: %v", ErrAuthorizationFailed, statusErr)
		}
		return nil, err
	}

	return m.Upsert(ctx, hostID, resp)
}
