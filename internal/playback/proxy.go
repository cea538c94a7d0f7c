package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/music-room-system/pkg/redis"
)

var (
	// ErrNoTrack is returned when the provider reports nothing playing.
	ErrNoTrack = errors.New("no track playing")
	// ErrProvider is returned when the provider answers with a non-success status.
	ErrProvider = errors.New("provider request failed")
	// ErrProviderUnavailable is returned when the provider cannot be reached
	// or times out.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// unknownField substitutes for track metadata the provider omitted.
const unknownField = "Unknown"

// TokenSource supplies usable credentials for a host identity.
type TokenSource interface {
	EnsureFresh(ctx context.Context, hostID string) (*redis.TokenInfo, error)
	ForceRefresh(ctx context.Context, hostID string) (*redis.TokenInfo, error)
}

// PlayerAPI issues raw authenticated calls against the provider's player API.
type PlayerAPI interface {
	PlayerRequest(ctx context.Context, tokenType, accessToken, method, endpoint string) (int, []byte, error)
}

// TrackSnapshot is the normalized view of the track playing on the host's
// account. Fields missing from the provider response degrade to defaults
// rather than failing the call.
type TrackSnapshot struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Duration  int    `json:"duration"`
	Progress  int    `json:"time"`
	ImageURL  string `json:"image_url"`
	IsPlaying bool   `json:"is_playing"`
}

// Proxy translates playback intents into authenticated provider calls on
// behalf of a room's host. It is agnostic of room semantics; callers enforce
// who may invoke what.
type Proxy struct {
	tokens TokenSource
	api    PlayerAPI
}

func NewProxy(tokens TokenSource, api PlayerAPI) *Proxy {
	return &Proxy{tokens: tokens, api: api}
}

// Request issues an authenticated player call for the host. When the
// provider rejects the access token, the credential is force-refreshed and
// the call retried exactly once.
func (p *Proxy) Request(ctx context.Context, hostID, method, endpoint string) (int, []byte, error) {
	token, err := p.tokens.EnsureFresh(ctx, hostID)
	if err != nil {
		return 0, nil, err
	}

	status, body, err := p.api.PlayerRequest(ctx, token.TokenType, token.AccessToken, method, endpoint)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if status == http.StatusUnauthorized {
		token, err = p.tokens.ForceRefresh(ctx, hostID)
		if err != nil {
			return 0, nil, err
		}

		status, body, err = p.api.PlayerRequest(ctx, token.TokenType, token.AccessToken, method, endpoint)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		if status == http.StatusUnauthorized {
			return status, body, fmt.Errorf("%w: status %d after refresh", ErrProvider, status)
		}
	}

	return status, body, nil
}

type nowPlayingResponse struct {
	Item *struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		DurationMs int    `json:"duration_ms"`
		Artists    []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	} `json:"item"`
	ProgressMs int  `json:"progress_ms"`
	IsPlaying  bool `json:"is_playing"`
}

// NowPlaying fetches the track currently playing on the host's account.
// Returns ErrNoTrack when nothing is playing.
func (p *Proxy) NowPlaying(ctx context.Context, hostID string) (*TrackSnapshot, error) {
	status, body, err := p.Request(ctx, hostID, http.MethodGet, "/player/currently-playing")
	if err != nil {
		return nil, err
	}

	if status == http.StatusNoContent || len(body) == 0 {
		return nil, ErrNoTrack
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProvider, status)
	}

	var resp nowPlayingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrProvider, err)
	}
	if resp.Item == nil {
		return nil, ErrNoTrack
	}

	snapshot := &TrackSnapshot{
		ID:        resp.Item.ID,
		Title:     resp.Item.Name,
		Duration:  resp.Item.DurationMs,
		Progress:  resp.ProgressMs,
		IsPlaying: resp.IsPlaying,
	}

	var artists []string
	for _, a := range resp.Item.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}
	snapshot.Artist = strings.Join(artists, ", ")

	if snapshot.Title == "" {
		snapshot.Title = unknownField
	}
	if snapshot.Artist == "" {
		snapshot.Artist = unknownField
	}
	if len(resp.Item.Album.Images) > 0 {
		snapshot.ImageURL = resp.Item.Album.Images[0].URL
	}

	return snapshot, nil
}

// Play resumes playback on the host's account.
func (p *Proxy) Play(ctx context.Context, hostID string) error {
	return p.command(ctx, hostID, http.MethodPut, "/player/play")
}

// Pause pauses playback on the host's account.
func (p *Proxy) Pause(ctx context.Context, hostID string) error {
	return p.command(ctx, hostID, http.MethodPut, "/player/pause")
}

// Skip advances the host's player to the next track.
func (p *Proxy) Skip(ctx context.Context, hostID string) error {
	return p.command(ctx, hostID, http.MethodPost, "/player/next")
}

func (p *Proxy) command(ctx context.Context, hostID, method, endpoint string) error {
	status, _, err := p.Request(ctx, hostID, method, endpoint)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("%w: status %d", ErrProvider, status)
	}
	return nil
}
