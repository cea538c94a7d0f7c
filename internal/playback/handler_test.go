package playback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-room-system/internal/room"
	"github.com/music-room-system/internal/vote"
	"github.com/music-room-system/pkg/models"
)

type fakeRooms struct {
	room *models.Room
}

func (f *fakeRooms) RoomForSession(ctx context.Context, sessionID string) (*models.Room, error) {
	if f.room == nil {
		return nil, room.ErrNotFound
	}
	return f.room, nil
}

func (f *fakeRooms) IsHost(sessionID string, r *models.Room) bool {
	return sessionID == r.Host
}

type fakeVotes struct {
	result   *vote.Result
	err      error
	observed []string
	count    int
}

func (f *fakeVotes) CastSkipVote(ctx context.Context, sessionID string, r *models.Room) (*vote.Result, error) {
	return f.result, f.err
}

func (f *fakeVotes) OnTrackObserved(ctx context.Context, r *models.Room, songID string) error {
	f.observed = append(f.observed, songID)
	return nil
}

func (f *fakeVotes) CountVotes(r *models.Room, songID string) (int, error) {
	return f.count, nil
}

func guestRoom() *models.Room {
	return &models.Room{
		ID:          uuid.New(),
		Code:        "ABCD12",
		Host:        "host-session",
		VotesToSkip: 2,
		CurrentSong: "track-1",
	}
}

func newHandlerRouter(sessionID string, proxy *Proxy, rooms Rooms, votes Votes) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("session_id", sessionID)
	})
	NewHandler(proxy, rooms, votes).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestSkipHandlerOutcomes(t *testing.T) {
	tcases := []struct {
		name         string
		rooms        *fakeRooms
		votes        *fakeVotes
		expectedCode int
	}{
		{
			name:         "not in a room",
			rooms:        &fakeRooms{},
			votes:        &fakeVotes{},
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "counted vote",
			rooms:        &fakeRooms{room: guestRoom()},
			votes:        &fakeVotes{result: &vote.Result{Votes: 1, Required: 2}},
			expectedCode: http.StatusOK,
		},
		{
			name:         "already voted",
			rooms:        &fakeRooms{room: guestRoom()},
			votes:        &fakeVotes{err: vote.ErrAlreadyVoted},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "no current song",
			rooms:        &fakeRooms{room: guestRoom()},
			votes:        &fakeVotes{err: vote.ErrNoCurrentSong},
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "provider unavailable",
			rooms:        &fakeRooms{room: guestRoom()},
			votes:        &fakeVotes{err: ErrProviderUnavailable},
			expectedCode: http.StatusBadGateway,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			router := newHandlerRouter("guest-1", nil, tc.rooms, tc.votes)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/player/skip", nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}
}

func TestPlayPausePermissions(t *testing.T) {
	tcases := []struct {
		name          string
		sessionID     string
		guestCanPause bool
		expectedCode  int
	}{
		{
			name:          "host always allowed",
			sessionID:     "host-session",
			guestCanPause: false,
			expectedCode:  http.StatusNoContent,
		},
		{
			name:          "guest allowed when permitted",
			sessionID:     "guest-1",
			guestCanPause: true,
			expectedCode:  http.StatusNoContent,
		},
		{
			name:          "guest forbidden otherwise",
			sessionID:     "guest-1",
			guestCanPause: false,
			expectedCode:  http.StatusForbidden,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			proxy, _, _ := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			r := guestRoom()
			r.GuestCanPause = tc.guestCanPause
			router := newHandlerRouter(tc.sessionID, proxy, &fakeRooms{room: r}, &fakeVotes{})

			for _, path := range []string{"/api/v1/player/play", "/api/v1/player/pause"} {
				req := httptest.NewRequest(http.MethodPut, path, nil)
				rr := httptest.NewRecorder()
				router.ServeHTTP(rr, req)
				assert.Equal(t, tc.expectedCode, rr.Code, path)
			}
		})
	}
}

func TestNowPlayingHandler(t *testing.T) {
	proxy, _, _ := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"is_playing": true,
			"progress_ms": 1000,
			"item": {
				"id": "track-9",
				"name": "Song",
				"duration_ms": 200000,
				"artists": [{"name": "Artist"}]
			}
		}`))
	})

	votes := &fakeVotes{count: 1}
	router := newHandlerRouter("guest-1", proxy, &fakeRooms{room: guestRoom()}, votes)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/player/now-playing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"track-9"}, votes.observed, "every fetch reports the observed track")

	var resp struct {
		Track struct {
			ID string `json:"id"`
		} `json:"track"`
		Votes       int  `json:"votes"`
		VotesToSkip int  `json:"votes_to_skip"`
		IsHost      bool `json:"is_host"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "track-9", resp.Track.ID)
	assert.Equal(t, 1, resp.Votes)
	assert.Equal(t, 2, resp.VotesToSkip)
	assert.False(t, resp.IsHost)
}

func TestNowPlayingHandlerNoTrack(t *testing.T) {
	proxy, _, _ := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	votes := &fakeVotes{}
	router := newHandlerRouter("guest-1", proxy, &fakeRooms{room: guestRoom()}, votes)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/player/now-playing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{""}, votes.observed, "an idle player clears the observed track")
}
