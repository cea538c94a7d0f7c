package room

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(sessionID string) (*gin.Engine, *Service) {
	gin.SetMode(gin.TestMode)
	service, _, _ := newTestService()

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("session_id", sessionID)
	})

	NewHandler(service).RegisterRoutes(router.Group("/api/v1"))
	return router, service
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func boolPtr(b bool) *bool { return &b }

func TestCreateRoomHandler(t *testing.T) {
	router, _ := newTestRouter("host-1")

	rr := doJSON(t, router, http.MethodPost, "/api/v1/rooms", RoomRequest{
		GuestCanPause: boolPtr(true),
		VotesToSkip:   2,
	})
	assert.Equal(t, http.StatusCreated, rr.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	code := created["code"].(string)
	assert.NotEmpty(t, code)

	// Second create from the same host updates in place.
	rr = doJSON(t, router, http.MethodPost, "/api/v1/rooms", RoomRequest{
		GuestCanPause: boolPtr(false),
		VotesToSkip:   5,
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	var updated map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, code, updated["code"].(string))
	assert.Equal(t, float64(5), updated["votes_to_skip"])
}

func TestCreateRoomHandlerBadRequest(t *testing.T) {
	router, _ := newTestRouter("host-1")

	tcases := []struct {
		name string
		body interface{}
	}{
		{name: "invalid json", body: "not json"},
		{name: "missing fields", body: map[string]interface{}{}},
		{
			name: "negative votes",
			body: RoomRequest{GuestCanPause: boolPtr(true), VotesToSkip: -3},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, router, http.MethodPost, "/api/v1/rooms", tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestGetRoomByCodeHandler(t *testing.T) {
	router, service := newTestRouter("host-1")

	room, _, err := service.CreateOrUpdate(context.Background(), "host-1", true, 2)
	require.NoError(t, err)

	rr := doJSON(t, router, http.MethodGet, "/api/v1/rooms/code/"+room.Code, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		IsHost bool `json:"is_host"`
		Room   struct {
			Code string `json:"code"`
		} `json:"room"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.IsHost)
	assert.Equal(t, room.Code, resp.Room.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/v1/rooms/code/NOPE99", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateRoomHandlerForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service, _, _ := newTestService()

	room, _, err := service.CreateOrUpdate(context.Background(), "host-1", true, 2)
	require.NoError(t, err)

	guestRouter := gin.New()
	guestRouter.Use(func(c *gin.Context) {
		c.Set("session_id", "guest-1")
	})
	NewHandler(service).RegisterRoutes(guestRouter.Group("/api/v1"))

	rr := doJSON(t, guestRouter, http.MethodPut, "/api/v1/rooms/"+room.Code, RoomRequest{
		GuestCanPause: boolPtr(false),
		VotesToSkip:   9,
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestJoinLeaveMembershipHandlers(t *testing.T) {
	router, service := newTestRouter("guest-1")

	room, _, err := service.CreateOrUpdate(context.Background(), "host-1", true, 2)
	require.NoError(t, err)

	rr := doJSON(t, router, http.MethodPost, "/api/v1/rooms/join", JoinRoomRequest{Code: "BAD"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/v1/rooms/join", JoinRoomRequest{Code: room.Code})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/v1/rooms/me", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var me map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, room.Code, me["code"])

	rr = doJSON(t, router, http.MethodPost, "/api/v1/rooms/leave", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/v1/rooms/me", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Empty(t, me["code"])
}
