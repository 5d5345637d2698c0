package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/quangdao0809/ganh-hat-loto/models"
	"github.com/quangdao0809/ganh-hat-loto/services"
	"github.com/quangdao0809/ganh-hat-loto/store"
)

func newRoomsRouter(t *testing.T, st store.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := services.NewRegistry(st, services.NewLocalBus(), time.Minute)
	t.Cleanup(reg.Shutdown)

	r := gin.New()
	rc := &Rooms{Registry: reg}
	r.POST("/api/rooms", rc.Create)
	r.GET("/api/rooms/:code", rc.Get)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateRoom_REST(t *testing.T) {
	r := newRoomsRouter(t, store.NewMemoryStore())

	w := doJSON(r, http.MethodPost, "/api/rooms", `{"nickname":"host"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), `"playerId"`)
}

func TestGetRoom_NotFound(t *testing.T) {
	r := newRoomsRouter(t, store.NewMemoryStore())

	w := doJSON(r, http.MethodGet, "/api/rooms/ZZZZZZ", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

// dupRoomStore makes every code allocation collide, driving Create into its
// retry-exhaustion error.
type dupRoomStore struct {
	*store.MemoryStore
}

func (s *dupRoomStore) CreateRoom(context.Context, *models.Room) error {
	return store.ErrDuplicate
}

func TestCreateRoom_EngineErrorIsNot500(t *testing.T) {
	r := newRoomsRouter(t, &dupRoomStore{MemoryStore: store.NewMemoryStore()})

	w := doJSON(r, http.MethodPost, "/api/rooms", `{"nickname":"host"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "state_conflict")
}
