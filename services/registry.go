package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quangdao0809/ganh-hat-loto/loto"
	"github.com/quangdao0809/ganh-hat-loto/models"
	"github.com/quangdao0809/ganh-hat-loto/store"
	"github.com/quangdao0809/ganh-hat-loto/utils/logger"
)

// codeRetries bounds room-code allocation against collisions.
const codeRetries = 10

// Registry hands out the per-room serialized owners. A room's canonical
// state lives in the store, so a registry on any instance can materialize a
// handle for a room it has never seen; the handle subscribes to the room's
// bus channel on creation.
type Registry struct {
	st    store.Store
	bus   Bus
	grace time.Duration

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(st store.Store, bus Bus, grace time.Duration) *Registry {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &Registry{
		st:    st,
		bus:   bus,
		grace: grace,
		rooms: make(map[string]*Room),
	}
}

// Create allocates a fresh room with its host player.
func (reg *Registry) Create(ctx context.Context, hostNickname string, settings models.Settings) (*Room, *models.Player, error) {
	settings = settings.Normalize()

	var room *models.Room
	for attempt := 0; attempt < codeRetries; attempt++ {
		candidate := &models.Room{
			Code:      loto.NewRoomCode(),
			Status:    models.RoomWaiting,
			CreatedAt: time.Now(),
		}
		candidate.SetSettings(settings)
		err := reg.st.CreateRoom(ctx, candidate)
		if err == nil {
			room = candidate
			break
		}
		if err != store.ErrDuplicate {
			return nil, nil, err
		}
	}
	if room == nil {
		return nil, nil, ErrStateConflict
	}

	host := &models.Player{
		ID:        uuid.NewString(),
		RoomCode:  room.Code,
		Nickname:  hostNickname,
		IsHost:    true,
		Connected: true,
		JoinedAt:  time.Now(),
	}
	if err := reg.st.CreatePlayer(ctx, host); err != nil {
		// Roll the room row back so no hostless room is left behind.
		if derr := reg.st.DeleteRoom(ctx, room.Code); derr != nil {
			logger.Errorf("[Registry] cleanup of room %s: %v", room.Code, derr)
		}
		return nil, nil, err
	}
	room.HostID = host.ID
	if err := reg.st.SaveRoom(ctx, room); err != nil {
		if derr := reg.st.DeleteRoom(ctx, room.Code); derr != nil {
			logger.Errorf("[Registry] cleanup of room %s: %v", room.Code, derr)
		}
		return nil, nil, err
	}

	logger.Infof("[Registry] room %s created by %s", room.Code, hostNickname)
	return reg.handle(room.Code), host, nil
}

// Room returns the serialized owner for a room code, materializing a local
// handle when the room exists in the store but was created (or last touched)
// on another instance.
func (reg *Registry) Room(ctx context.Context, code string) (*Room, error) {
	reg.mu.Lock()
	if r, ok := reg.rooms[code]; ok {
		reg.mu.Unlock()
		return r, nil
	}
	reg.mu.Unlock()

	if _, err := reg.st.GetRoom(ctx, code); err != nil {
		if err == store.ErrNotFound {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return reg.handle(code), nil
}

// State reads a room's roster snapshot without materializing an owner,
// for REST lookups.
func (reg *Registry) State(ctx context.Context, code string) (*RoomState, error) {
	room, err := reg.st.GetRoom(ctx, code)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	players, err := reg.st.ListPlayers(ctx, code)
	if err != nil {
		return nil, err
	}
	return &RoomState{
		Code:     room.Code,
		HostID:   room.HostID,
		Status:   room.Status,
		Settings: room.GetSettings(),
		Players:  players,
	}, nil
}

func (reg *Registry) handle(code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[code]; ok {
		return r
	}
	r := newRoom(code, reg)
	reg.rooms[code] = r
	return r
}

func (reg *Registry) remove(code string) {
	reg.mu.Lock()
	delete(reg.rooms, code)
	reg.mu.Unlock()
}

// Shutdown stops every local room's timers and subscriptions. Room state
// stays in the store so another instance can pick the rooms up.
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.rooms = make(map[string]*Room)
	reg.mu.Unlock()

	for _, r := range rooms {
		r.mu.Lock()
		r.stopAutoCallLocked()
		for id, timer := range r.graceTimers {
			timer.Stop()
			delete(r.graceTimers, id)
		}
		if r.unsubscribe != nil {
			r.unsubscribe()
			r.unsubscribe = nil
		}
		for id, c := range r.clients {
			delete(r.clients, id)
			c.Close()
		}
		r.mu.Unlock()
	}
}
