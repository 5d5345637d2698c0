package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quangdao0809/ganh-hat-loto/loto"
	"github.com/quangdao0809/ganh-hat-loto/models"
)

// cachedStore layers a TTL-bounded Redis cache over another Store so every
// instance in the fleet reads the same room view without hitting Postgres on
// each event. The inner store stays the record of truth: reads fall through
// on any miss or Redis error, and writes go to the inner store first.
type cachedStore struct {
	inner Store
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedStore wraps inner with a Redis read-through cache.
func NewCachedStore(inner Store, rdb *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &cachedStore{inner: inner, rdb: rdb, ttl: ttl}
}

func roomKey(code string) string    { return "loto:room:" + code }
func playersKey(code string) string { return "loto:players:" + code }
func sessionKey(code string) string { return "loto:session:" + code }
func ticketKey(id string) string    { return "loto:ticket:" + id }

func (s *cachedStore) getCached(ctx context.Context, key string, out any) bool {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (s *cachedStore) setCached(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	// Cache failures are invisible to callers; the durable store still has
	// the row.
	_ = s.rdb.Set(ctx, key, raw, s.ttl).Err()
}

func (s *cachedStore) drop(ctx context.Context, keys ...string) {
	_ = s.rdb.Del(ctx, keys...).Err()
}

func (s *cachedStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := s.inner.CreateRoom(ctx, room); err != nil {
		return err
	}
	s.setCached(ctx, roomKey(room.Code), room)
	return nil
}

func (s *cachedStore) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	if s.getCached(ctx, roomKey(code), &room) {
		return &room, nil
	}
	got, err := s.inner.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, roomKey(code), got)
	return got, nil
}

func (s *cachedStore) SaveRoom(ctx context.Context, room *models.Room) error {
	if err := s.inner.SaveRoom(ctx, room); err != nil {
		return err
	}
	s.setCached(ctx, roomKey(room.Code), room)
	return nil
}

func (s *cachedStore) DeleteRoom(ctx context.Context, code string) error {
	if err := s.inner.DeleteRoom(ctx, code); err != nil {
		return err
	}
	s.drop(ctx, roomKey(code), playersKey(code), sessionKey(code))
	return nil
}

func (s *cachedStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	if err := s.inner.CreatePlayer(ctx, p); err != nil {
		return err
	}
	s.drop(ctx, playersKey(p.RoomCode))
	return nil
}

func (s *cachedStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	return s.inner.GetPlayer(ctx, id)
}

func (s *cachedStore) SavePlayer(ctx context.Context, p *models.Player) error {
	if err := s.inner.SavePlayer(ctx, p); err != nil {
		return err
	}
	s.drop(ctx, playersKey(p.RoomCode))
	return nil
}

func (s *cachedStore) DeletePlayer(ctx context.Context, id string) error {
	p, err := s.inner.GetPlayer(ctx, id)
	if err := s.inner.DeletePlayer(ctx, id); err != nil {
		return err
	}
	if err == nil {
		s.drop(ctx, playersKey(p.RoomCode))
	}
	return nil
}

func (s *cachedStore) ListPlayers(ctx context.Context, roomCode string) ([]models.Player, error) {
	var players []models.Player
	if s.getCached(ctx, playersKey(roomCode), &players) {
		return players, nil
	}
	players, err := s.inner.ListPlayers(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, playersKey(roomCode), players)
	return players, nil
}

func (s *cachedStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	if err := s.inner.CreateTicket(ctx, t); err != nil {
		return err
	}
	s.setCached(ctx, ticketKey(t.ID), t)
	return nil
}

func (s *cachedStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var t models.Ticket
	if s.getCached(ctx, ticketKey(id), &t) {
		return &t, nil
	}
	got, err := s.inner.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, ticketKey(id), got)
	return got, nil
}

func (s *cachedStore) ListRoomTickets(ctx context.Context, roomCode string) ([]models.Ticket, error) {
	return s.inner.ListRoomTickets(ctx, roomCode)
}

func (s *cachedStore) ListPlayerTickets(ctx context.Context, playerID string) ([]models.Ticket, error) {
	return s.inner.ListPlayerTickets(ctx, playerID)
}

func (s *cachedStore) UpdateTicketGrids(ctx context.Context, id string, fromVersion int, grids []loto.Grid) error {
	// The version check must hit the record of truth, never a cached copy.
	if err := s.inner.UpdateTicketGrids(ctx, id, fromVersion, grids); err != nil {
		if err == ErrVersionConflict {
			s.drop(ctx, ticketKey(id))
		}
		return err
	}
	if t, err := s.inner.GetTicket(ctx, id); err == nil {
		s.setCached(ctx, ticketKey(id), t)
	} else {
		s.drop(ctx, ticketKey(id))
	}
	return nil
}

func (s *cachedStore) DeleteRoomTickets(ctx context.Context, roomCode string) error {
	tickets, _ := s.inner.ListRoomTickets(ctx, roomCode)
	if err := s.inner.DeleteRoomTickets(ctx, roomCode); err != nil {
		return err
	}
	for _, t := range tickets {
		s.drop(ctx, ticketKey(t.ID))
	}
	return nil
}

func (s *cachedStore) DeletePlayerTickets(ctx context.Context, playerID string) error {
	tickets, _ := s.inner.ListPlayerTickets(ctx, playerID)
	if err := s.inner.DeletePlayerTickets(ctx, playerID); err != nil {
		return err
	}
	for _, t := range tickets {
		s.drop(ctx, ticketKey(t.ID))
	}
	return nil
}

func (s *cachedStore) CreateSession(ctx context.Context, sess *models.Session) error {
	if err := s.inner.CreateSession(ctx, sess); err != nil {
		return err
	}
	s.setCached(ctx, sessionKey(sess.RoomCode), sess)
	return nil
}

func (s *cachedStore) ActiveSession(ctx context.Context, roomCode string) (*models.Session, error) {
	var sess models.Session
	if s.getCached(ctx, sessionKey(roomCode), &sess) && sess.EndedAt == nil {
		return &sess, nil
	}
	got, err := s.inner.ActiveSession(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, sessionKey(roomCode), got)
	return got, nil
}

func (s *cachedStore) SaveSession(ctx context.Context, sess *models.Session) error {
	// The version check must hit the record of truth, never a cached copy.
	if err := s.inner.SaveSession(ctx, sess); err != nil {
		if err == ErrVersionConflict {
			s.drop(ctx, sessionKey(sess.RoomCode))
		}
		return err
	}
	if sess.EndedAt != nil {
		s.drop(ctx, sessionKey(sess.RoomCode))
	} else {
		s.setCached(ctx, sessionKey(sess.RoomCode), sess)
	}
	return nil
}
