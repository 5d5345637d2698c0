package store

import (
	"context"
	"sort"
	"sync"

	"github.com/quangdao0809/ganh-hat-loto/loto"
	"github.com/quangdao0809/ganh-hat-loto/models"
)

// MemoryStore keeps everything in process memory. It implements the same
// contract as the Postgres store, including the ticket version check, so the
// engine can be exercised in tests without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]models.Room
	players  map[string]models.Player
	tickets  map[string]models.Ticket
	sessions map[string]models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]models.Room),
		players:  make(map[string]models.Player),
		tickets:  make(map[string]models.Ticket),
		sessions: make(map[string]models.Session),
	}
}

func (s *MemoryStore) CreateRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code]; ok {
		return ErrDuplicate
	}
	s.rooms[room.Code] = *room
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, code string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &room, nil
}

func (s *MemoryStore) SaveRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code]; !ok {
		return ErrNotFound
	}
	s.rooms[room.Code] = *room
	return nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	for id, p := range s.players {
		if p.RoomCode == code {
			delete(s.players, id)
		}
	}
	for id, t := range s.tickets {
		if t.RoomCode == code {
			delete(s.tickets, id)
		}
	}
	for id, sess := range s.sessions {
		if sess.RoomCode == code {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *MemoryStore) CreatePlayer(_ context.Context, p *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[p.ID]; ok {
		return ErrDuplicate
	}
	s.players[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetPlayer(_ context.Context, id string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) SavePlayer(_ context.Context, p *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[p.ID]; !ok {
		return ErrNotFound
	}
	s.players[p.ID] = *p
	return nil
}

func (s *MemoryStore) DeletePlayer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}

func (s *MemoryStore) ListPlayers(_ context.Context, roomCode string) ([]models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var players []models.Player
	for _, p := range s.players {
		if p.RoomCode == roomCode {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID < players[j].ID
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
	return players, nil
}

func (s *MemoryStore) CreateTicket(_ context.Context, t *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[t.ID]; ok {
		return ErrDuplicate
	}
	s.tickets[t.ID] = *t
	return nil
}

func (s *MemoryStore) GetTicket(_ context.Context, id string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) listTickets(match func(models.Ticket) bool) []models.Ticket {
	var tickets []models.Ticket
	for _, t := range s.tickets {
		if match(t) {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].ID < tickets[j].ID
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
	return tickets
}

func (s *MemoryStore) ListRoomTickets(_ context.Context, roomCode string) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTickets(func(t models.Ticket) bool { return t.RoomCode == roomCode }), nil
}

func (s *MemoryStore) ListPlayerTickets(_ context.Context, playerID string) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTickets(func(t models.Ticket) bool { return t.PlayerID == playerID }), nil
}

func (s *MemoryStore) UpdateTicketGrids(_ context.Context, id string, fromVersion int, grids []loto.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return ErrNotFound
	}
	if t.Version != fromVersion {
		return ErrVersionConflict
	}
	t.SetGrids(grids)
	t.Version++
	s.tickets[id] = t
	return nil
}

func (s *MemoryStore) DeleteRoomTickets(_ context.Context, roomCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tickets {
		if t.RoomCode == roomCode {
			delete(s.tickets, id)
		}
	}
	return nil
}

func (s *MemoryStore) DeletePlayerTickets(_ context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tickets {
		if t.PlayerID == playerID {
			delete(s.tickets, id)
		}
	}
	return nil
}

func (s *MemoryStore) CreateSession(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrDuplicate
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) ActiveSession(_ context.Context, roomCode string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Session
	for id := range s.sessions {
		sess := s.sessions[id]
		if sess.RoomCode != roomCode || sess.EndedAt != nil {
			continue
		}
		if latest == nil || sess.StartedAt.After(latest.StartedAt) {
			latest = &sess
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (s *MemoryStore) SaveSession(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[sess.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != sess.Version {
		return ErrVersionConflict
	}
	sess.Version++
	s.sessions[sess.ID] = *sess
	return nil
}
