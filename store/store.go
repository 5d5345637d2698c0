package store

import (
	"context"
	"errors"

	"github.com/quangdao0809/ganh-hat-loto/loto"
	"github.com/quangdao0809/ganh-hat-loto/models"
)

var (
	// ErrNotFound is returned when a room, player, ticket or session row
	// does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict is returned by UpdateTicketGrids when the ticket
	// was modified since it was read. Callers re-read and retry.
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrDuplicate is returned when a row with the same key already exists.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Store is the record of truth for rooms, players, tickets and sessions.
// Every method is safe for concurrent use. One room's rows are only ever
// mutated through that room's serialized owner, so plain row operations
// suffice everywhere except ticket marking, which uses a version check.
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, code string) (*models.Room, error)
	SaveRoom(ctx context.Context, room *models.Room) error
	// DeleteRoom removes the room and all of its players, tickets and
	// sessions.
	DeleteRoom(ctx context.Context, code string) error

	CreatePlayer(ctx context.Context, p *models.Player) error
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	SavePlayer(ctx context.Context, p *models.Player) error
	DeletePlayer(ctx context.Context, id string) error
	// ListPlayers returns the room's roster in join order.
	ListPlayers(ctx context.Context, roomCode string) ([]models.Player, error)

	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	ListRoomTickets(ctx context.Context, roomCode string) ([]models.Ticket, error)
	ListPlayerTickets(ctx context.Context, playerID string) ([]models.Ticket, error)
	// UpdateTicketGrids writes new grid contents only if the stored version
	// still equals fromVersion, bumping the version on success.
	UpdateTicketGrids(ctx context.Context, id string, fromVersion int, grids []loto.Grid) error
	DeleteRoomTickets(ctx context.Context, roomCode string) error
	DeletePlayerTickets(ctx context.Context, playerID string) error

	CreateSession(ctx context.Context, s *models.Session) error
	// ActiveSession returns the room's session with no end time.
	ActiveSession(ctx context.Context, roomCode string) (*models.Session, error)
	// SaveSession writes the session only if the stored version still equals
	// s.Version, bumping both on success. Callers re-read and retry on
	// ErrVersionConflict.
	SaveSession(ctx context.Context, s *models.Session) error
}
