package store

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quangdao0809/ganh-hat-loto/loto"
	"github.com/quangdao0809/ganh-hat-loto/models"
)

// gormStore persists all game state in Postgres through gorm.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already-migrated gorm handle.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

func (s *gormStore) CreateRoom(ctx context.Context, room *models.Room) error {
	return mapErr(s.db.WithContext(ctx).Create(room).Error)
}

func (s *gormStore) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	if err := s.db.WithContext(ctx).First(&room, "code = ?", code).Error; err != nil {
		return nil, mapErr(err)
	}
	return &room, nil
}

func (s *gormStore) SaveRoom(ctx context.Context, room *models.Room) error {
	return mapErr(s.db.WithContext(ctx).Save(room).Error)
}

func (s *gormStore) DeleteRoom(ctx context.Context, code string) error {
	return mapErr(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Player{}, "room_code = ?", code).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Ticket{}, "room_code = ?", code).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Session{}, "room_code = ?", code).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, "code = ?", code).Error
	}))
}

func (s *gormStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	return mapErr(s.db.WithContext(ctx).Create(p).Error)
}

func (s *gormStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	var p models.Player
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *gormStore) SavePlayer(ctx context.Context, p *models.Player) error {
	return mapErr(s.db.WithContext(ctx).Save(p).Error)
}

func (s *gormStore) DeletePlayer(ctx context.Context, id string) error {
	return mapErr(s.db.WithContext(ctx).Delete(&models.Player{}, "id = ?", id).Error)
}

func (s *gormStore) ListPlayers(ctx context.Context, roomCode string) ([]models.Player, error) {
	var players []models.Player
	err := s.db.WithContext(ctx).
		Where("room_code = ?", roomCode).
		Order("joined_at asc").
		Find(&players).Error
	return players, mapErr(err)
}

func (s *gormStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	return mapErr(s.db.WithContext(ctx).Create(t).Error)
}

func (s *gormStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var t models.Ticket
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (s *gormStore) ListRoomTickets(ctx context.Context, roomCode string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.WithContext(ctx).
		Where("room_code = ?", roomCode).
		Order("created_at asc").
		Find(&tickets).Error
	return tickets, mapErr(err)
}

func (s *gormStore) ListPlayerTickets(ctx context.Context, playerID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at asc").
		Find(&tickets).Error
	return tickets, mapErr(err)
}

func (s *gormStore) UpdateTicketGrids(ctx context.Context, id string, fromVersion int, grids []loto.Grid) error {
	res := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND version = ?", id, fromVersion).
		Updates(map[string]any{
			"grids":   datatypes.NewJSONType(grids),
			"version": fromVersion + 1,
		})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the ticket is gone or someone wrote first; disambiguate so
		// callers can retry only the conflict case.
		if _, err := s.GetTicket(ctx, id); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *gormStore) DeleteRoomTickets(ctx context.Context, roomCode string) error {
	return mapErr(s.db.WithContext(ctx).Delete(&models.Ticket{}, "room_code = ?", roomCode).Error)
}

func (s *gormStore) DeletePlayerTickets(ctx context.Context, playerID string) error {
	return mapErr(s.db.WithContext(ctx).Delete(&models.Ticket{}, "player_id = ?", playerID).Error)
}

func (s *gormStore) CreateSession(ctx context.Context, sess *models.Session) error {
	return mapErr(s.db.WithContext(ctx).Create(sess).Error)
}

func (s *gormStore) ActiveSession(ctx context.Context, roomCode string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).
		Where("room_code = ? AND ended_at IS NULL", roomCode).
		Order("started_at desc").
		First(&sess).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &sess, nil
}

func (s *gormStore) SaveSession(ctx context.Context, sess *models.Session) error {
	res := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND version = ?", sess.ID, sess.Version).
		Updates(map[string]any{
			"calls":    sess.Calls,
			"winner":   sess.Winner,
			"ended_at": sess.EndedAt,
			"version":  sess.Version + 1,
		})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		var existing models.Session
		if err := s.db.WithContext(ctx).First(&existing, "id = ?", sess.ID).Error; err != nil {
			return mapErr(err)
		}
		return ErrVersionConflict
	}
	sess.Version++
	return nil
}
