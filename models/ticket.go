package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/quangdao0809/ganh-hat-loto/loto"
)

// Ticket holds a player's grids for the current session, including the
// marked flags. Version backs the optimistic write used when marking cells:
// a save only applies if the stored version still matches the one read.
type Ticket struct {
	ID        string                          `gorm:"primaryKey;size:36" json:"ticketId"`
	RoomCode  string                          `gorm:"index;size:6" json:"roomCode"`
	PlayerID  string                          `gorm:"index;size:36" json:"playerId"`
	Grids     datatypes.JSONType[[]loto.Grid] `json:"grids"`
	Version   int                             `json:"version"`
	CreatedAt time.Time                       `json:"createdAt"`
}

func (t *Ticket) GetGrids() []loto.Grid {
	return t.Grids.Data()
}

func (t *Ticket) SetGrids(grids []loto.Grid) {
	t.Grids = datatypes.NewJSONType(grids)
}
