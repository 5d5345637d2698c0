package services

import (
	"encoding/json"

	"github.com/quangdao0809/ganh-hat-loto/loto"
	"github.com/quangdao0809/ganh-hat-loto/models"
)

// Broadcast event types delivered to every connection in a room.
const (
	EventRoomUpdated  = "room_updated"
	EventGameStarted  = "game_started"
	EventNumberCalled = "number_called"
	EventRowCalled    = "row_called"
	EventWinner       = "winner"
	EventGameReset    = "game_reset"
	EventRoomClosed   = "room_closed"
)

// RoomState is the roster snapshot included in lifecycle events.
type RoomState struct {
	Code     string            `json:"code"`
	HostID   string            `json:"hostId"`
	Status   models.RoomStatus `json:"status"`
	Settings models.Settings   `json:"settings"`
	Players  []models.Player   `json:"players"`
}

// Event is the flat broadcast envelope; unused fields stay off the wire.
type Event struct {
	Type      string                 `json:"type"`
	Room      *RoomState             `json:"room,omitempty"`
	SessionID string                 `json:"sessionId,omitempty"`
	Number    int                    `json:"number,omitempty"`
	Called    []int                  `json:"called,omitempty"`
	PlayerID  string                 `json:"playerId,omitempty"`
	Nickname  string                 `json:"nickname,omitempty"`
	TicketID  string                 `json:"ticketId,omitempty"`
	GridIndex *int                   `json:"gridIndex,omitempty"`
	RowIndex  *int                   `json:"rowIndex,omitempty"`
	Result    *loto.ValidationResult `json:"result,omitempty"`
	Winner    *models.Winner         `json:"winner,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
}

func (e Event) encode() []byte {
	b, _ := json.Marshal(e)
	return b
}
