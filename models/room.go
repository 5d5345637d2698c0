package models

import (
	"time"

	"gorm.io/datatypes"
)

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

type CheckMode string

const (
	CheckManual CheckMode = "manual"
	CheckAuto   CheckMode = "auto"
)

// Settings is the host-chosen room configuration. The engine only reads
// MaxPlayers, TicketsPerPlayer, AutoCall* and CheckMode; PresentationMode is
// carried through untouched for the UI.
type Settings struct {
	MaxPlayers          int       `json:"maxPlayers"`
	TicketsPerPlayer    int       `json:"ticketsPerPlayer"`
	AutoCall            bool      `json:"autoCall"`
	AutoCallIntervalSec int       `json:"autoCallIntervalSec"`
	CheckMode           CheckMode `json:"checkMode"`
	PresentationMode    bool      `json:"presentationMode"`
}

const (
	maxPlayersCap       = 100
	ticketsPerPlayerCap = 10
	minAutoCallSec      = 3
	maxAutoCallSec      = 60
)

// Normalize fills defaults and clamps the ranges the engine relies on.
func (s Settings) Normalize() Settings {
	if s.MaxPlayers <= 0 {
		s.MaxPlayers = 30
	}
	if s.MaxPlayers > maxPlayersCap {
		s.MaxPlayers = maxPlayersCap
	}
	if s.TicketsPerPlayer <= 0 {
		s.TicketsPerPlayer = 3
	}
	if s.TicketsPerPlayer > ticketsPerPlayerCap {
		s.TicketsPerPlayer = ticketsPerPlayerCap
	}
	if s.AutoCallIntervalSec < minAutoCallSec {
		s.AutoCallIntervalSec = minAutoCallSec
	}
	if s.AutoCallIntervalSec > maxAutoCallSec {
		s.AutoCallIntervalSec = maxAutoCallSec
	}
	if s.CheckMode != CheckAuto {
		s.CheckMode = CheckManual
	}
	return s
}

type Room struct {
	Code      string                       `gorm:"primaryKey;size:6" json:"code"`
	HostID    string                       `gorm:"size:36" json:"hostId"`
	Status    RoomStatus                   `gorm:"size:16" json:"status"`
	Settings  datatypes.JSONType[Settings] `json:"settings"`
	CreatedAt time.Time                    `json:"createdAt"`
	UpdatedAt time.Time                    `json:"updatedAt"`
}

func (r *Room) GetSettings() Settings {
	return r.Settings.Data()
}

func (r *Room) SetSettings(s Settings) {
	r.Settings = datatypes.NewJSONType(s)
}
