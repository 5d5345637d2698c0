package models

import "time"

// Player is one seat in a room. The ID is server-issued and survives
// reconnects; Connected tracks whether a live websocket is attached right
// now. The websocket itself is runtime state and never persisted.
type Player struct {
	ID        string    `gorm:"primaryKey;size:36" json:"playerId"`
	RoomCode  string    `gorm:"index;size:6" json:"roomCode"`
	Nickname  string    `gorm:"size:64" json:"nickname"`
	IsHost    bool      `json:"isHost"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joinedAt"`
}
