package models

import (
	"time"

	"gorm.io/datatypes"
)

// Call is one drawn number with its draw time.
type Call struct {
	Number int       `json:"number"`
	At     time.Time `json:"at"`
}

// Winner records the first validated winning row of a session. The session
// keeps running after a win; the host decides when to stop.
type Winner struct {
	PlayerID  string `json:"playerId"`
	TicketID  string `json:"ticketId"`
	GridIndex int    `json:"gridIndex"`
	RowIndex  int    `json:"rowIndex"`
}

// Session is one play-through of a room. Calls is append-only and ordered;
// EndedAt nil means the session is the room's active one. Version backs the
// optimistic write used for every session save: instances on different hosts
// mutate the same row, so a save only applies if the stored version still
// matches the one read.
type Session struct {
	ID        string                      `gorm:"primaryKey;size:36" json:"sessionId"`
	RoomCode  string                      `gorm:"index;size:6" json:"roomCode"`
	Calls     datatypes.JSONType[[]Call]  `json:"calls"`
	Winner    datatypes.JSONType[*Winner] `json:"winner"`
	Version   int                         `json:"version"`
	StartedAt time.Time                   `json:"startedAt"`
	EndedAt   *time.Time                  `json:"endedAt"`
}

func (s *Session) GetCalls() []Call {
	return s.Calls.Data()
}

func (s *Session) AppendCall(c Call) {
	s.Calls = datatypes.NewJSONType(append(s.Calls.Data(), c))
}

// CalledSet returns the drawn numbers as a lookup set.
func (s *Session) CalledSet() map[int]bool {
	calls := s.Calls.Data()
	m := make(map[int]bool, len(calls))
	for _, c := range calls {
		m[c.Number] = true
	}
	return m
}

// CalledNumbers returns the drawn numbers in draw order.
func (s *Session) CalledNumbers() []int {
	calls := s.Calls.Data()
	nums := make([]int, len(calls))
	for i, c := range calls {
		nums[i] = c.Number
	}
	return nums
}

// LastNumber returns the most recent draw, or 0 when nothing has been drawn.
func (s *Session) LastNumber() int {
	calls := s.Calls.Data()
	if len(calls) == 0 {
		return 0
	}
	return calls[len(calls)-1].Number
}

func (s *Session) GetWinner() *Winner {
	return s.Winner.Data()
}

func (s *Session) SetWinner(w *Winner) {
	s.Winner = datatypes.NewJSONType(w)
}
