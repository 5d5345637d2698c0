package services

import "errors"

// Expected game-flow failures. All of these are reported to the caller and
// none of them ever takes the process down.
var (
	ErrNotAuthorized    = errors.New("action requires the room host")
	ErrRoomNotFound     = errors.New("room not found")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrRoomFull         = errors.New("room is full")
	ErrTicketCapReached = errors.New("ticket limit reached")
	ErrStateConflict    = errors.New("action not valid in the current state")
	ErrExhausted        = errors.New("no numbers left to draw")
)

// ErrorCode maps an engine error to the stable wire code clients render
// messages from.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrPlayerNotFound):
		return "player_not_found"
	case errors.Is(err, ErrTicketNotFound):
		return "ticket_not_found"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrTicketCapReached):
		return "ticket_cap_reached"
	case errors.Is(err, ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	default:
		return "internal"
	}
}
