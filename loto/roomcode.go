package loto

import "crypto/rand"

// RoomCodeLength is the fixed length of a room code.
const RoomCodeLength = 6

// roomCodeAlphabet drops glyphs that read alike on a projected screen:
// I, L, O, 0 and 1.
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewRoomCode returns a random 6-character room code. Codes are not
// guaranteed unique; the caller checks for collisions and retries.
func NewRoomCode() string {
	b := make([]byte, RoomCodeLength)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	for i := range b {
		b[i] = roomCodeAlphabet[int(b[i])%len(roomCodeAlphabet)]
	}
	return string(b)
}
