package loto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRoomCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		code := NewRoomCode()
		require.Len(t, code, RoomCodeLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(roomCodeAlphabet, r), "bad glyph %q in %s", r, code)
		}
		seen[code] = true
	}
	// 31^6 codes; 500 samples colliding would mean the generator is broken.
	require.Greater(t, len(seen), 490)
}
