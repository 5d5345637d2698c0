package store

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quangdao0809/ganh-hat-loto/loto"
	"github.com/quangdao0809/ganh-hat-loto/models"
)

func newTicket(t *testing.T) *models.Ticket {
	t.Helper()
	rng := rand.New(rand.NewSource(21))
	grids := loto.GenerateTicketGrids(rng, nil)
	require.Len(t, grids, loto.GridsPerTicket)

	tk := &models.Ticket{ID: "tk-1", RoomCode: "AAAAAA", PlayerID: "p-1", CreatedAt: time.Now()}
	tk.SetGrids(grids)
	return tk
}

func TestMemoryStore_TicketVersioning(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tk := newTicket(t)
	require.NoError(t, s.CreateTicket(ctx, tk))

	got, err := s.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.Version)

	grids := got.GetGrids()
	grids[0].Marked[0][0] = true
	require.NoError(t, s.UpdateTicketGrids(ctx, tk.ID, 0, grids))

	// A second writer that read version 0 must be told to retry.
	err = s.UpdateTicketGrids(ctx, tk.ID, 0, grids)
	require.ErrorIs(t, err, ErrVersionConflict)

	got, err = s.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Version)
	require.True(t, got.GetGrids()[0].Marked[0][0])

	err = s.UpdateTicketGrids(ctx, "missing", 0, grids)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteRoomCascades(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	room := &models.Room{Code: "AAAAAA", HostID: "p-1", Status: models.RoomWaiting}
	room.SetSettings(models.Settings{}.Normalize())
	require.NoError(t, s.CreateRoom(ctx, room))
	require.NoError(t, s.CreatePlayer(ctx, &models.Player{ID: "p-1", RoomCode: "AAAAAA", IsHost: true}))
	require.NoError(t, s.CreateTicket(ctx, newTicket(t)))
	require.NoError(t, s.CreateSession(ctx, &models.Session{ID: "s-1", RoomCode: "AAAAAA", StartedAt: time.Now()}))

	require.NoError(t, s.DeleteRoom(ctx, "AAAAAA"))

	_, err := s.GetRoom(ctx, "AAAAAA")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetPlayer(ctx, "p-1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTicket(ctx, "tk-1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.ActiveSession(ctx, "AAAAAA")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SessionVersioning(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateSession(ctx, &models.Session{ID: "s-1", RoomCode: "AAAAAA", StartedAt: time.Now()}))

	a, err := s.ActiveSession(ctx, "AAAAAA")
	require.NoError(t, err)
	b, err := s.ActiveSession(ctx, "AAAAAA")
	require.NoError(t, err)

	a.AppendCall(models.Call{Number: 7, At: time.Now()})
	require.NoError(t, s.SaveSession(ctx, a))
	require.Equal(t, 1, a.Version)

	// The second writer read version 0; its whole-row save must not clobber
	// the appended call.
	b.SetWinner(&models.Winner{PlayerID: "p-1", TicketID: "tk-1"})
	require.ErrorIs(t, s.SaveSession(ctx, b), ErrVersionConflict)

	fresh, err := s.ActiveSession(ctx, "AAAAAA")
	require.NoError(t, err)
	require.Len(t, fresh.GetCalls(), 1)
	fresh.SetWinner(&models.Winner{PlayerID: "p-1", TicketID: "tk-1"})
	require.NoError(t, s.SaveSession(ctx, fresh))

	got, err := s.ActiveSession(ctx, "AAAAAA")
	require.NoError(t, err)
	require.Len(t, got.GetCalls(), 1)
	require.NotNil(t, got.GetWinner())

	require.ErrorIs(t, s.SaveSession(ctx, &models.Session{ID: "missing"}), ErrNotFound)
}

func TestMemoryStore_ActiveSessionIgnoresEnded(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ended := time.Now()
	first := &models.Session{ID: "s-1", RoomCode: "AAAAAA", StartedAt: ended.Add(-time.Hour), EndedAt: &ended}
	second := &models.Session{ID: "s-2", RoomCode: "AAAAAA", StartedAt: ended}
	require.NoError(t, s.CreateSession(ctx, first))
	require.NoError(t, s.CreateSession(ctx, second))

	got, err := s.ActiveSession(ctx, "AAAAAA")
	require.NoError(t, err)
	require.Equal(t, "s-2", got.ID)
}
