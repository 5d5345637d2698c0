package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quangdao0809/ganh-hat-loto/models"
)

func TestReconnect_WithinGraceKeepsIdentityAndTickets(t *testing.T) {
	e := newTestEngine(t, 500*time.Millisecond)
	room, _ := e.createRoom(t, models.Settings{})
	ctx := context.Background()

	_, p, err := room.Join(ctx, "flaky")
	require.NoError(t, err)
	tickets, err := room.CreateTickets(ctx, p.ID, 2)
	require.NoError(t, err)

	c1 := fakeClient()
	require.NoError(t, room.Attach(ctx, p.ID, c1))
	require.Equal(t, 1, room.connectedCount())

	room.Detach(ctx, p.ID, c1)
	require.Equal(t, 0, room.connectedCount())

	// Rejoin well inside the window.
	view, err := room.Rejoin(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, view.Player.ID)
	require.Len(t, view.Tickets, len(tickets))

	// The pending removal was cancelled: the player survives past the
	// original deadline.
	time.Sleep(700 * time.Millisecond)
	got, err := e.st.GetPlayer(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "flaky", got.Nickname)
}

func TestReconnect_AfterGraceIsNotFound(t *testing.T) {
	e := newTestEngine(t, 100*time.Millisecond)
	room, _ := e.createRoom(t, models.Settings{})
	ctx := context.Background()

	_, p, err := room.Join(ctx, "gone")
	require.NoError(t, err)

	c1 := fakeClient()
	require.NoError(t, room.Attach(ctx, p.ID, c1))
	room.Detach(ctx, p.ID, c1)

	require.Eventually(t, func() bool {
		_, err := e.st.GetPlayer(ctx, p.ID)
		return err != nil
	}, time.Second, 20*time.Millisecond, "player should be removed after the grace period")

	_, err = room.Rejoin(ctx, p.ID)
	require.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestReconnect_RejoinRestoresSessionView(t *testing.T) {
	e := newTestEngine(t, time.Minute)
	room, host := e.createRoom(t, models.Settings{})
	ctx := context.Background()

	_, p, err := room.Join(ctx, "viewer")
	require.NoError(t, err)
	require.NoError(t, room.Start(ctx, host.ID))

	var drawn []int
	for i := 0; i < 5; i++ {
		n, err := room.Spin(ctx, host.ID)
		require.NoError(t, err)
		drawn = append(drawn, n)
	}

	view, err := room.Rejoin(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, drawn, view.CalledNumbers, "called order is draw order")
	require.Equal(t, drawn[len(drawn)-1], view.LastNumber)
	require.Equal(t, models.RoomPlaying, view.Room.Status)
}

func TestHostDisconnect_GraceExpiryClosesRoom(t *testing.T) {
	e := newTestEngine(t, 100*time.Millisecond)
	room, host := e.createRoom(t, models.Settings{})
	ctx := context.Background()

	events, cancel := e.watch(t, room.Code())
	defer cancel()

	c1 := fakeClient()
	require.NoError(t, room.Attach(ctx, host.ID, c1))
	room.Detach(ctx, host.ID, c1)

	recvEvent(t, events, EventRoomClosed, time.Second)
	_, err := e.reg.State(ctx, room.Code())
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestAttach_ReplacesStaleConnection(t *testing.T) {
	e := newTestEngine(t, time.Minute)
	room, host := e.createRoom(t, models.Settings{})
	ctx := context.Background()

	c1 := fakeClient()
	c2 := fakeClient()
	require.NoError(t, room.Attach(ctx, host.ID, c1))
	require.NoError(t, room.Attach(ctx, host.ID, c2))
	require.Equal(t, 1, room.connectedCount())

	// A late detach from the replaced connection must not unseat the
	// live one.
	room.Detach(ctx, host.ID, c1)
	require.Equal(t, 1, room.connectedCount())
}
