package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quangdao0809/ganh-hat-loto/loto"
	"github.com/quangdao0809/ganh-hat-loto/models"
	"github.com/quangdao0809/ganh-hat-loto/store"
)

func startAutoCall(r *Room, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startAutoCallLocked(interval)
}

func callCount(t *testing.T, e *testEngine, code string) int {
	t.Helper()
	sess, err := e.st.ActiveSession(context.Background(), code)
	require.NoError(t, err)
	return len(sess.GetCalls())
}

func TestAutoCall_DrawsOnInterval(t *testing.T) {
	e := newTestEngine(t, time.Minute)
	room, host := e.createRoom(t, models.Settings{})
	ctx := context.Background()

	require.NoError(t, room.Start(ctx, host.ID))
	startAutoCall(room, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return callCount(t, e, room.Code()) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	room.StopAutoCall()
	settled := callCount(t, e, room.Code())
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, settled, callCount(t, e, room.Code()), "no ticks after stop")
}

func TestAutoCall_StartIsIdempotent(t *testing.T) {
	e := newTestEngine(t, time.Minute)
	room, host := e.createRoom(t, models.Settings{})
	ctx := context.Background()

	require.NoError(t, room.Start(ctx, host.ID))
	// Restarting replaces the running loop instead of stacking a second
	// timer on the same room.
	startAutoCall(room, 20*time.Millisecond)
	startAutoCall(room, 20*time.Millisecond)
	startAutoCall(room, 20*time.Millisecond)

	time.Sleep(210 * time.Millisecond)
	room.StopAutoCall()

	// A stacked timer would draw roughly a multiple of one loop's rate.
	require.LessOrEqual(t, callCount(t, e, room.Code()), 14)
}

func TestAutoCall_StopsOnReset(t *testing.T) {
	e := newTestEngine(t, time.Minute)
	room, host := e.createRoom(t, models.Settings{})
	ctx := context.Background()

	require.NoError(t, room.Start(ctx, host.ID))
	startAutoCall(room, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return callCount(t, e, room.Code()) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, room.Reset(ctx, host.ID))

	// The ended session never grows again.
	time.Sleep(100 * time.Millisecond)
	room.mu.Lock()
	running := room.callCancel != nil
	room.mu.Unlock()
	require.False(t, running)
}

func TestAutoCall_StopsWhenPoolExhausted(t *testing.T) {
	e := newTestEngine(t, time.Minute)
	room, host := e.createRoom(t, models.Settings{})
	ctx := context.Background()

	require.NoError(t, room.Start(ctx, host.ID))
	seed := make([]int, 0, loto.MaxNumber-1)
	for n := 1; n < loto.MaxNumber; n++ {
		seed = append(seed, n)
	}
	seedCalls(t, e.st, room.Code(), seed)

	startAutoCall(room, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		room.mu.Lock()
		defer room.mu.Unlock()
		return room.callCancel == nil
	}, 2*time.Second, 10*time.Millisecond, "loop stops itself once drawing fails")
	require.Equal(t, loto.MaxNumber, callCount(t, e, room.Code()))
}

func TestAutoCall_StopsAfterWinnerOnAnotherInstance(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	bus := NewLocalBus()
	regA := NewRegistry(st, bus, time.Minute)
	regB := NewRegistry(st, bus, time.Minute)
	t.Cleanup(regA.Shutdown)
	t.Cleanup(regB.Shutdown)

	roomA, host, err := regA.Create(ctx, "host", models.Settings{})
	require.NoError(t, err)
	require.NoError(t, roomA.Start(ctx, host.ID))

	// A second registry on the same store and bus stands in for another
	// server instance holding its own handle for the room.
	roomB, err := regB.Room(ctx, roomA.Code())
	require.NoError(t, err)
	_, p, err := roomB.Join(ctx, "caller")
	require.NoError(t, err)
	tickets, err := roomB.CreateTickets(ctx, p.ID, 1)
	require.NoError(t, err)
	tk := tickets[0]
	seedCalls(t, st, roomA.Code(), tk.GetGrids()[0].RowNumbers(0))

	startAutoCall(roomA, 20*time.Millisecond)

	res, err := roomB.CallRow(ctx, p.ID, tk.ID, 0, 0)
	require.NoError(t, err)
	require.True(t, res.IsWinner)

	// The winning call ran on instance B, so its stop signal never touched
	// instance A's timer; A's loop must notice the persisted winner itself.
	require.Eventually(t, func() bool {
		roomA.mu.Lock()
		defer roomA.mu.Unlock()
		return roomA.callCancel == nil
	}, 2*time.Second, 10*time.Millisecond)

	sess, err := st.ActiveSession(ctx, roomA.Code())
	require.NoError(t, err)
	settled := len(sess.GetCalls())
	time.Sleep(100 * time.Millisecond)
	sess, err = st.ActiveSession(ctx, roomA.Code())
	require.NoError(t, err)
	require.Equal(t, settled, len(sess.GetCalls()), "no draws after the winner was declared")
}

func TestAutoCheck_MarksAndAnnouncesWinner(t *testing.T) {
	e := newTestEngine(t, time.Minute)
	room, host := e.createRoom(t, models.Settings{CheckMode: models.CheckAuto})
	ctx := context.Background()

	_, p, err := room.Join(ctx, "lucky")
	require.NoError(t, err)
	tickets, err := room.CreateTickets(ctx, p.ID, 1)
	require.NoError(t, err)
	tk := tickets[0]

	require.NoError(t, room.Start(ctx, host.ID))

	events, cancel := e.watch(t, room.Code())
	defer cancel()

	// Draw until the pool runs dry; with a full ticket in play some row
	// must complete along the way.
	for {
		if _, err := room.Spin(ctx, host.ID); err != nil {
			require.ErrorIs(t, err, ErrExhausted)
			break
		}
	}

	ev := recvEvent(t, events, EventWinner, 2*time.Second)
	require.Equal(t, p.ID, ev.Winner.PlayerID)
	require.Equal(t, tk.ID, ev.Winner.TicketID)

	sess, err := e.st.ActiveSession(ctx, room.Code())
	require.NoError(t, err)
	w := sess.GetWinner()
	require.NotNil(t, w)
	require.Equal(t, tk.ID, w.TicketID)

	// Auto-mark kept the ticket in sync with the called numbers.
	got, err := e.st.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	called := sess.CalledSet()
	for _, g := range got.GetGrids() {
		for r := 0; r < loto.GridRows; r++ {
			for c := 0; c < loto.GridCols; c++ {
				if n := g.Cells[r][c]; n != 0 && called[n] {
					require.True(t, g.Marked[r][c], "called number %d left unmarked", n)
				}
			}
		}
	}
}
