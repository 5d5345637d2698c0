package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quangdao0809/ganh-hat-loto/loto"
	"github.com/quangdao0809/ganh-hat-loto/models"
	"github.com/quangdao0809/ganh-hat-loto/store"
	"github.com/quangdao0809/ganh-hat-loto/utils/logger"
)

// markRetries bounds optimistic retries when a cell mark races another
// writer before the conflict surfaces to the caller.
const markRetries = 5

// Room is the single serialization point for one room: every mutation of the
// room's roster, session or tickets goes through r.mu, so events apply one at
// a time in arrival order. Different rooms share nothing and run in parallel.
//
// Authoritative state lives in the store; the struct itself only holds live
// connections, grace timers and the auto-call loop handle.
type Room struct {
	code string
	reg  *Registry
	st   store.Store
	bus  Bus
	rng  *rand.Rand

	mu          sync.Mutex
	clients     map[string]*Client
	graceTimers map[string]*time.Timer
	callCancel  chan struct{}
	unsubscribe func()
	closed      bool
}

// RejoinView is everything a reconnecting player needs to rebuild their
// screen.
type RejoinView struct {
	Room          *RoomState      `json:"room"`
	Player        *models.Player  `json:"player"`
	Tickets       []models.Ticket `json:"tickets"`
	CalledNumbers []int           `json:"calledNumbers"`
	LastNumber    int             `json:"lastNumber"`
}

func newRoom(code string, reg *Registry) *Room {
	r := &Room{
		code:        code,
		reg:         reg,
		st:          reg.st,
		bus:         reg.bus,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		clients:     make(map[string]*Client),
		graceTimers: make(map[string]*time.Timer),
	}
	events, cancel := reg.bus.Subscribe(code)
	r.unsubscribe = cancel
	go r.fanout(events)
	return r
}

// Code returns the room's join code.
func (r *Room) Code() string { return r.code }

// fanout delivers bus events to the local websocket clients. A single
// goroutine per room keeps delivery order equal to publish order.
func (r *Room) fanout(events <-chan []byte) {
	for payload := range events {
		r.mu.Lock()
		clients := make([]*Client, 0, len(r.clients))
		for _, c := range r.clients {
			clients = append(clients, c)
		}
		r.mu.Unlock()
		for _, c := range clients {
			c.Send(payload)
		}
	}
}

func (r *Room) publish(ctx context.Context, e Event) {
	if err := r.bus.Publish(ctx, r.code, e.encode()); err != nil {
		logger.Errorf("[Room %s] publish %s: %v", r.code, e.Type, err)
	}
}

func (r *Room) loadRoom(ctx context.Context) (*models.Room, error) {
	room, err := r.st.GetRoom(ctx, r.code)
	if err == store.ErrNotFound {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// requireHost loads the room and rejects callers that are not its host.
func (r *Room) requireHost(ctx context.Context, playerID string) (*models.Room, error) {
	room, err := r.loadRoom(ctx)
	if err != nil {
		return nil, err
	}
	if room.HostID != playerID {
		return nil, ErrNotAuthorized
	}
	return room, nil
}

func (r *Room) stateLocked(ctx context.Context, room *models.Room) (*RoomState, error) {
	players, err := r.st.ListPlayers(ctx, r.code)
	if err != nil {
		return nil, err
	}
	return &RoomState{
		Code:     room.Code,
		HostID:   room.HostID,
		Status:   room.Status,
		Settings: room.GetSettings(),
		Players:  players,
	}, nil
}

func (r *Room) broadcastRosterLocked(ctx context.Context) {
	room, err := r.loadRoom(ctx)
	if err != nil {
		return
	}
	state, err := r.stateLocked(ctx, room)
	if err != nil {
		return
	}
	r.publish(ctx, Event{Type: EventRoomUpdated, Room: state})
}

// Join adds a player to the room and returns the fresh player record with
// the current room state.
func (r *Room) Join(ctx context.Context, nickname string) (*RoomState, *models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.loadRoom(ctx)
	if err != nil {
		return nil, nil, err
	}
	players, err := r.st.ListPlayers(ctx, r.code)
	if err != nil {
		return nil, nil, err
	}
	if len(players) >= room.GetSettings().MaxPlayers {
		return nil, nil, ErrRoomFull
	}

	p := &models.Player{
		ID:        uuid.NewString(),
		RoomCode:  r.code,
		Nickname:  nickname,
		Connected: true,
		JoinedAt:  time.Now(),
	}
	if err := r.st.CreatePlayer(ctx, p); err != nil {
		return nil, nil, err
	}
	logger.Infof("[Room %s] %s joined (players=%d)", r.code, nickname, len(players)+1)

	state, err := r.stateLocked(ctx, room)
	if err != nil {
		return nil, nil, err
	}
	r.publish(ctx, Event{Type: EventRoomUpdated, Room: state})
	return state, p, nil
}

// Rejoin restores a disconnected player's view. It succeeds only while the
// player record still exists, i.e. within the disconnect grace window.
func (r *Room) Rejoin(ctx context.Context, playerID string) (*RejoinView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.loadRoom(ctx)
	if err != nil {
		return nil, err
	}
	p, err := r.st.GetPlayer(ctx, playerID)
	if err != nil || p.RoomCode != r.code {
		return nil, ErrPlayerNotFound
	}

	r.cancelGraceLocked(playerID)
	p.Connected = true
	if err := r.st.SavePlayer(ctx, p); err != nil {
		return nil, err
	}

	state, err := r.stateLocked(ctx, room)
	if err != nil {
		return nil, err
	}
	tickets, err := r.st.ListPlayerTickets(ctx, playerID)
	if err != nil {
		return nil, err
	}
	view := &RejoinView{Room: state, Player: p, Tickets: tickets, CalledNumbers: []int{}}
	if sess, err := r.st.ActiveSession(ctx, r.code); err == nil {
		view.CalledNumbers = sess.CalledNumbers()
		view.LastNumber = sess.LastNumber()
	}

	logger.Infof("[Room %s] %s rejoined", r.code, p.Nickname)
	r.publish(ctx, Event{Type: EventRoomUpdated, Room: state})
	return view, nil
}

// Leave removes a player for good. The host leaving closes the whole room.
func (r *Room) Leave(ctx context.Context, playerID string) error {
	r.mu.Lock()

	room, err := r.loadRoom(ctx)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if room.HostID == playerID {
		r.closeLocked(ctx, "host left")
		r.mu.Unlock()
		return nil
	}

	err = r.removePlayerLocked(ctx, playerID)
	r.mu.Unlock()
	return err
}

func (r *Room) removePlayerLocked(ctx context.Context, playerID string) error {
	r.cancelGraceLocked(playerID)
	if c, ok := r.clients[playerID]; ok {
		delete(r.clients, playerID)
		c.Close()
	}
	if err := r.st.DeletePlayerTickets(ctx, playerID); err != nil {
		return err
	}
	if err := r.st.DeletePlayer(ctx, playerID); err != nil && err != store.ErrNotFound {
		return err
	}
	r.broadcastRosterLocked(ctx)
	return nil
}

// Start opens a new session and moves the room to playing. Host only.
func (r *Room) Start(ctx context.Context, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.requireHost(ctx, playerID)
	if err != nil {
		return err
	}
	if room.Status == models.RoomPlaying {
		return ErrStateConflict
	}

	sess := &models.Session{
		ID:        uuid.NewString(),
		RoomCode:  r.code,
		StartedAt: time.Now(),
	}
	if err := r.st.CreateSession(ctx, sess); err != nil {
		return err
	}
	room.Status = models.RoomPlaying
	if err := r.st.SaveRoom(ctx, room); err != nil {
		return err
	}

	state, err := r.stateLocked(ctx, room)
	if err != nil {
		return err
	}
	logger.Infof("[Room %s] game started, session %s", r.code, sess.ID)
	r.publish(ctx, Event{Type: EventGameStarted, Room: state, SessionID: sess.ID})

	settings := room.GetSettings()
	if settings.AutoCall {
		r.startAutoCallLocked(time.Duration(settings.AutoCallIntervalSec) * time.Second)
	}
	return nil
}

// Spin draws the next number. Host only.
func (r *Room) Spin(ctx context.Context, playerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.requireHost(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return r.spinLocked(ctx, room)
}

// spinLocked performs one draw: append to the session, broadcast, and in
// auto check mode mark matching cells and look for a winner. A version
// conflict means another instance drew first; the whole draw is redone
// against the fresh call list.
func (r *Room) spinLocked(ctx context.Context, room *models.Room) (int, error) {
	if room.Status != models.RoomPlaying {
		return 0, ErrStateConflict
	}
	for attempt := 0; attempt < markRetries; attempt++ {
		sess, err := r.st.ActiveSession(ctx, r.code)
		if err != nil {
			if err == store.ErrNotFound {
				return 0, ErrStateConflict
			}
			return 0, err
		}

		called := sess.CalledSet()
		n, ok := loto.DrawNext(r.rng, called)
		if !ok {
			return 0, ErrExhausted
		}
		sess.AppendCall(models.Call{Number: n, At: time.Now()})
		if err := r.st.SaveSession(ctx, sess); err != nil {
			if err == store.ErrVersionConflict {
				continue
			}
			return 0, err
		}

		logger.Debugf("[Room %s] drew %d (%d called)", r.code, n, len(called)+1)
		r.publish(ctx, Event{Type: EventNumberCalled, Number: n, Called: sess.CalledNumbers()})

		if room.GetSettings().CheckMode == models.CheckAuto {
			r.autoCheckLocked(ctx, sess, n)
		}
		return n, nil
	}
	return 0, ErrStateConflict
}

// recordWinnerLocked persists w as the session winner unless one is already
// recorded, retrying around concurrent session writers. Returns whether w is
// the winner that stuck: the first write wins, every later one is a no-op.
func (r *Room) recordWinnerLocked(ctx context.Context, sess *models.Session, w *models.Winner) (bool, error) {
	for attempt := 0; attempt < markRetries; attempt++ {
		if sess.GetWinner() != nil {
			return false, nil
		}
		sess.SetWinner(w)
		err := r.st.SaveSession(ctx, sess)
		if err == nil {
			return true, nil
		}
		if err != store.ErrVersionConflict {
			return false, err
		}
		fresh, err := r.st.ActiveSession(ctx, r.code)
		if err != nil {
			return false, err
		}
		*sess = *fresh
	}
	return false, ErrStateConflict
}

// autoCheckLocked marks the drawn number on every ticket in the room and
// announces the first winning row it finds. A winner stops the auto-call
// loop; the session itself keeps running until the host resets.
func (r *Room) autoCheckLocked(ctx context.Context, sess *models.Session, drawn int) {
	tickets, err := r.st.ListRoomTickets(ctx, r.code)
	if err != nil {
		logger.Errorf("[Room %s] auto-check list tickets: %v", r.code, err)
		return
	}
	called := sess.CalledSet()

	for i := range tickets {
		t := &tickets[i]
		if err := r.autoMark(ctx, t.ID, drawn); err != nil {
			logger.Errorf("[Room %s] auto-mark ticket %s: %v", r.code, t.ID, err)
		}

		if sess.GetWinner() != nil {
			continue
		}
		res := loto.CheckTicket(t.GetGrids(), called)
		if !res.IsWinner {
			continue
		}
		w := &models.Winner{
			PlayerID:  t.PlayerID,
			TicketID:  t.ID,
			GridIndex: res.GridIndex,
			RowIndex:  res.RowIndex,
		}
		recorded, err := r.recordWinnerLocked(ctx, sess, w)
		if err != nil {
			logger.Errorf("[Room %s] save winner: %v", r.code, err)
			continue
		}
		if !recorded {
			continue
		}
		logger.Infof("[Room %s] winner: player %s ticket %s grid %d row %d",
			r.code, w.PlayerID, w.TicketID, w.GridIndex, w.RowIndex)
		r.publish(ctx, Event{Type: EventWinner, Winner: w, Result: &res})
		r.stopAutoCallLocked()
	}
}

// autoMark sets the marked flag on every cell holding the drawn number,
// using the optimistic version check so it can race a player's manual tap
// on another instance without losing either write.
func (r *Room) autoMark(ctx context.Context, ticketID string, drawn int) error {
	var err error
	for attempt := 0; attempt < markRetries; attempt++ {
		t, getErr := r.st.GetTicket(ctx, ticketID)
		if getErr != nil {
			return getErr
		}
		grids := t.GetGrids()
		changed := false
		for gi := range grids {
			for row := 0; row < loto.GridRows; row++ {
				for col := 0; col < loto.GridCols; col++ {
					if grids[gi].Cells[row][col] == drawn && !grids[gi].Marked[row][col] {
						grids[gi].Marked[row][col] = true
						changed = true
					}
				}
			}
		}
		if !changed {
			return nil
		}
		err = r.st.UpdateTicketGrids(ctx, ticketID, t.Version, grids)
		if err != store.ErrVersionConflict {
			return err
		}
	}
	return err
}

// Reset closes the session, deletes every ticket and returns the room to
// waiting. Host only.
func (r *Room) Reset(ctx context.Context, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.requireHost(ctx, playerID)
	if err != nil {
		return err
	}

	r.stopAutoCallLocked()

	if sess, err := r.st.ActiveSession(ctx, r.code); err == nil {
		if err := r.endSessionLocked(ctx, sess); err != nil {
			return err
		}
	}
	if err := r.st.DeleteRoomTickets(ctx, r.code); err != nil {
		return err
	}
	room.Status = models.RoomWaiting
	if err := r.st.SaveRoom(ctx, room); err != nil {
		return err
	}

	state, err := r.stateLocked(ctx, room)
	if err != nil {
		return err
	}
	logger.Infof("[Room %s] game reset", r.code)
	r.publish(ctx, Event{Type: EventGameReset, Room: state})
	return nil
}

// endSessionLocked stamps EndedAt under the version check. A conflict from a
// concurrent writer is retried on the fresh row; a session already ended on
// another instance counts as done.
func (r *Room) endSessionLocked(ctx context.Context, sess *models.Session) error {
	for attempt := 0; attempt < markRetries; attempt++ {
		now := time.Now()
		sess.EndedAt = &now
		err := r.st.SaveSession(ctx, sess)
		if err == nil {
			return nil
		}
		if err != store.ErrVersionConflict {
			return err
		}
		fresh, err := r.st.ActiveSession(ctx, r.code)
		if err != nil {
			if err == store.ErrNotFound {
				return nil
			}
			return err
		}
		sess = fresh
	}
	return ErrStateConflict
}

// Close tears the room down for good. Host only; the disconnect grace timer
// calls the internal path directly when the host never comes back.
func (r *Room) Close(ctx context.Context, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHost(ctx, playerID); err != nil {
		return err
	}
	r.closeLocked(ctx, "closed by host")
	return nil
}

func (r *Room) closeLocked(ctx context.Context, reason string) {
	if r.closed {
		return
	}
	r.closed = true

	r.stopAutoCallLocked()
	for id, timer := range r.graceTimers {
		timer.Stop()
		delete(r.graceTimers, id)
	}

	r.publish(ctx, Event{Type: EventRoomClosed, Reason: reason})

	if err := r.st.DeleteRoom(ctx, r.code); err != nil && err != store.ErrNotFound {
		logger.Errorf("[Room %s] delete: %v", r.code, err)
	}
	for id, c := range r.clients {
		delete(r.clients, id)
		c.Close()
	}
	if r.unsubscribe != nil {
		// Let the pending close event drain to local clients first.
		unsub := r.unsubscribe
		r.unsubscribe = nil
		time.AfterFunc(time.Second, unsub)
	}
	r.reg.remove(r.code)
	logger.Infof("[Room %s] closed: %s", r.code, reason)
}

// CreateTickets generates up to count new tickets for the player, clamped by
// the room's per-player cap. Only the newly created tickets are returned.
func (r *Room) CreateTickets(ctx context.Context, playerID string, count int) ([]models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.loadRoom(ctx)
	if err != nil {
		return nil, err
	}
	p, err := r.st.GetPlayer(ctx, playerID)
	if err != nil || p.RoomCode != r.code {
		return nil, ErrPlayerNotFound
	}

	owned, err := r.st.ListPlayerTickets(ctx, playerID)
	if err != nil {
		return nil, err
	}
	allowed := room.GetSettings().TicketsPerPlayer - len(owned)
	if allowed <= 0 {
		return nil, ErrTicketCapReached
	}
	if count < 1 {
		count = 1
	}
	if count > allowed {
		count = allowed
	}

	created := make([]models.Ticket, 0, count)
	for i := 0; i < count; i++ {
		grids := loto.GenerateTicketGrids(r.rng, nil)
		if len(grids) == 0 {
			continue
		}
		t := models.Ticket{
			ID:        uuid.NewString(),
			RoomCode:  r.code,
			PlayerID:  playerID,
			CreatedAt: time.Now(),
		}
		t.SetGrids(grids)
		if err := r.st.CreateTicket(ctx, &t); err != nil {
			return nil, err
		}
		created = append(created, t)
	}
	logger.Infof("[Room %s] %s created %d tickets", r.code, p.Nickname, len(created))
	return created, nil
}

// MarkNumber toggles a cell's marked flag. Toggling an empty cell is a
// no-op, and re-marking an already marked cell unmarks it, so the operation
// is always safe to retry. Concurrent writers are handled with the ticket's
// version check.
func (r *Room) MarkNumber(ctx context.Context, playerID, ticketID string, grid, row, col int) (*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < markRetries; attempt++ {
		t, err := r.st.GetTicket(ctx, ticketID)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, ErrTicketNotFound
			}
			return nil, err
		}
		if t.RoomCode != r.code || t.PlayerID != playerID {
			return nil, ErrNotAuthorized
		}

		grids := t.GetGrids()
		if grid < 0 || grid >= len(grids) ||
			row < 0 || row >= loto.GridRows ||
			col < 0 || col >= loto.GridCols ||
			grids[grid].Cells[row][col] == 0 {
			return t, nil
		}
		grids[grid].Marked[row][col] = !grids[grid].Marked[row][col]

		lastErr = r.st.UpdateTicketGrids(ctx, ticketID, t.Version, grids)
		if lastErr == nil {
			t.SetGrids(grids)
			t.Version++
			return t, nil
		}
		if lastErr != store.ErrVersionConflict {
			return nil, lastErr
		}
	}
	// Conflict persisted past the retry bound; tell the caller to try again.
	return nil, ErrStateConflict
}

// CallRow is a player's "kinh" claim on one specific row. Any player may
// call. A winning call records the session winner (first one sticks) and
// stops the auto-call loop, but never ends the session.
func (r *Room) CallRow(ctx context.Context, playerID, ticketID string, grid, row int) (loto.ValidationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero loto.ValidationResult
	room, err := r.loadRoom(ctx)
	if err != nil {
		return zero, err
	}
	if room.Status != models.RoomPlaying {
		return zero, ErrStateConflict
	}
	sess, err := r.st.ActiveSession(ctx, r.code)
	if err != nil {
		return zero, ErrStateConflict
	}
	t, err := r.st.GetTicket(ctx, ticketID)
	if err != nil || t.RoomCode != r.code {
		return zero, ErrTicketNotFound
	}
	p, err := r.st.GetPlayer(ctx, playerID)
	if err != nil || p.RoomCode != r.code {
		return zero, ErrPlayerNotFound
	}

	res := loto.CheckClaimedRow(t.GetGrids(), grid, row, sess.CalledSet())
	r.publish(ctx, Event{
		Type:      EventRowCalled,
		PlayerID:  playerID,
		Nickname:  p.Nickname,
		TicketID:  ticketID,
		GridIndex: &grid,
		RowIndex:  &row,
		Result:    &res,
	})
	logger.Infof("[Room %s] %s called grid %d row %d: winner=%v", r.code, p.Nickname, grid, row, res.IsWinner)

	if res.IsWinner {
		w := &models.Winner{PlayerID: playerID, TicketID: ticketID, GridIndex: grid, RowIndex: row}
		if _, err := r.recordWinnerLocked(ctx, sess, w); err != nil {
			return zero, err
		}
		r.publish(ctx, Event{Type: EventWinner, Winner: w, Result: &res})
		r.stopAutoCallLocked()
	}
	return res, nil
}

// ValidateNumbers is the host's manual check of five numbers read off a
// player's ticket, no ticket record involved.
func (r *Room) ValidateNumbers(ctx context.Context, playerID string, numbers []int) (loto.ValidationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero loto.ValidationResult
	if _, err := r.requireHost(ctx, playerID); err != nil {
		return zero, err
	}
	sess, err := r.st.ActiveSession(ctx, r.code)
	if err != nil {
		return zero, ErrStateConflict
	}
	return loto.CheckNumbers(numbers, sess.CalledSet()), nil
}

// ValidateTicket scans a whole ticket for any winning row. Host only.
func (r *Room) ValidateTicket(ctx context.Context, playerID, ticketID string) (loto.ValidationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero loto.ValidationResult
	if _, err := r.requireHost(ctx, playerID); err != nil {
		return zero, err
	}
	sess, err := r.st.ActiveSession(ctx, r.code)
	if err != nil {
		return zero, ErrStateConflict
	}
	t, err := r.st.GetTicket(ctx, ticketID)
	if err != nil || t.RoomCode != r.code {
		return zero, ErrTicketNotFound
	}
	return loto.CheckTicket(t.GetGrids(), sess.CalledSet()), nil
}
