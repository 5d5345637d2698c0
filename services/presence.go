package services

import (
	"context"
	"time"

	"github.com/quangdao0809/ganh-hat-loto/utils/logger"
)

// Disconnects do not remove players immediately: a grace timer runs first,
// and a rejoin inside the window cancels it, keeping the same playerId and
// tickets. Only when the window expires is the player really gone; for the
// host, expiry closes the whole room.

// Attach binds a live connection to a player, replacing any previous one
// and cancelling a pending grace removal.
func (r *Room) Attach(ctx context.Context, playerID string, c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	p, err := r.st.GetPlayer(ctx, playerID)
	if err != nil || p.RoomCode != r.code {
		return ErrPlayerNotFound
	}

	r.cancelGraceLocked(playerID)
	if old, ok := r.clients[playerID]; ok && old != c {
		old.Close()
	}
	r.clients[playerID] = c

	if !p.Connected {
		p.Connected = true
		if err := r.st.SavePlayer(ctx, p); err != nil {
			return err
		}
		r.broadcastRosterLocked(ctx)
	}
	return nil
}

// Detach drops the connection and arms the grace timer. A newer connection
// for the same player leaves the roster untouched.
func (r *Room) Detach(ctx context.Context, playerID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if current, ok := r.clients[playerID]; !ok || current != c {
		return
	}
	delete(r.clients, playerID)

	p, err := r.st.GetPlayer(ctx, playerID)
	if err != nil || p.RoomCode != r.code {
		return
	}
	p.Connected = false
	if err := r.st.SavePlayer(ctx, p); err != nil {
		logger.Errorf("[Room %s] save disconnect for %s: %v", r.code, playerID, err)
	}

	grace := r.reg.grace
	logger.Infof("[Room %s] %s disconnected, removal in %s", r.code, p.Nickname, grace)
	r.cancelGraceLocked(playerID)
	r.graceTimers[playerID] = time.AfterFunc(grace, func() {
		r.expireGrace(playerID)
	})
	r.broadcastRosterLocked(ctx)
}

func (r *Room) cancelGraceLocked(playerID string) {
	if timer, ok := r.graceTimers[playerID]; ok {
		timer.Stop()
		delete(r.graceTimers, playerID)
	}
}

// expireGrace fires when the window elapses with no rejoin.
func (r *Room) expireGrace(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if _, pending := r.graceTimers[playerID]; !pending {
		// Rejoined (or removed) while the callback was queued.
		return
	}
	delete(r.graceTimers, playerID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := r.st.GetPlayer(ctx, playerID)
	if err != nil || p.RoomCode != r.code || p.Connected {
		return
	}

	room, err := r.loadRoom(ctx)
	if err != nil {
		return
	}
	if room.HostID == playerID {
		logger.Infof("[Room %s] host never returned, closing room", r.code)
		r.closeLocked(ctx, "host disconnected")
		return
	}
	logger.Infof("[Room %s] removing %s after grace period", r.code, p.Nickname)
	if err := r.removePlayerLocked(ctx, playerID); err != nil {
		logger.Errorf("[Room %s] grace removal of %s: %v", r.code, playerID, err)
	}
}

// connectedCount is used by tests to observe live attachments.
func (r *Room) connectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
