package services

import (
	"context"
	"errors"
	"time"

	"github.com/quangdao0809/ganh-hat-loto/utils/logger"
)

// errWinnerDeclared ends the auto-call loop when the persisted session
// already carries a winner.
var errWinnerDeclared = errors.New("winner already declared")

// Auto-call: one timer loop per room, alive only while the room is playing
// and settings.autoCall is on. The cancel channel mirrors the draw loop's
// stop signal; closing it is how a winner, a reset or a room close kills the
// loop before its next tick.

// startAutoCallLocked starts the auto-call loop, replacing any loop already
// running so at most one timer exists per room. Caller holds r.mu.
func (r *Room) startAutoCallLocked(interval time.Duration) {
	r.stopAutoCallLocked()
	cancel := make(chan struct{})
	r.callCancel = cancel
	logger.Infof("[Room %s] auto-call every %s", r.code, interval)
	go r.autoCallLoop(interval, cancel)
}

// stopAutoCallLocked stops the loop if one is running. Caller holds r.mu.
func (r *Room) stopAutoCallLocked() {
	if r.callCancel != nil {
		close(r.callCancel)
		r.callCancel = nil
	}
}

// StopAutoCall stops the room's auto-call loop, if any.
func (r *Room) StopAutoCall() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopAutoCallLocked()
}

func (r *Room) autoCallLoop(interval time.Duration, cancel chan struct{}) {
	for {
		select {
		case <-cancel:
			return
		case <-time.After(interval):
		}

		if err := r.autoSpin(cancel); err != nil {
			// Pool exhausted or the store is unhappy; either way this
			// room's loop ends without touching any other room.
			logger.Infof("[Room %s] auto-call stopped: %v", r.code, err)
			r.mu.Lock()
			if r.callCancel == cancel {
				r.callCancel = nil
			}
			r.mu.Unlock()
			return
		}
	}
}

// autoSpin performs one scheduled draw unless the loop was cancelled while
// waiting for the lock.
func (r *Room) autoSpin(cancel chan struct{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-cancel:
		// A winner or reset beat this tick; do not draw a stale number.
		return nil
	default:
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCtx()

	room, err := r.loadRoom(ctx)
	if err != nil {
		return err
	}
	// A winning callRow may have been validated on another instance, whose
	// stop signal never reaches this handle; the shared session row is the
	// one signal every instance sees.
	if sess, err := r.st.ActiveSession(ctx, r.code); err == nil && sess.GetWinner() != nil {
		return errWinnerDeclared
	}
	_, err = r.spinLocked(ctx, room)
	return err
}
