package services

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/quangdao0809/ganh-hat-loto/utils/logger"
)

// Bus fans room events out to every server instance holding connections for
// that room. Publish order per room is delivery order; the per-room lock
// makes each room a single publisher, so no extra sequencing is needed.
type Bus interface {
	Publish(ctx context.Context, roomCode string, payload []byte) error
	// Subscribe returns a channel of payloads for the room and a cancel
	// func that releases the subscription and closes the channel.
	Subscribe(roomCode string) (<-chan []byte, func())
}

const busChannelPrefix = "loto:events:"

// redisBus carries events over Redis pub/sub so rooms work across a
// horizontally scaled fleet.
type redisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) Bus {
	return &redisBus{rdb: rdb}
}

func (b *redisBus) Publish(ctx context.Context, roomCode string, payload []byte) error {
	return b.rdb.Publish(ctx, busChannelPrefix+roomCode, payload).Err()
}

func (b *redisBus) Subscribe(roomCode string) (<-chan []byte, func()) {
	ps := b.rdb.Subscribe(context.Background(), busChannelPrefix+roomCode)
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- []byte(msg.Payload):
			default:
				logger.Errorf("[Bus] dropping event for room %s: subscriber too slow", roomCode)
			}
		}
	}()
	cancel := func() {
		if err := ps.Close(); err != nil {
			logger.Errorf("[Bus] closing subscription for room %s: %v", roomCode, err)
		}
	}
	return out, cancel
}

// LocalBus is an in-process Bus for single-instance runs and tests.
type LocalBus struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan []byte
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[int]chan []byte)}
}

func (b *LocalBus) Publish(_ context.Context, roomCode string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[roomCode] {
		select {
		case ch <- payload:
		default:
			logger.Errorf("[Bus] dropping event for room %s: subscriber too slow", roomCode)
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(roomCode string) (<-chan []byte, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	if b.subs[roomCode] == nil {
		b.subs[roomCode] = make(map[int]chan []byte)
	}
	ch := make(chan []byte, 64)
	b.subs[roomCode][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[roomCode][id]; ok {
			delete(b.subs[roomCode], id)
			if len(b.subs[roomCode]) == 0 {
				delete(b.subs, roomCode)
			}
			close(sub)
		}
	}
	return ch, cancel
}
