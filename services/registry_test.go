package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quangdao0809/ganh-hat-loto/models"
	"github.com/quangdao0809/ganh-hat-loto/store"
)

// hostFailStore accepts the room row but refuses the host player, keeping
// track of the allocated code so the test can check for leftovers.
type hostFailStore struct {
	*store.MemoryStore
	lastRoom string
}

func (s *hostFailStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := s.MemoryStore.CreateRoom(ctx, room); err != nil {
		return err
	}
	s.lastRoom = room.Code
	return nil
}

func (s *hostFailStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	return errors.New("players table unavailable")
}

func TestCreate_FailedHostRollsBackRoom(t *testing.T) {
	ctx := context.Background()
	st := &hostFailStore{MemoryStore: store.NewMemoryStore()}
	reg := NewRegistry(st, NewLocalBus(), time.Minute)
	t.Cleanup(reg.Shutdown)

	_, _, err := reg.Create(ctx, "host", models.Settings{})
	require.Error(t, err)

	// The room row must not survive without its host.
	require.NotEmpty(t, st.lastRoom)
	_, err = st.GetRoom(ctx, st.lastRoom)
	require.ErrorIs(t, err, store.ErrNotFound)
}
