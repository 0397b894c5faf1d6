package repositories

import (
	"chat-room/domain"
	apperrors "chat-room/errors"
	"chat-room/internal/clocktest"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestParticipantRepository_Register(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := clocktest.New(epoch)
	repo := NewParticipantRepository(newTestDB(t), slog.Default(), clock)

	// Given Alice registered
	alice, err := repo.Register(ctx, "Alice")
	req.NoError(err)
	req.Equal("Alice", alice.Name)
	req.Equal(epoch, alice.LastHeartbeat)

	// When registering the same name again
	_, err = repo.Register(ctx, "Alice")

	// Then the name is taken
	req.ErrorIs(err, apperrors.ErrConflict)

	// And names are case-sensitive
	_, err = repo.Register(ctx, "alice")
	req.NoError(err)

	participants, err := repo.List(ctx)
	req.NoError(err)
	req.ElementsMatch([]string{"Alice", "alice"}, lo.Map(participants, func(p domain.Participant, _ int) string {
		return p.Name
	}))
}

func TestParticipantRepository_ConcurrentRegisterHasOneWinner(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewParticipantRepository(newTestDB(t), slog.Default(), domain.SystemClock{})

	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Register(ctx, "Alice")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		req.ErrorIs(err, apperrors.ErrConflict)
	}
	req.Equal(1, succeeded)

	participants, err := repo.List(ctx)
	req.NoError(err)
	req.Len(participants, 1)
}

func TestParticipantRepository_Touch(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := clocktest.New(epoch)
	repo := NewParticipantRepository(newTestDB(t), slog.Default(), clock)

	_, err := repo.Touch(ctx, "Alice")
	req.ErrorIs(err, apperrors.ErrNotFound)

	_, err = repo.Register(ctx, "Alice")
	req.NoError(err)

	later := clock.Advance(7 * time.Second)
	touched, err := repo.Touch(ctx, "Alice")
	req.NoError(err)
	req.Equal(later, touched.LastHeartbeat)

	stored, err := repo.Get(ctx, "Alice")
	req.NoError(err)
	req.True(later.Equal(stored.LastHeartbeat))
}

func TestParticipantRepository_EvictStale(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := clocktest.New(epoch)
	repo := NewParticipantRepository(newTestDB(t), slog.Default(), clock)
	threshold := 10 * time.Second

	// Given Alice joined at t0 and Bob at t0+5s
	_, err := repo.Register(ctx, "Alice")
	req.NoError(err)
	clock.Advance(5 * time.Second)
	_, err = repo.Register(ctx, "Bob")
	req.NoError(err)

	// When sweeping at t0+12s
	clock.Advance(7 * time.Second)
	evicted, err := repo.EvictStale(ctx, threshold)

	// Then only Alice is evicted
	req.NoError(err)
	req.Len(evicted, 1)
	req.Equal("Alice", evicted[0].Name)
	_, err = repo.Get(ctx, "Alice")
	req.ErrorIs(err, apperrors.ErrNotFound)

	// And a second sweep at the same instant evicts nobody
	evicted, err = repo.EvictStale(ctx, threshold)
	req.NoError(err)
	req.Empty(evicted)

	// And Bob is kept until he exceeds the threshold
	clock.Advance(3 * time.Second)
	evicted, err = repo.EvictStale(ctx, threshold)
	req.NoError(err)
	req.Empty(evicted)

	clock.Advance(time.Second)
	evicted, err = repo.EvictStale(ctx, threshold)
	req.NoError(err)
	req.Len(evicted, 1)
	req.Equal("Bob", evicted[0].Name)
}

func TestParticipantRepository_HeartbeatRescues(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := clocktest.New(epoch)
	repo := NewParticipantRepository(newTestDB(t), slog.Default(), clock)
	threshold := 10 * time.Second

	_, err := repo.Register(ctx, "Alice")
	req.NoError(err)

	// Given Alice keeps sending heartbeats every 9 seconds
	for i := 0; i < 5; i++ {
		clock.Advance(9 * time.Second)
		_, err = repo.Touch(ctx, "Alice")
		req.NoError(err)

		// Then no sweep ever evicts her
		evicted, err := repo.EvictStale(ctx, threshold)
		req.NoError(err)
		req.Empty(evicted)
	}

	// Until she stops
	clock.Advance(threshold + time.Nanosecond)
	evicted, err := repo.EvictStale(ctx, threshold)
	req.NoError(err)
	req.Len(evicted, 1)
}

func TestParticipantRepository_ConcurrentTouchAndEvict(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := clocktest.New(epoch)
	repo := NewParticipantRepository(newTestDB(t), slog.Default(), clock)
	threshold := 10 * time.Second

	names := []string{"Alice", "Bob", "Clara", "Dan", "Eve"}
	for _, name := range names {
		_, err := repo.Register(ctx, name)
		req.NoError(err)
	}
	clock.Advance(threshold + time.Second)

	// Every participant is stale: each one either gets evicted or rescued by its heartbeat
	var wg sync.WaitGroup
	touched := make(chan string, len(names))
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := repo.Touch(ctx, name); err == nil {
				touched <- name
			}
		}(name)
	}
	evicted, err := repo.EvictStale(ctx, threshold)
	req.NoError(err)
	wg.Wait()
	close(touched)

	remaining, err := repo.List(ctx)
	req.NoError(err)
	remainingNames := lo.Map(remaining, func(p domain.Participant, _ int) string { return p.Name })
	evictedNames := lo.Map(evicted, func(p domain.Participant, _ int) string { return p.Name })

	// No participant is both evicted and present, and nobody disappears silently
	req.Empty(lo.Intersect(remainingNames, evictedNames))
	req.ElementsMatch(names, append(remainingNames, evictedNames...))
	// A participant is still present exactly when its heartbeat got through
	req.ElementsMatch(lo.ChannelToSlice(touched), remainingNames)
}

func TestParticipantRepository_StoreFailures(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	repo := NewParticipantRepository(db, slog.Default(), domain.SystemClock{})

	// Given a cancelled caller
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.Register(ctx, "Alice")
	req.ErrorIs(err, apperrors.ErrStore)

	// Given a closed database
	req.NoError(db.Close())
	_, err = repo.Register(context.Background(), "Alice")
	req.ErrorIs(err, apperrors.ErrStore)
	_, err = repo.EvictStale(context.Background(), time.Second)
	req.ErrorIs(err, apperrors.ErrStore)
}
