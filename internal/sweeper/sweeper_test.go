package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/repository"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/database"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.RoomEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e *domain.RoomEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Events() []*domain.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.RoomEvent(nil), p.events...)
}

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func setupRepo(t *testing.T) *repository.GormRoomRepository {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     ":memory:",
		MaxOpenConns: 1,
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	return repository.NewGormRoomRepository(db, time.Second)
}

func insert(t *testing.T, repo *repository.GormRoomRepository, id string, expireAt time.Time, members ...int64) {
	t.Helper()
	require.NoError(t, repo.Insert(context.Background(), &domain.Room{
		ID: id, MemberIDs: members, QuestionID: "q1", ExpireAt: expireAt,
	}))
}

func TestRunOnce_ReclaimsExpiredRoom(t *testing.T) {
	repo := setupRepo(t)
	pub := &fakePublisher{}
	ctx := context.Background()

	insert(t, repo, "expired", now.Add(-time.Second), 1, 2)
	insert(t, repo, "live", now.Add(time.Minute), 3)

	// Shrink membership before expiry to check the snapshot is pre-delete.
	_, err := repo.RemoveMember(ctx, 2)
	require.NoError(t, err)

	s := New(repo, pub, Config{Clock: func() time.Time { return now }})
	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Expired: 1, Deleted: true}, res)

	_, err = repo.FindByID(ctx, "expired")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	_, err = repo.FindByID(ctx, "live")
	assert.NoError(t, err)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventDeleted, events[0].EventType)
	assert.Equal(t, "expired", events[0].Room.RoomID)
	assert.Equal(t, []int64{1}, events[0].Room.UserIDs)

	// A second cycle finds nothing and publishes nothing.
	res, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Len(t, pub.Events(), 1)
}

func TestRunOnce_ExpiryBoundaryIsInclusive(t *testing.T) {
	repo := setupRepo(t)
	pub := &fakePublisher{}

	insert(t, repo, "edge", now, 1)

	s := New(repo, pub, Config{Clock: func() time.Time { return now }})
	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Len(t, pub.Events(), 1)
}

func TestRunOnce_ManyRooms(t *testing.T) {
	repo := setupRepo(t)
	pub := &fakePublisher{}

	for i := int64(1); i <= 20; i++ {
		insert(t, repo, fmt.Sprintf("room-%d", i), now.Add(-time.Duration(i)*time.Second), i)
	}

	s := New(repo, pub, Config{Clock: func() time.Time { return now }, PublishConcurrency: 3})
	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, res.Expired)

	seen := make(map[string]int)
	for _, e := range pub.Events() {
		seen[e.Room.RoomID]++
	}
	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestRunOnce_PublishFailureStillDeletes(t *testing.T) {
	repo := setupRepo(t)
	pub := &fakePublisher{err: errors.New("broker down")}
	ctx := context.Background()

	insert(t, repo, "expired", now.Add(-time.Second), 1)

	s := New(repo, pub, Config{Clock: func() time.Time { return now }})
	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PublishFailures)

	_, err = repo.FindByID(ctx, "expired")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

type brokenStore struct {
	findErr   error
	deleteErr error
	rooms     []domain.Room
}

func (s *brokenStore) FindExpired(context.Context, time.Time) ([]domain.Room, error) {
	return s.rooms, s.findErr
}

func (s *brokenStore) DeleteMany(context.Context, []string) (bool, error) {
	return false, s.deleteErr
}

func TestRunOnce_StoreFaults(t *testing.T) {
	t.Run("find fails", func(t *testing.T) {
		pub := &fakePublisher{}
		s := New(&brokenStore{findErr: errors.New("timeout")}, pub, Config{})
		_, err := s.RunOnce(context.Background())
		assert.Error(t, err)
		assert.Empty(t, pub.Events())
	})

	t.Run("delete fails", func(t *testing.T) {
		pub := &fakePublisher{}
		store := &brokenStore{
			deleteErr: errors.New("timeout"),
			rooms:     []domain.Room{{ID: "r1", MemberIDs: []int64{1}}},
		}
		s := New(store, pub, Config{})
		_, err := s.RunOnce(context.Background())
		assert.Error(t, err)
		assert.Empty(t, pub.Events())
	})

	t.Run("delete reports nothing removed", func(t *testing.T) {
		pub := &fakePublisher{}
		store := &brokenStore{rooms: []domain.Room{{ID: "r1", MemberIDs: []int64{1}}}}
		s := New(store, pub, Config{})
		res, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.False(t, res.Deleted)
		assert.Len(t, pub.Events(), 1)
	})
}

type countingStore struct {
	brokenStore
	mu    sync.Mutex
	calls int
}

func (s *countingStore) FindExpired(ctx context.Context, now time.Time) ([]domain.Room, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.brokenStore.FindExpired(ctx, now)
}

func (s *countingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestStartStop_KeepsRunningAfterFaults(t *testing.T) {
	store := &countingStore{brokenStore: brokenStore{findErr: errors.New("db down")}}
	s := New(store, &fakePublisher{}, Config{Interval: 5 * time.Millisecond})

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return store.Calls() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	s := New(&brokenStore{}, &fakePublisher{}, Config{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

// cancelAfterDelete cancels the cycle context as soon as the delete commits.
type cancelAfterDelete struct {
	*repository.GormRoomRepository
	cancel context.CancelFunc
}

func (s *cancelAfterDelete) DeleteMany(ctx context.Context, ids []string) (bool, error) {
	ok, err := s.GormRoomRepository.DeleteMany(ctx, ids)
	s.cancel()
	return ok, err
}

// ctxPublisher fails like a real broker client once ctx is done.
type ctxPublisher struct {
	fakePublisher
}

func (p *ctxPublisher) Publish(ctx context.Context, e *domain.RoomEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.fakePublisher.Publish(ctx, e)
}

func TestRunOnce_AnnouncesDeletedRoomsAfterCancel(t *testing.T) {
	repo := setupRepo(t)
	insert(t, repo, "expired-1", now.Add(-time.Second), 1)
	insert(t, repo, "expired-2", now.Add(-time.Second), 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := &ctxPublisher{}
	s := New(&cancelAfterDelete{GormRoomRepository: repo, cancel: cancel}, pub, Config{
		Clock: func() time.Time { return now },
	})

	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Zero(t, res.PublishFailures)

	_, err = repo.FindByID(context.Background(), "expired-1")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	ids := make([]string, 0, 2)
	for _, e := range pub.Events() {
		assert.Equal(t, domain.EventDeleted, e.EventType)
		ids = append(ids, e.Room.RoomID)
	}
	assert.ElementsMatch(t, []string{"expired-1", "expired-2"}, ids)
}
