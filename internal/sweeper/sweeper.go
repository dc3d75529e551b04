package sweeper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/audit"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/events"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/metrics"
	pkglog "github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
)

const (
	DefaultInterval           = 30 * time.Second
	DefaultPublishConcurrency = 8
)

// Store is the subset of the room repository the sweeper needs.
type Store interface {
	FindExpired(ctx context.Context, now time.Time) ([]domain.Room, error)
	DeleteMany(ctx context.Context, roomIDs []string) (bool, error)
}

// Config tunes the sweeper.
type Config struct {
	Interval           time.Duration
	PublishConcurrency int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Result summarises one sweep cycle.
type Result struct {
	Expired         int
	Deleted         bool
	PublishFailures int
}

// Sweeper periodically deletes expired rooms and announces each deletion.
// It never stops on a failed cycle; the next cycle retries.
type Sweeper struct {
	store       Store
	publisher   events.Publisher
	interval    time.Duration
	concurrency int
	now         func() time.Time
	quit        chan struct{}
	doneCh      chan struct{}
}

// New creates a new Sweeper.
func New(store Store, publisher events.Publisher, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PublishConcurrency <= 0 {
		cfg.PublishConcurrency = DefaultPublishConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Sweeper{
		store:       store,
		publisher:   publisher,
		interval:    cfg.Interval,
		concurrency: cfg.PublishConcurrency,
		now:         cfg.Clock,
		quit:        make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the sweep loop in a background goroutine. The first cycle
// runs immediately.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop signals the sweeper to stop and returns immediately.
// Call Done() to wait for it to exit.
func (s *Sweeper) Stop() {
	close(s.quit)
}

// Done returns a channel that is closed when the sweeper has fully stopped.
func (s *Sweeper) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			_, _ = s.RunOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// RunOnce performs a single sweep: find expired rooms, delete them, then
// publish one deleted event per room found. Events are built from the rooms
// as read before deletion, so a room raced by another sweeper instance may
// be announced twice.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	l := pkglog.Ctx(ctx).With().Str(pkglog.FieldComponent, "sweeper").Logger()
	ctx = pkglog.WithLogger(ctx, l)

	var res Result

	rooms, err := s.store.FindExpired(ctx, s.now())
	if err != nil {
		l.Error().Err(err).Msg("sweeper: failed to find expired rooms")
		metrics.SweepCycle(0, err)
		return res, fmt.Errorf("find expired rooms: %w", err)
	}
	res.Expired = len(rooms)
	if len(rooms) == 0 {
		l.Debug().Msg("sweeper: no expired rooms")
		metrics.SweepCycle(0, nil)
		return res, nil
	}

	ids := make([]string, len(rooms))
	for i := range rooms {
		ids[i] = rooms[i].ID
	}

	deleted, err := s.store.DeleteMany(ctx, ids)
	if err != nil {
		l.Error().Err(err).Int("count", len(ids)).Msg("sweeper: failed to delete expired rooms")
		metrics.SweepCycle(0, err)
		return res, fmt.Errorf("delete expired rooms: %w", err)
	}
	res.Deleted = deleted

	res.PublishFailures = s.announce(ctx, rooms)

	l.Info().
		Int("expired", res.Expired).
		Bool("deleted", res.Deleted).
		Int("publish_failures", res.PublishFailures).
		Msg("sweeper: cycle complete")
	metrics.SweepCycle(res.Expired, nil)
	return res, nil
}

// announce publishes a deleted event for every room with bounded
// concurrency and returns the number of failed publishes. The rows are
// already gone, so publishing ignores cancellation of ctx; each publish is
// still bounded by the publisher's own timeout.
func (s *Sweeper) announce(ctx context.Context, rooms []domain.Room) int {
	l := pkglog.Ctx(ctx)
	pubCtx := context.WithoutCancel(ctx)
	var failures atomic.Int32

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range rooms {
		room := &rooms[i]
		g.Go(func() error {
			audit.LogMembers(pubCtx, audit.ActionReclaim, room.ID, room.MemberIDs, "expired room reclaimed")
			if err := s.publisher.Publish(pubCtx, domain.NewRoomEvent(domain.EventDeleted, room)); err != nil {
				failures.Add(1)
				l.Error().Err(err).Str(pkglog.FieldRoomID, room.ID).Msg("sweeper: failed to publish deleted event")
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(failures.Load())
}
