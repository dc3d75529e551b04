package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/audit"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/events"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/idgen"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/metrics"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/repository"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
)

const DefaultMaxCreateAttempts = 5

// Options tunes the room service.
type Options struct {
	LeaseLength       time.Duration
	MaxCreateAttempts int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// roomServiceImpl implements RoomService. It holds no room state: every
// call goes to the repository, and cross-request consistency comes from the
// repository's single-statement updates.
type roomServiceImpl struct {
	repo        repository.RoomRepository
	ids         idgen.Generator
	publisher   events.Publisher
	lease       time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewRoomService creates a new room service.
func NewRoomService(repo repository.RoomRepository, ids idgen.Generator, publisher events.Publisher, opts Options) RoomService {
	if opts.MaxCreateAttempts <= 0 {
		opts.MaxCreateAttempts = DefaultMaxCreateAttempts
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &roomServiceImpl{
		repo:        repo,
		ids:         ids,
		publisher:   publisher,
		lease:       opts.LeaseLength,
		maxAttempts: opts.MaxCreateAttempts,
		now:         opts.Clock,
	}
}

// CreateRoom creates a room for the requested users with a fresh id.
//
// The membership check and the insert are separate statements, so two
// concurrent creates naming the same user can both succeed.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, req *domain.CreateRoomRequest) (*domain.Room, error) {
	l := log.Ctx(ctx)

	members, err := validateCreateRequest(req)
	if err != nil {
		return nil, err
	}

	inRoom, err := s.repo.IsMemberOfAnyRoom(ctx, members)
	if err != nil {
		return nil, err
	}
	if inRoom {
		return nil, ErrAlreadyInRoom
	}

	var room *domain.Room
	for attempt := 1; room == nil; attempt++ {
		if attempt > s.maxAttempts {
			l.Error().Int("attempts", s.maxAttempts).Msg("room id collisions exhausted create attempts")
			return nil, ErrIDSpaceExhausted
		}

		id, err := s.ids.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate room id: %w", err)
		}

		candidate := &domain.Room{
			ID:               id,
			MemberIDs:        members,
			QuestionID:       req.QuestionID,
			QuestionLangSlug: req.LangSlug(),
			ExpireAt:         s.now().Add(s.lease).UTC().Truncate(time.Millisecond),
		}

		err = s.repo.Insert(ctx, candidate)
		switch {
		case err == nil:
			room = candidate
		case repository.IsUniqueViolation(err):
			metrics.IDCollision()
			l.Warn().Str(log.FieldRoomID, id).Int("attempt", attempt).Msg("room id collision, retrying")
		default:
			return nil, err
		}
	}

	metrics.RoomCreated()
	audit.LogMembers(ctx, audit.ActionCreateRoom, room.ID, room.MemberIDs, "room created")
	s.publish(ctx, domain.NewRoomEvent(domain.EventCreated, room))

	return room, nil
}

// GetRoom retrieves a room by ID.
func (s *roomServiceImpl) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, NewValidationError(map[string]string{FieldRoomID: "Room ID cannot be empty."})
	}

	room, err := s.repo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

// GetRoomByMember retrieves the room userID belongs to.
func (s *roomServiceImpl) GetRoomByMember(ctx context.Context, userID int64) (*domain.Room, error) {
	room, err := s.repo.FindByMember(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

// KeepAlive pushes the expiry of userID's room to now plus the lease length
// and returns the new expiry. No event is published.
func (s *roomServiceImpl) KeepAlive(ctx context.Context, userID int64) (time.Time, error) {
	expireAt := s.now().Add(s.lease).UTC().Truncate(time.Millisecond)

	ok, err := s.repo.UpdateExpiry(ctx, userID, expireAt)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, ErrRoomNotFound
	}

	audit.Log(ctx, audit.ActionKeepAlive, userID, "", "room expiry extended")
	return expireAt, nil
}

// LeaveRoom removes userID from its room and returns the room as it is
// after the removal. A room left empty is not deleted.
func (s *roomServiceImpl) LeaveRoom(ctx context.Context, userID int64) (*domain.Room, error) {
	room, err := s.GetRoomByMember(ctx, userID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.RemoveMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoomNotFound
	}

	updated := room.WithoutMember(userID)

	audit.Log(ctx, audit.ActionLeaveRoom, userID, room.ID, "user left room")
	s.publish(ctx, domain.NewMemberRemovedEvent(updated, userID))

	return updated, nil
}

// DeleteRoom deletes a room by ID and returns it as it was before deletion.
func (s *roomServiceImpl) DeleteRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.DeleteByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoomNotFound
	}

	audit.LogMembers(ctx, audit.ActionDeleteRoom, room.ID, room.MemberIDs, "room deleted")
	s.publish(ctx, domain.NewRoomEvent(domain.EventDeleted, room))

	return room, nil
}

// publish sends event without letting a failure reach the caller: the
// state change is already committed.
func (s *roomServiceImpl) publish(ctx context.Context, event *domain.RoomEvent) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).
			Str(log.FieldEventType, string(event.EventType)).
			Str(log.FieldRoomID, event.Room.RoomID).
			Msg("failed to publish room event")
	}
}

// validateCreateRequest checks every field and returns the member ids with
// duplicates removed.
func validateCreateRequest(req *domain.CreateRoomRequest) ([]int64, error) {
	if req == nil {
		return nil, NewValidationError(map[string]string{FieldUserIDs: "Body must be a JSON object."})
	}

	fields := make(map[string]string)

	members := make([]int64, 0, len(req.UserIDs))
	seen := make(map[int64]struct{}, len(req.UserIDs))
	for _, id := range req.UserIDs {
		if id <= 0 {
			fields[FieldUserIDs] = "User ID must be a positive integer."
			break
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if _, bad := fields[FieldUserIDs]; !bad && len(members) == 0 {
		fields[FieldUserIDs] = "User IDs cannot be empty."
	}

	if strings.TrimSpace(req.QuestionID) == "" {
		fields[FieldQuestionID] = "Question ID cannot be empty."
	}

	if req.QuestionLangSlug != nil && strings.TrimSpace(*req.QuestionLangSlug) == "" {
		fields[FieldQuestionLangSlug] = "Question language slug cannot be empty."
	}

	if err := NewValidationError(fields); err != nil {
		return nil, err
	}
	return members, nil
}
