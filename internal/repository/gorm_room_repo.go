package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/database"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormRoomRepository creates a new GORM-based room repository. Each call
// is bounded by timeout when it is positive.
func NewGormRoomRepository(db *gorm.DB, timeout time.Duration) *GormRoomRepository {
	return &GormRoomRepository{db: db, timeout: timeout}
}

func (r *GormRoomRepository) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if r.timeout <= 0 {
		return r.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

// FindByID retrieves a room by ID.
func (r *GormRoomRepository) FindByID(ctx context.Context, roomID string) (*domain.Room, error) {
	l := log.Ctx(ctx)
	db, cancel := r.session(ctx)
	defer cancel()

	var models []domain.RoomModel
	if err := db.Where("id = ?", roomID).Limit(1).Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to get room by id")
		return nil, fmt.Errorf("find room by id: %w", err)
	}
	if len(models) == 0 {
		return nil, ErrRoomNotFound
	}
	return models[0].ToDomain(), nil
}

// FindByMember retrieves the room userID belongs to. If a user ended up in
// more than one room, the one expiring last is returned.
func (r *GormRoomRepository) FindByMember(ctx context.Context, userID int64) (*domain.Room, error) {
	l := log.Ctx(ctx)
	db, cancel := r.session(ctx)
	defer cancel()

	var models []domain.RoomModel
	err := db.Where("member_ids LIKE ?", database.Int64SetPattern(userID)).
		Order("expire_at_millis DESC").
		Limit(1).
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to get room by member")
		return nil, fmt.Errorf("find room by member: %w", err)
	}
	if len(models) == 0 {
		return nil, ErrRoomNotFound
	}
	return models[0].ToDomain(), nil
}

// FindExpired returns all rooms whose expiry is at or before now.
func (r *GormRoomRepository) FindExpired(ctx context.Context, now time.Time) ([]domain.Room, error) {
	l := log.Ctx(ctx)
	db, cancel := r.session(ctx)
	defer cancel()

	var models []domain.RoomModel
	if err := db.Where("expire_at_millis <= ?", now.UnixMilli()).Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list expired rooms")
		return nil, fmt.Errorf("find expired rooms: %w", err)
	}

	rooms := make([]domain.Room, len(models))
	for i := range models {
		rooms[i] = *models[i].ToDomain()
	}
	return rooms, nil
}

// Insert stores a new room. A collision on the room id yields an error
// wrapping ErrDuplicateRoomID.
func (r *GormRoomRepository) Insert(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)
	db, cancel := r.session(ctx)
	defer cancel()

	if err := db.Create(domain.RoomToModel(room)).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicateRoomID, err)
		}
		l.Error().Err(err).Str(log.FieldRoomID, room.ID).Msg("failed to create room in db")
		return fmt.Errorf("insert room: %w", err)
	}

	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

// IsMemberOfAnyRoom reports whether any of userIDs is currently in a room.
func (r *GormRoomRepository) IsMemberOfAnyRoom(ctx context.Context, userIDs []int64) (bool, error) {
	if len(userIDs) == 0 {
		return false, nil
	}

	l := log.Ctx(ctx)
	db, cancel := r.session(ctx)
	defer cancel()

	conds := make([]string, len(userIDs))
	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		conds[i] = "member_ids LIKE ?"
		args[i] = database.Int64SetPattern(id)
	}

	var ids []string
	err := db.Model(&domain.RoomModel{}).
		Where(strings.Join(conds, " OR "), args...).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		l.Error().Err(err).Msg("failed to check room membership")
		return false, fmt.Errorf("check membership: %w", err)
	}
	return len(ids) > 0, nil
}

// UpdateExpiry sets the expiry of the room containing userID in a single
// conditional update. It returns false if the user is in no room.
func (r *GormRoomRepository) UpdateExpiry(ctx context.Context, userID int64, expireAt time.Time) (bool, error) {
	l := log.Ctx(ctx)
	db, cancel := r.session(ctx)
	defer cancel()

	result := db.Model(&domain.RoomModel{}).
		Where("member_ids LIKE ?", database.Int64SetPattern(userID)).
		Update("expire_at_millis", expireAt.UnixMilli())
	if result.Error != nil {
		l.Error().Err(result.Error).Int64(log.FieldUserID, userID).Msg("failed to update room expiry")
		return false, fmt.Errorf("update expiry: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// RemoveMember drops userID from its room's membership in a single
// conditional update. The room itself is kept even if it becomes empty.
func (r *GormRoomRepository) RemoveMember(ctx context.Context, userID int64) (bool, error) {
	l := log.Ctx(ctx)
	db, cancel := r.session(ctx)
	defer cancel()

	token := database.Int64SetToken(userID)
	result := db.Model(&domain.RoomModel{}).
		Where("member_ids LIKE ?", database.Int64SetPattern(userID)).
		Update("member_ids", gorm.Expr("REPLACE(member_ids, ?, ?)", token, ","))
	if result.Error != nil {
		l.Error().Err(result.Error).Int64(log.FieldUserID, userID).Msg("failed to remove room member")
		return false, fmt.Errorf("remove member: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteByID deletes a room. It returns false if no such room existed.
func (r *GormRoomRepository) DeleteByID(ctx context.Context, roomID string) (bool, error) {
	l := log.Ctx(ctx)
	db, cancel := r.session(ctx)
	defer cancel()

	result := db.Where("id = ?", roomID).Delete(&domain.RoomModel{})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to delete room")
		return false, fmt.Errorf("delete room: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteMany deletes every listed room and reports whether at least one row
// was removed.
func (r *GormRoomRepository) DeleteMany(ctx context.Context, roomIDs []string) (bool, error) {
	if len(roomIDs) == 0 {
		return false, nil
	}

	l := log.Ctx(ctx)
	db, cancel := r.session(ctx)
	defer cancel()

	result := db.Where("id IN ?", roomIDs).Delete(&domain.RoomModel{})
	if result.Error != nil {
		l.Error().Err(result.Error).Int("count", len(roomIDs)).Msg("failed to delete rooms")
		return false, fmt.Errorf("delete rooms: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
