package repository

import (
	"context"
	"errors"
	"time"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrDuplicateRoomID = errors.New("room id already exists")
)

// RoomRepository defines the atomic operations the room lifecycle needs
// from persistent storage. Every method is a single statement against the
// store; none of them read and then write.
type RoomRepository interface {
	FindByID(ctx context.Context, roomID string) (*domain.Room, error)
	FindByMember(ctx context.Context, userID int64) (*domain.Room, error)
	FindExpired(ctx context.Context, now time.Time) ([]domain.Room, error)
	Insert(ctx context.Context, room *domain.Room) error
	IsMemberOfAnyRoom(ctx context.Context, userIDs []int64) (bool, error)
	UpdateExpiry(ctx context.Context, userID int64, expireAt time.Time) (bool, error)
	RemoveMember(ctx context.Context, userID int64) (bool, error)
	DeleteByID(ctx context.Context, roomID string) (bool, error)
	DeleteMany(ctx context.Context, roomIDs []string) (bool, error)
}
