package service

import (
	"context"
	"time"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
)

// RoomService defines the room lifecycle operations.
type RoomService interface {
	CreateRoom(ctx context.Context, req *domain.CreateRoomRequest) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	GetRoomByMember(ctx context.Context, userID int64) (*domain.Room, error)
	KeepAlive(ctx context.Context, userID int64) (time.Time, error)
	LeaveRoom(ctx context.Context, userID int64) (*domain.Room, error)
	DeleteRoom(ctx context.Context, roomID string) (*domain.Room, error)
}
