package audit

import (
	"context"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
)

// Audit actions for room-service.
const (
	ActionCreateRoom = "room.create"
	ActionLeaveRoom  = "room.leave"
	ActionKeepAlive  = "room.keep_alive"
	ActionDeleteRoom = "room.delete"
	ActionReclaim    = "room.reclaim"
)

// Field constants for audit entries.
const (
	FieldAction  = "action"
	FieldMembers = "members"
)

// Log emits a structured audit log entry via the context logger. userID is
// zero for actions not taken on behalf of a user.
func Log(ctx context.Context, action string, userID int64, roomID string, msg string) {
	l := log.Ctx(ctx)
	evt := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID)
	if userID > 0 {
		evt = evt.Int64(log.FieldUserID, userID)
	}
	evt.Msg(msg)
}

// LogMembers emits an audit log entry that also records room membership.
func LogMembers(ctx context.Context, action string, roomID string, members []int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID).
		Ints64(FieldMembers, members).
		Msg(msg)
}
