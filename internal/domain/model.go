package domain

import (
	"time"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/database"
)

// RoomModel is the GORM model for rooms table. Expiry is stored as unix
// milliseconds so range comparisons behave identically on every driver.
type RoomModel struct {
	ID               string            `gorm:"type:varchar(64);primaryKey"`
	MemberIDs        database.Int64Set `gorm:"type:text;not null"`
	QuestionID       string            `gorm:"type:varchar(255);not null"`
	QuestionLangSlug string            `gorm:"type:varchar(255);not null;default:''"`
	ExpireAtMillis   int64             `gorm:"index;not null"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:               m.ID,
		MemberIDs:        []int64(m.MemberIDs),
		QuestionID:       m.QuestionID,
		QuestionLangSlug: m.QuestionLangSlug,
		ExpireAt:         time.UnixMilli(m.ExpireAtMillis).UTC(),
	}
}

// RoomToModel converts domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:               r.ID,
		MemberIDs:        database.Int64Set(r.MemberIDs),
		QuestionID:       r.QuestionID,
		QuestionLangSlug: r.QuestionLangSlug,
		ExpireAtMillis:   r.ExpireAt.UnixMilli(),
	}
}
