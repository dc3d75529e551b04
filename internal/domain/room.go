package domain

import (
	"time"
)

// Room binds a set of users to a shared question until it expires.
// Only MemberIDs and ExpireAt ever change after creation.
type Room struct {
	ID               string
	MemberIDs        []int64
	QuestionID       string
	QuestionLangSlug string
	ExpireAt         time.Time
}

// WithoutMember returns a copy of the room with userID removed from its
// membership.
func (r *Room) WithoutMember(userID int64) *Room {
	members := make([]int64, 0, len(r.MemberIDs))
	for _, id := range r.MemberIDs {
		if id != userID {
			members = append(members, id)
		}
	}
	cp := *r
	cp.MemberIDs = members
	return &cp
}

// CreateRoomRequest represents a create room request. QuestionLangSlug is
// optional but may not be empty when given.
type CreateRoomRequest struct {
	UserIDs          UserIDs `json:"user-ids" binding:"required,min=1,dive,gt=0"`
	QuestionID       string  `json:"question-id" binding:"required"`
	QuestionLangSlug *string `json:"question-lang-slug"`
}

// LangSlug returns the requested language slug or "" when none was given.
func (r *CreateRoomRequest) LangSlug() string {
	if r.QuestionLangSlug == nil {
		return ""
	}
	return *r.QuestionLangSlug
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	RoomID           string    `json:"room-id"`
	UserIDs          []int64   `json:"user-ids"`
	QuestionID       string    `json:"question-id"`
	QuestionLangSlug string    `json:"question-lang-slug"`
	ExpireAt         time.Time `json:"expire-at"`
}

// CreateRoomResponse is returned after a room is created.
type CreateRoomResponse struct {
	RoomID string `json:"room-id"`
}

// KeepAliveResponse is returned after a room's expiry is extended.
type KeepAliveResponse struct {
	ExpireAt time.Time `json:"expire-at"`
}

// ToResponse converts Room to RoomResponse.
func (r *Room) ToResponse() RoomResponse {
	members := r.MemberIDs
	if members == nil {
		members = []int64{}
	}
	return RoomResponse{
		RoomID:           r.ID,
		UserIDs:          members,
		QuestionID:       r.QuestionID,
		QuestionLangSlug: r.QuestionLangSlug,
		ExpireAt:         r.ExpireAt.UTC(),
	}
}
