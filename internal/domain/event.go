package domain

// EventType names a room lifecycle transition.
type EventType string

const (
	EventCreated       EventType = "created"
	EventDeleted       EventType = "deleted"
	EventMemberRemoved EventType = "member-removed"
)

// EventRoom is the snapshot of a room carried by every event.
type EventRoom struct {
	RoomID           string  `json:"room-id"`
	UserIDs          []int64 `json:"user-ids"`
	QuestionID       string  `json:"question-id"`
	QuestionLangSlug string  `json:"question-lang-slug"`
}

// RoomEvent is published whenever a room is created, deleted or loses a
// member. It is never persisted.
type RoomEvent struct {
	EventType     EventType `json:"event-type"`
	Room          EventRoom `json:"room"`
	RemovedUserID *int64    `json:"removed-user-id,omitempty"`
}

// NewRoomEvent builds an event of type t from a room snapshot.
func NewRoomEvent(t EventType, r *Room) *RoomEvent {
	members := make([]int64, len(r.MemberIDs))
	copy(members, r.MemberIDs)
	return &RoomEvent{
		EventType: t,
		Room: EventRoom{
			RoomID:           r.ID,
			UserIDs:          members,
			QuestionID:       r.QuestionID,
			QuestionLangSlug: r.QuestionLangSlug,
		},
	}
}

// NewMemberRemovedEvent builds a member-removed event. r is the room after
// removal and userID the member that left.
func NewMemberRemovedEvent(r *Room, userID int64) *RoomEvent {
	e := NewRoomEvent(EventMemberRemoved, r)
	e.RemovedUserID = &userID
	return e
}
